// Package main implements the logsphere binary: a single-node log
// analytics engine with ingestion, search, and insights over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/logsphere/logsphere/internal/app"
	"github.com/logsphere/logsphere/internal/config"
	"github.com/logsphere/logsphere/internal/logging"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		watchDir    string
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for ledger, index, and archive data")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address for the API server")
	flag.StringVar(&watchDir, "watch-dir", "", "Incoming directory to watch for dropped log files")
	flag.StringVar(&logLevel, "log-level", "", "Console log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "LogSphere - log ingestion, search, and insights\n\n")
		fmt.Fprintf(os.Stderr, "Usage: logsphere [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  logsphere --data-dir /data/logsphere\n")
		fmt.Fprintf(os.Stderr, "  logsphere --config /etc/logsphere/config.yaml\n")
		fmt.Fprintf(os.Stderr, "  logsphere --watch-dir /var/spool/logsphere\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  LOGSPHERE_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  LOGSPHERE_HTTP_ADDR      API listen address\n")
		fmt.Fprintf(os.Stderr, "  LOGSPHERE_STORAGE_TYPE   Archive storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  LOGSPHERE_S3_BUCKET      Archive bucket for s3 storage\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("logsphere version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, httpAddr, watchDir, logLevel)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Sync()

	application, err := app.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.Wait(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig layers file, environment, then flags, highest last.
func loadConfig(configFile, dataDir, httpAddr, watchDir, logLevel string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if watchDir != "" {
		cfg.Ingest.IncomingDir = watchDir
		cfg.Ingest.WatchIncoming = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	return cfg, nil
}
