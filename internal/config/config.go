// Package config provides unified configuration for the LogSphere engine.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the unified configuration for the LogSphere services.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Ingest pipeline configuration
	Ingest IngestConfig `json:"ingest" yaml:"ingest"`

	// Index configuration
	Index IndexConfig `json:"index" yaml:"index"`

	// Search configuration
	Search SearchConfig `json:"search" yaml:"search"`

	// Insights configuration
	Insights InsightsConfig `json:"insights" yaml:"insights"`

	// Storage configuration for the raw file archive
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the listen address for the API server
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// IngestConfig holds ingestion pipeline configuration.
type IngestConfig struct {
	// MaxUploadBytes is the maximum accepted file size (default 200MB)
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`

	// AllowedExtensions is the accepted file extension set
	AllowedExtensions []string `json:"allowed_extensions" yaml:"allowed_extensions"`

	// SamplingThreshold bounds per-file event counts; files producing more
	// records keep only the first SamplingThreshold of them (default 100000)
	SamplingThreshold int `json:"sampling_threshold" yaml:"sampling_threshold"`

	// DetectionSampleSize is the number of records sampled for cloud
	// provider detection (default 500)
	DetectionSampleSize int `json:"detection_sample_size" yaml:"detection_sample_size"`

	// NoisePatterns are message substrings dropped during ingestion
	NoisePatterns []string `json:"noise_patterns" yaml:"noise_patterns"`

	// IncomingDir is watched for dropped files when WatchIncoming is set
	IncomingDir   string `json:"incoming_dir" yaml:"incoming_dir"`
	WatchIncoming bool   `json:"watch_incoming" yaml:"watch_incoming"`
}

// IndexConfig holds search index configuration.
type IndexConfig struct {
	// Dir is the directory for persisted index snapshots
	Dir string `json:"dir" yaml:"dir"`

	// MinDocLength drops messages shorter than this from indexing (default 3)
	MinDocLength int `json:"min_doc_length" yaml:"min_doc_length"`
}

// SearchConfig holds query engine configuration.
type SearchConfig struct {
	// ResultLimit is the default maximum number of ranked results (default 50)
	ResultLimit int `json:"result_limit" yaml:"result_limit"`
}

// InsightsConfig holds analytics policy constants. The defaults are the
// documented calibration; they are configuration, not hard-coded contract.
type InsightsConfig struct {
	// ErrorRateCritical flags CRITICAL at or above this rate (default 0.10)
	ErrorRateCritical float64 `json:"error_rate_critical" yaml:"error_rate_critical"`

	// ErrorRateHigh flags HIGH at or above this rate (default 0.05)
	ErrorRateHigh float64 `json:"error_rate_high" yaml:"error_rate_high"`

	// SpikeStddevFactor is the k in the mean+k*stddev spike rule (default 3.0)
	SpikeStddevFactor float64 `json:"spike_stddev_factor" yaml:"spike_stddev_factor"`

	// SpikeBucket is the bucketing granularity for spike detection (default 1m)
	SpikeBucket time.Duration `json:"spike_bucket" yaml:"spike_bucket"`

	// IdleUserThreshold flags over-provisioning below this many distinct
	// users (default 5)
	IdleUserThreshold int `json:"idle_user_threshold" yaml:"idle_user_threshold"`

	// TopN bounds the top-services/users/IPs lists (default 10)
	TopN int `json:"top_n" yaml:"top_n"`

	// CostRates overrides the built-in per-provider rate table, keyed by
	// provider name (aws, azure, gcp, other)
	CostRates map[string]CostRate `json:"cost_rates,omitempty" yaml:"cost_rates,omitempty"`
}

// CostRate is a provider's per-GB pricing used in cost comparison.
type CostRate struct {
	// IngestPerGB is the ingestion price in USD per GB
	IngestPerGB float64 `json:"ingest_per_gb" yaml:"ingest_per_gb"`

	// StoragePerGB is the monthly storage price in USD per GB
	StoragePerGB float64 `json:"storage_per_gb" yaml:"storage_per_gb"`
}

// StorageConfig holds raw file archive configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Prefix is prepended to every object key
	Prefix string `json:"prefix" yaml:"prefix"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is the minimum console log level: debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// File receives error-and-above output when set
	File string `json:"file" yaml:"file"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/logsphere",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Ingest: IngestConfig{
			MaxUploadBytes:      200 * 1024 * 1024,
			AllowedExtensions:   []string{".json", ".csv", ".log", ".txt", ".zip"},
			SamplingThreshold:   100000,
			DetectionSampleSize: 500,
			NoisePatterns:       []string{"health check", "heartbeat", "ping", "keep-alive"},
			IncomingDir:         "",
			WatchIncoming:       false,
		},
		Index: IndexConfig{
			Dir:          "",
			MinDocLength: 3,
		},
		Search: SearchConfig{
			ResultLimit: 50,
		},
		Insights: InsightsConfig{
			ErrorRateCritical: 0.10,
			ErrorRateHigh:     0.05,
			SpikeStddevFactor: 3.0,
			SpikeBucket:       time.Minute,
			IdleUserThreshold: 5,
			TopN:              10,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/logsphere"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "raw")
	}
	if c.Index.Dir == "" {
		c.Index.Dir = filepath.Join(c.DataDir, "index")
	}
	if c.Ingest.IncomingDir == "" {
		c.Ingest.IncomingDir = filepath.Join(c.DataDir, "incoming")
	}
}

// LedgerPath returns the path to the ledger database.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Ingest.MaxUploadBytes <= 0 {
		return fmt.Errorf("ingest.max_upload_bytes must be positive, got %d", c.Ingest.MaxUploadBytes)
	}
	if len(c.Ingest.AllowedExtensions) == 0 {
		return fmt.Errorf("ingest.allowed_extensions must not be empty")
	}
	if c.Ingest.SamplingThreshold <= 0 {
		return fmt.Errorf("ingest.sampling_threshold must be positive, got %d", c.Ingest.SamplingThreshold)
	}

	if c.Search.ResultLimit <= 0 {
		return fmt.Errorf("search.result_limit must be positive, got %d", c.Search.ResultLimit)
	}

	if c.Insights.ErrorRateCritical < c.Insights.ErrorRateHigh {
		return fmt.Errorf("insights.error_rate_critical (%v) must not be below error_rate_high (%v)",
			c.Insights.ErrorRateCritical, c.Insights.ErrorRateHigh)
	}
	if c.Insights.SpikeStddevFactor <= 0 {
		return fmt.Errorf("insights.spike_stddev_factor must be positive, got %v", c.Insights.SpikeStddevFactor)
	}
	if c.Insights.SpikeBucket <= 0 {
		return fmt.Errorf("insights.spike_bucket must be positive, got %v", c.Insights.SpikeBucket)
	}

	return nil
}

// AllowsExtension reports whether ext (with leading dot, any case) is in the
// accepted extension set.
func (c *Config) AllowsExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range c.Ingest.AllowedExtensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the LOGSPHERE_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("LOGSPHERE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOGSPHERE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Ingest configuration
	if v := os.Getenv("LOGSPHERE_MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Ingest.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("LOGSPHERE_SAMPLING_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Ingest.SamplingThreshold = n
		}
	}
	if v := os.Getenv("LOGSPHERE_INCOMING_DIR"); v != "" {
		cfg.Ingest.IncomingDir = v
	}
	if v := os.Getenv("LOGSPHERE_WATCH_INCOMING"); v != "" {
		cfg.Ingest.WatchIncoming = v == "true" || v == "1"
	}

	// Insights configuration
	if v := os.Getenv("LOGSPHERE_ERROR_RATE_CRITICAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Insights.ErrorRateCritical = f
		}
	}
	if v := os.Getenv("LOGSPHERE_ERROR_RATE_HIGH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Insights.ErrorRateHigh = f
		}
	}
	if v := os.Getenv("LOGSPHERE_SPIKE_STDDEV_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Insights.SpikeStddevFactor = f
		}
	}
	if v := os.Getenv("LOGSPHERE_SPIKE_BUCKET"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Insights.SpikeBucket = d
		}
	}

	// Storage configuration
	if v := os.Getenv("LOGSPHERE_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("LOGSPHERE_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("LOGSPHERE_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("LOGSPHERE_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("LOGSPHERE_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Logging configuration
	if v := os.Getenv("LOGSPHERE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOGSPHERE_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.Index.Dir,
		c.Ingest.IncomingDir,
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
