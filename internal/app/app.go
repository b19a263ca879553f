// Package app wires the LogSphere components together and manages
// their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	httpapi "github.com/logsphere/logsphere/internal/api/http"
	"github.com/logsphere/logsphere/internal/config"
	"github.com/logsphere/logsphere/internal/index"
	"github.com/logsphere/logsphere/internal/ingest"
	"github.com/logsphere/logsphere/internal/insights"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/internal/search"
	"github.com/logsphere/logsphere/internal/server"
	"github.com/logsphere/logsphere/internal/storage"
	"github.com/logsphere/logsphere/internal/watcher"
)

// App owns every long-lived component.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store     ledger.Store
	archive   storage.ObjectStorage
	ingestor  *ingest.Ingestor
	rebuilder *index.Rebuilder
	searcher  *search.Engine
	analyzer  *insights.Analyzer
	watcher   *watcher.Watcher
	httpSrv   *http.Server
	shutdown  *server.ShutdownManager

	mu      sync.Mutex
	running bool
}

// New validates the configuration and creates an App. Nothing is
// opened until Start.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Start opens the ledger and archive, restores the persisted index
// snapshot, and starts the HTTP server and optional incoming watcher.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	a.shutdown = server.NewShutdownManager(0, a.logger)

	store, err := ledger.Open(a.cfg.LedgerPath())
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	a.store = store
	a.shutdown.Register("ledger", store)

	archive, err := storage.Open(ctx, a.cfg.Storage)
	if err != nil {
		a.shutdown.Shutdown("startup failed")
		return fmt.Errorf("failed to open archive storage: %w", err)
	}
	a.archive = archive
	a.logger.Info("archive storage ready", zap.String("type", a.cfg.Storage.Type))

	a.ingestor = ingest.New(a.cfg, a.store, a.archive, a.logger)

	a.rebuilder = index.NewRebuilder(a.store, a.cfg.Index, a.logger)
	if err := a.rebuilder.Restore(); err != nil {
		// A torn or stale snapshot is rebuildable; start unbuilt.
		a.logger.Warn("failed to restore index snapshot", zap.Error(err))
	}

	a.searcher = search.New(a.rebuilder, a.cfg.Search, a.logger)
	a.analyzer = insights.New(a.store, a.cfg.Insights, a.cfg.Ingest.SamplingThreshold, a.logger)

	if a.cfg.Ingest.WatchIncoming {
		a.watcher = watcher.New(a.cfg.Ingest.IncomingDir, a.ingestor, a.logger)
		if err := a.watcher.Start(ctx); err != nil {
			a.shutdown.Shutdown("startup failed")
			return fmt.Errorf("failed to start incoming watcher: %w", err)
		}
		a.shutdown.Register("watcher", a.watcher)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Store:     a.store,
		Ingestor:  a.ingestor,
		Archive:   a.archive,
		Rebuilder: a.rebuilder,
		Searcher:  a.searcher,
		Analyzer:  a.analyzer,
		MaxUpload: a.cfg.Ingest.MaxUploadBytes,
		Logger:    a.logger,
	})

	a.httpSrv = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	a.shutdown.RegisterFunc("http", func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.WriteTimeout)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	go func() {
		a.logger.Info("http server listening", zap.String("addr", a.cfg.HTTP.Addr))
		if err := a.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("http server failed", zap.Error(err))
			a.shutdown.Shutdown("http server failed")
		}
	}()

	return nil
}

// Wait blocks until a termination signal or context cancellation, then
// shuts everything down.
func (a *App) Wait(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}

// Stop triggers the shutdown sequence directly.
func (a *App) Stop() error {
	return a.shutdown.Shutdown("stop requested")
}
