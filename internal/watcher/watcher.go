// Package watcher ingests files dropped into the incoming directory.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/logsphere/logsphere/internal/ingest"
)

// settleDelay gives writers time to finish before the file is read.
const settleDelay = 500 * time.Millisecond

// Watcher tails an incoming directory with fsnotify and feeds new
// files through the ingestion pipeline. Files are removed after a
// successful ingest and renamed with a .failed suffix otherwise.
type Watcher struct {
	dir      string
	ingestor *ingest.Ingestor
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a watcher for dir.
func New(dir string, ingestor *ingest.Ingestor, logger *zap.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		ingestor: ingestor,
		logger:   logger,
	}
}

// Start begins watching. Files already present in the directory are
// ingested first, so drops during downtime are not lost.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer fsw.Close()

		w.sweep(ctx)
		w.loop(ctx, fsw)
	}()

	w.logger.Info("watching incoming directory", zap.String("dir", w.dir))
	return nil
}

// Close stops the watcher and waits for the worker to exit.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	return nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Writers may still be appending when Create fires.
			time.Sleep(settleDelay)
			w.ingestPath(ctx, event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// sweep ingests files already sitting in the directory.
func (w *Watcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("failed to read incoming directory", zap.Error(err))
		return
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		if entry.IsDir() {
			continue
		}
		w.ingestPath(ctx, filepath.Join(w.dir, entry.Name()))
	}
}

func (w *Watcher) ingestPath(ctx context.Context, path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".failed") {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	result, err := w.ingestor.IngestLocalFile(ctx, path)
	if err != nil {
		w.logger.Warn("incoming file rejected", zap.String("file", name), zap.Error(err))
		if renameErr := os.Rename(path, path+".failed"); renameErr != nil {
			w.logger.Warn("failed to quarantine file", zap.String("file", name), zap.Error(renameErr))
		}
		return
	}

	w.logger.Info("incoming file ingested",
		zap.String("file", name),
		zap.String("submission_id", result.SubmissionID),
		zap.String("status", string(result.Status)),
		zap.Int64("events", result.EventCount))

	if err := os.Remove(path); err != nil {
		w.logger.Warn("failed to remove ingested file", zap.String("file", name), zap.Error(err))
	}
}
