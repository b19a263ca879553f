// Package ingest orchestrates the ingestion pipeline: validate, parse,
// normalize, filter, sample, and persist.
package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/logsphere/logsphere/internal/config"
	lserrors "github.com/logsphere/logsphere/internal/errors"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/internal/normalize"
	"github.com/logsphere/logsphere/internal/parser"
	"github.com/logsphere/logsphere/internal/storage"
	"github.com/logsphere/logsphere/pkg/types"
)

// insertBatchSize bounds the events held in one ledger transaction.
const insertBatchSize = 1000

// EntryOutcome reports the result of one archive entry.
type EntryOutcome struct {
	Name       string `json:"name"`
	EventCount int64  `json:"event_count"`
	Error      string `json:"error,omitempty"`
}

// Result summarizes one file ingestion.
type Result struct {
	SubmissionID  string                 `json:"submission_id"`
	Filename      string                 `json:"filename"`
	Status        types.SubmissionStatus `json:"status"`
	CloudType     types.CloudProvider    `json:"cloud_type"`
	EventCount    int64                  `json:"event_count"`
	OriginalCount int64                  `json:"original_count"`
	Sampled       bool                   `json:"sampled"`
	Entries       []EntryOutcome         `json:"entries,omitempty"`
	Error         string                 `json:"error,omitempty"`
}

// Ingestor runs the ingestion pipeline. Concurrent ingestions are safe:
// each submission's events are written independently.
type Ingestor struct {
	cfg     *config.Config
	store   ledger.Store
	archive storage.ObjectStorage // raw file archive, may be nil
	norm    *normalize.Normalizer
	logger  *zap.Logger
}

// New creates an Ingestor. archive may be nil to skip raw file archiving.
func New(cfg *config.Config, store ledger.Store, archive storage.ObjectStorage, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		cfg:     cfg,
		store:   store,
		archive: archive,
		norm:    normalize.New(),
		logger:  logger,
	}
}

// IngestFile validates and ingests one file, streaming its content through
// a temp spool so whole files are never buffered in memory. On validation
// failure nothing is persisted. Parse failures after validation mark the
// submission failed (or partial, for archives with surviving entries).
func (ing *Ingestor) IngestFile(ctx context.Context, filename string, r io.Reader, size int64) (*Result, error) {
	ext, err := ValidateFile(ing.cfg, filename, size)
	if err != nil {
		return nil, err
	}

	// Spool to disk: zip needs random access and the archive upload needs a
	// local path, while the HTTP layer hands us a stream.
	spool, err := os.CreateTemp("", "logsphere_ingest_*")
	if err != nil {
		return nil, lserrors.NewInternalError("create spool file", err)
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	written, err := io.Copy(spool, io.LimitReader(r, ing.cfg.Ingest.MaxUploadBytes+1))
	if err != nil {
		return nil, lserrors.NewInternalError("spool upload", err)
	}
	if written > ing.cfg.Ingest.MaxUploadBytes {
		return nil, lserrors.NewValidationError(lserrors.CodeFileTooLarge,
			fmt.Sprintf("stream exceeds limit %d", ing.cfg.Ingest.MaxUploadBytes))
	}

	sub := &types.FileSubmission{
		Filename:  filepath.Base(filename),
		Extension: ext,
		SizeBytes: written,
		Status:    types.StatusPending,
	}
	subID, err := ing.store.InsertSubmission(ctx, sub)
	if err != nil {
		return nil, err
	}

	if ing.archive != nil {
		objectPath := "raw/" + subID + "/" + sub.Filename
		if err := ing.archive.Upload(ctx, spool.Name(), objectPath); err != nil {
			// Archiving is best-effort; the ledger copy of the events is
			// what downstream consumers read.
			ing.logger.Warn("raw archive upload failed",
				zap.String("submission_id", subID), zap.Error(err))
		}
	}

	res := &Result{SubmissionID: subID, Filename: sub.Filename}
	if ext == ".zip" {
		err = ing.ingestArchive(ctx, spool, written, res)
	} else {
		err = ing.ingestSingle(ctx, spool, ext, res)
	}
	if err != nil {
		res.Status = types.StatusFailed
		res.Error = err.Error()
		upd := ledger.StatusUpdate{Status: types.StatusFailed, ErrorMsg: err.Error()}
		if uerr := ing.store.UpdateSubmissionStatus(ctx, subID, upd); uerr != nil {
			ing.logger.Error("failed to mark submission failed",
				zap.String("submission_id", subID), zap.Error(uerr))
		}
		return res, err
	}

	ing.logger.Info("file ingested",
		zap.String("submission_id", subID),
		zap.String("filename", sub.Filename),
		zap.String("cloud_type", string(res.CloudType)),
		zap.Int64("events", res.EventCount),
		zap.Bool("sampled", res.Sampled))
	return res, nil
}

// IngestLocalFile ingests a file already on disk, such as a drop in the
// incoming directory or a downloaded remote object.
func (ing *Ingestor) IngestLocalFile(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, lserrors.NewValidationError(lserrors.CodeEmptyFile,
			fmt.Sprintf("file %s is not readable", filepath.Base(path)))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, lserrors.NewInternalError("open local file", err)
	}
	defer f.Close()

	return ing.IngestFile(ctx, filepath.Base(path), f, info.Size())
}

// ingestSingle parses one non-archive file. Any parse error fails the whole
// ingestion.
func (ing *Ingestor) ingestSingle(ctx context.Context, spool *os.File, ext string, res *Result) error {
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return lserrors.NewInternalError("rewind spool", err)
	}

	coll := newCollector(ing.cfg, ing.norm)
	if err := parser.Parse(ext, spool, coll.take); err != nil {
		return err
	}
	return ing.finish(ctx, coll, res)
}

// ingestArchive expands a zip and ingests each inner file independently.
// A corrupt entry fails that entry only; the submission is marked partial
// when outcomes are mixed.
func (ing *Ingestor) ingestArchive(ctx context.Context, spool *os.File, size int64, res *Result) error {
	coll := newCollector(ing.cfg, ing.norm)

	outcomes, err := parser.WalkArchive(spool, size, func(entry parser.ArchiveEntry, r io.Reader) (int64, error) {
		if !parser.Supports(entry.Ext) {
			return 0, lserrors.New(lserrors.ErrCategoryParse, lserrors.CodeUnsupportedFormat,
				"archive entry "+entry.Name+" has unsupported extension "+entry.Ext)
		}
		before := len(coll.events)
		err := parser.Parse(entry.Ext, r, coll.take)
		return int64(len(coll.events) - before), err
	})
	if err != nil {
		return err
	}

	failed := 0
	for _, out := range outcomes {
		eo := EntryOutcome{Name: out.Entry.Name, EventCount: out.Records}
		if out.Err != nil {
			eo.Error = out.Err.Error()
			failed++
		}
		res.Entries = append(res.Entries, eo)
	}

	if len(outcomes) > 0 && failed == len(outcomes) {
		return lserrors.New(lserrors.ErrCategoryParse, lserrors.CodeMalformedInput,
			fmt.Sprintf("all %d archive entries failed", failed))
	}

	if err := ing.finish(ctx, coll, res); err != nil {
		return err
	}
	if failed > 0 {
		res.Status = types.StatusPartial
		upd := ledger.StatusUpdate{
			Status:        types.StatusPartial,
			CloudType:     res.CloudType,
			Sampled:       res.Sampled,
			OriginalCount: res.OriginalCount,
			EventCount:    res.EventCount,
			ErrorMsg:      fmt.Sprintf("%d of %d archive entries failed", failed, len(outcomes)),
		}
		return ing.store.UpdateSubmissionStatus(ctx, res.SubmissionID, upd)
	}
	return nil
}

// finish runs detection over the sampled records, persists the collected
// events, and finalizes the submission.
func (ing *Ingestor) finish(ctx context.Context, coll *collector, res *Result) error {
	cloud := normalize.DetectProvider(coll.detectionSample)

	for _, pe := range coll.events {
		// Inherit the file-level classification unless the record itself
		// carries a provider-specific field.
		if pe.recordCloud != types.CloudOther {
			pe.event.CloudType = pe.recordCloud
		} else {
			pe.event.CloudType = cloud
		}
	}

	for start := 0; start < len(coll.events); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(coll.events) {
			end = len(coll.events)
		}
		batch := make([]*types.Event, 0, end-start)
		for _, pe := range coll.events[start:end] {
			batch = append(batch, pe.event)
		}
		if _, err := ing.store.InsertEvents(ctx, res.SubmissionID, batch); err != nil {
			return err
		}
	}

	res.CloudType = cloud
	res.EventCount = int64(len(coll.events))
	res.OriginalCount = coll.originalCount
	res.Sampled = coll.sampled
	res.Status = types.StatusParsed

	upd := ledger.StatusUpdate{
		Status:        types.StatusParsed,
		CloudType:     cloud,
		Sampled:       coll.sampled,
		OriginalCount: coll.originalCount,
		EventCount:    res.EventCount,
	}
	return ing.store.UpdateSubmissionStatus(ctx, res.SubmissionID, upd)
}

// pendingEvent pairs a normalized event with its per-record detection so
// the file-level majority vote can be applied afterwards.
type pendingEvent struct {
	event       *types.Event
	recordCloud types.CloudProvider
}

// collector accumulates normalized events with noise filtering and the
// first-N sampling policy. Sampling keeps the earliest records, a
// deterministic choice that keeps re-ingestion reproducible; the true
// record count is always retained.
type collector struct {
	cfg             *config.Config
	norm            *normalize.Normalizer
	events          []*pendingEvent
	detectionSample []parser.Record
	originalCount   int64
	sampled         bool
}

func newCollector(cfg *config.Config, norm *normalize.Normalizer) *collector {
	return &collector{cfg: cfg, norm: norm}
}

func (c *collector) take(rec parser.Record) error {
	c.originalCount++

	if len(c.detectionSample) < c.cfg.Ingest.DetectionSampleSize {
		c.detectionSample = append(c.detectionSample, rec)
	}

	if len(c.events) >= c.cfg.Ingest.SamplingThreshold {
		c.sampled = true
		return nil
	}

	e := c.norm.Normalize(rec)
	if isNoise(e.Message, c.cfg.Ingest.NoisePatterns) {
		return nil
	}

	c.events = append(c.events, &pendingEvent{
		event:       e,
		recordCloud: normalize.RecordProvider(rec),
	})
	return nil
}

// isNoise reports whether the message matches any configured noise pattern.
func isNoise(message string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}
	lower := strings.ToLower(message)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
