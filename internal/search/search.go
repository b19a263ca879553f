// Package search answers ranked free-text queries against the current
// index snapshot.
package search

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/logsphere/logsphere/internal/config"
	lserrors "github.com/logsphere/logsphere/internal/errors"
	"github.com/logsphere/logsphere/internal/index"
)

// SnapshotSource yields the currently published index snapshot, or nil
// if the index has never been built.
type SnapshotSource interface {
	Current() *index.Snapshot
}

// Request is one search query with optional post-score filters.
type Request struct {
	Query   string     `json:"query"`
	Level   string     `json:"level,omitempty"`
	Service string     `json:"service,omitempty"`
	From    *time.Time `json:"from,omitempty"`
	To      *time.Time `json:"to,omitempty"`
	Limit   int        `json:"limit,omitempty"`
}

// Hit is one scored event.
type Hit struct {
	EventID      int64     `json:"event_id"`
	SubmissionID string    `json:"submission_id"`
	Score        float64   `json:"score"`
	Timestamp    time.Time `json:"timestamp"`
	Level        string    `json:"level"`
	Service      string    `json:"service,omitempty"`
	Message      string    `json:"message"`
}

// Result is a ranked result set. Empty Hits is a valid outcome.
type Result struct {
	Hits         []Hit         `json:"hits"`
	TotalMatches int           `json:"total_matches"`
	IndexBuiltAt time.Time     `json:"index_built_at"`
	Took         time.Duration `json:"took"`
}

// Engine scores events against the snapshot. It holds no state of its
// own; a rebuild concurrent with a query is observed atomically through
// the snapshot source.
type Engine struct {
	source SnapshotSource
	cfg    config.SearchConfig
	logger *zap.Logger
}

// New creates a search engine.
func New(source SnapshotSource, cfg config.SearchConfig, logger *zap.Logger) *Engine {
	return &Engine{
		source: source,
		cfg:    cfg,
		logger: logger,
	}
}

// Search tokenizes the query exactly as indexing does, sums TF-IDF
// weights per event, applies filters as a boolean mask, and returns
// hits sorted by score descending with a most-recent-timestamp
// tie-break. Fails with INDEX_NOT_BUILT if no snapshot exists.
func (e *Engine) Search(ctx context.Context, req Request) (*Result, error) {
	snap := e.source.Current()
	if snap == nil {
		return nil, lserrors.NewIndexError(lserrors.CodeIndexNotBuilt, "search index has not been built")
	}

	start := time.Now()

	scores := make(map[int64]float64)
	for _, term := range index.Tokenize(req.Query) {
		for eventID, weight := range snap.TermWeights(term) {
			scores[eventID] += weight
		}
	}

	hits := make([]Hit, 0, len(scores))
	for eventID, score := range scores {
		meta, ok := snap.Doc(eventID)
		if !ok {
			continue
		}
		if !matches(meta, req) {
			continue
		}
		hits = append(hits, Hit{
			EventID:      meta.EventID,
			SubmissionID: meta.SubmissionID,
			Score:        score,
			Timestamp:    meta.Timestamp,
			Level:        meta.Level,
			Service:      meta.Service,
			Message:      meta.Message,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if !hits[i].Timestamp.Equal(hits[j].Timestamp) {
			return hits[i].Timestamp.After(hits[j].Timestamp)
		}
		return hits[i].EventID < hits[j].EventID
	})

	total := len(hits)
	limit := req.Limit
	if limit <= 0 || limit > e.cfg.ResultLimit {
		limit = e.cfg.ResultLimit
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}

	e.logger.Debug("search executed",
		zap.String("query", req.Query),
		zap.Int("matches", total),
		zap.Duration("took", time.Since(start)))

	return &Result{
		Hits:         hits,
		TotalMatches: total,
		IndexBuiltAt: snap.BuiltAt(),
		Took:         time.Since(start),
	}, nil
}

// matches applies the boolean filter mask. An event failing any filter
// is excluded entirely, never down-weighted.
func matches(meta index.DocMeta, req Request) bool {
	if req.Level != "" && !strings.EqualFold(meta.Level, req.Level) {
		return false
	}
	if req.Service != "" && !strings.Contains(strings.ToLower(meta.Service), strings.ToLower(req.Service)) {
		return false
	}
	if req.From != nil && meta.Timestamp.Before(*req.From) {
		return false
	}
	if req.To != nil && meta.Timestamp.After(*req.To) {
		return false
	}
	return true
}
