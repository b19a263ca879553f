package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/logsphere/logsphere/internal/config"
	lserrors "github.com/logsphere/logsphere/internal/errors"
	"github.com/logsphere/logsphere/internal/index"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/pkg/types"
)

type eventStore struct {
	ledger.Store
	events []*types.Event
}

func (s *eventStore) ForEachEvent(ctx context.Context, fn func(*types.Event) error) error {
	for _, ev := range s.events {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *eventStore) RecordIndexBuild(ctx context.Context, docCount, vocabSize int64) error {
	return nil
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func builtEngine(t *testing.T, events []*types.Event) *Engine {
	t.Helper()
	r := index.NewRebuilder(&eventStore{events: events},
		config.IndexConfig{Dir: t.TempDir(), MinDocLength: 3}, zap.NewNop())
	if _, err := r.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	return New(r, config.SearchConfig{ResultLimit: 50}, zap.NewNop())
}

func searchEvents() []*types.Event {
	return []*types.Event{
		{ID: 1, SubmissionID: "sub-1", Timestamp: base, Level: "ERROR", Service: "checkout", Message: "database timeout during payment"},
		{ID: 2, SubmissionID: "sub-1", Timestamp: base.Add(time.Minute), Level: "INFO", Service: "checkout", Message: "payment accepted"},
		{ID: 3, SubmissionID: "sub-2", Timestamp: base.Add(2 * time.Minute), Level: "ERROR", Service: "auth-api", Message: "database connection refused"},
		{ID: 4, SubmissionID: "sub-2", Timestamp: base.Add(3 * time.Minute), Level: "INFO", Service: "auth-api", Message: "user session created"},
	}
}

func TestSearch_RanksByScore(t *testing.T) {
	e := builtEngine(t, searchEvents())

	res, err := e.Search(context.Background(), Request{Query: "database timeout"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if res.TotalMatches != 2 {
		t.Fatalf("TotalMatches = %d, want 2", res.TotalMatches)
	}
	// Event 1 matches both terms, event 3 only "database".
	if res.Hits[0].EventID != 1 {
		t.Errorf("top hit = event %d, want 1", res.Hits[0].EventID)
	}
	if res.Hits[1].EventID != 3 {
		t.Errorf("second hit = event %d, want 3", res.Hits[1].EventID)
	}
	if res.Hits[0].Score <= res.Hits[1].Score {
		t.Errorf("scores not descending: %f <= %f", res.Hits[0].Score, res.Hits[1].Score)
	}
}

func TestSearch_TieBreakMostRecentFirst(t *testing.T) {
	events := []*types.Event{
		{ID: 1, SubmissionID: "s", Timestamp: base, Level: "INFO", Message: "cache miss"},
		{ID: 2, SubmissionID: "s", Timestamp: base.Add(time.Hour), Level: "INFO", Message: "cache miss"},
	}
	e := builtEngine(t, events)

	res, err := e.Search(context.Background(), Request{Query: "cache"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(res.Hits))
	}
	if res.Hits[0].EventID != 2 {
		t.Errorf("equal scores should rank most recent first, got event %d on top", res.Hits[0].EventID)
	}
}

func TestSearch_Filters(t *testing.T) {
	e := builtEngine(t, searchEvents())
	from := base.Add(90 * time.Second)

	tests := []struct {
		name    string
		req     Request
		wantIDs []int64
	}{
		{
			name:    "level filter excludes non-matching entirely",
			req:     Request{Query: "database", Level: "error"},
			wantIDs: []int64{1, 3},
		},
		{
			name:    "service substring filter",
			req:     Request{Query: "database", Service: "auth"},
			wantIDs: []int64{3},
		},
		{
			name:    "time range filter",
			req:     Request{Query: "database", From: &from},
			wantIDs: []int64{3},
		},
		{
			name:    "no matching term yields empty result",
			req:     Request{Query: "kubernetes"},
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Search(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("Search failed: %v", err)
			}
			if len(res.Hits) != len(tt.wantIDs) {
				t.Fatalf("got %d hits, want %d", len(res.Hits), len(tt.wantIDs))
			}
			got := make(map[int64]bool)
			for _, h := range res.Hits {
				got[h.EventID] = true
			}
			for _, id := range tt.wantIDs {
				if !got[id] {
					t.Errorf("missing expected event %d", id)
				}
			}
		})
	}
}

func TestSearch_Limit(t *testing.T) {
	events := make([]*types.Event, 0, 20)
	for i := int64(1); i <= 20; i++ {
		events = append(events, &types.Event{
			ID: i, SubmissionID: "s", Timestamp: base.Add(time.Duration(i) * time.Second),
			Level: "INFO", Message: "worker heartbeat received",
		})
	}
	e := builtEngine(t, events)

	res, err := e.Search(context.Background(), Request{Query: "heartbeat", Limit: 5})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(res.Hits) != 5 {
		t.Errorf("got %d hits, want 5", len(res.Hits))
	}
	if res.TotalMatches != 20 {
		t.Errorf("TotalMatches = %d, want 20", res.TotalMatches)
	}
}

func TestSearch_IndexNotBuilt(t *testing.T) {
	r := index.NewRebuilder(&eventStore{}, config.IndexConfig{Dir: t.TempDir(), MinDocLength: 3}, zap.NewNop())
	e := New(r, config.SearchConfig{ResultLimit: 50}, zap.NewNop())

	_, err := e.Search(context.Background(), Request{Query: "anything"})
	if err == nil {
		t.Fatal("expected INDEX_NOT_BUILT error")
	}
	var lse *lserrors.LogSphereError
	if !errors.As(err, &lse) || lse.Code != lserrors.CodeIndexNotBuilt {
		t.Errorf("expected INDEX_NOT_BUILT, got %v", err)
	}
}
