package index

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/logsphere/logsphere/internal/config"
	lserrors "github.com/logsphere/logsphere/internal/errors"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/pkg/types"
)

// stubStore implements the ledger methods the rebuilder touches. The
// embedded interface panics on anything else.
type stubStore struct {
	ledger.Store
	events  []*types.Event
	builds  int
	started chan struct{} // when set, closed once a scan begins
	release chan struct{} // when set, ForEachEvent blocks until closed
	mu      sync.Mutex

	startOnce sync.Once
}

func (s *stubStore) ForEachEvent(ctx context.Context, fn func(*types.Event) error) error {
	if s.started != nil {
		s.startOnce.Do(func() { close(s.started) })
	}
	if s.release != nil {
		<-s.release
	}
	for _, ev := range s.events {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubStore) RecordIndexBuild(ctx context.Context, docCount, vocabSize int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds++
	return nil
}

func testEvents() []*types.Event {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []*types.Event{
		{ID: 1, SubmissionID: "sub-1", Timestamp: base, Level: types.LevelError, Service: "checkout", Message: "payment gateway timeout"},
		{ID: 2, SubmissionID: "sub-1", Timestamp: base.Add(time.Minute), Level: types.LevelInfo, Service: "checkout", Message: "payment accepted"},
		{ID: 3, SubmissionID: "sub-2", Timestamp: base.Add(2 * time.Minute), Level: types.LevelInfo, Service: "auth", Message: "user login ok"},
	}
}

func newTestRebuilder(store ledger.Store, dir string) *Rebuilder {
	return NewRebuilder(store, config.IndexConfig{Dir: dir, MinDocLength: 3}, zap.NewNop())
}

func TestRebuild_PublishesSnapshot(t *testing.T) {
	store := &stubStore{events: testEvents()}
	r := newTestRebuilder(store, t.TempDir())

	if r.Current() != nil {
		t.Fatal("expected nil snapshot before first build")
	}

	snap, err := r.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	if snap.NumDocs() != 3 {
		t.Errorf("NumDocs = %d, want 3", snap.NumDocs())
	}
	if r.Current() != snap {
		t.Error("Current() should return the published snapshot")
	}
	if store.builds != 1 {
		t.Errorf("index builds recorded = %d, want 1", store.builds)
	}

	// tf=1, df=2 (events 1 and 2), N=3
	want := math.Log(3.0 / 2.0)
	got := snap.Weight("payment", 1)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Weight(payment, 1) = %f, want %f", got, want)
	}

	// Absent term contributes zero.
	if w := snap.Weight("nonexistent", 1); w != 0 {
		t.Errorf("Weight for absent term = %f, want 0", w)
	}
}

func TestRebuild_Idempotent(t *testing.T) {
	store := &stubStore{events: testEvents()}
	r := newTestRebuilder(store, t.TempDir())

	first, err := r.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("first Rebuild failed: %v", err)
	}
	second, err := r.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("second Rebuild failed: %v", err)
	}

	if first.NumDocs() != second.NumDocs() || first.VocabSize() != second.VocabSize() {
		t.Errorf("rebuild not idempotent: (%d docs, %d terms) vs (%d docs, %d terms)",
			first.NumDocs(), first.VocabSize(), second.NumDocs(), second.VocabSize())
	}
	for _, ev := range testEvents() {
		for term := range TermCounts(ev.Message) {
			if first.Weight(term, ev.ID) != second.Weight(term, ev.ID) {
				t.Errorf("weight for (%s, %d) differs across rebuilds", term, ev.ID)
			}
		}
	}
}

func TestRebuild_ConcurrentRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	store := &stubStore{events: testEvents(), started: started, release: release}
	r := newTestRebuilder(store, t.TempDir())

	done := make(chan error, 1)
	go func() {
		_, err := r.Rebuild(context.Background())
		done <- err
	}()

	// Wait until the first rebuild holds the lock inside the event scan.
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first rebuild never started scanning")
	}

	_, err := r.Rebuild(context.Background())
	if err == nil {
		t.Fatal("expected REBUILD_IN_PROGRESS for concurrent rebuild")
	}
	var lse *lserrors.LogSphereError
	if !errors.As(err, &lse) || lse.Code != lserrors.CodeRebuildInProgress {
		t.Fatalf("expected REBUILD_IN_PROGRESS, got %v", err)
	}
	if !lserrors.IsRetryable(err) {
		t.Error("REBUILD_IN_PROGRESS should be retryable")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("blocked rebuild failed: %v", err)
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := &stubStore{events: testEvents()}
	r := newTestRebuilder(store, dir)

	snap, err := r.Rebuild(context.Background())
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	restored := newTestRebuilder(&stubStore{}, dir)
	if err := restored.Restore(); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	cur := restored.Current()
	if cur == nil {
		t.Fatal("expected restored snapshot")
	}
	if cur.NumDocs() != snap.NumDocs() || cur.VocabSize() != snap.VocabSize() {
		t.Errorf("restored (%d docs, %d terms), want (%d docs, %d terms)",
			cur.NumDocs(), cur.VocabSize(), snap.NumDocs(), snap.VocabSize())
	}
	if cur.Weight("timeout", 1) != snap.Weight("timeout", 1) {
		t.Error("restored snapshot weight differs")
	}
}

func TestRestore_NoSnapshotIsNotAnError(t *testing.T) {
	r := newTestRebuilder(&stubStore{}, t.TempDir())
	if err := r.Restore(); err != nil {
		t.Fatalf("Restore with no snapshot failed: %v", err)
	}
	if r.Current() != nil {
		t.Error("expected nil snapshot after empty restore")
	}
}
