package insights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/logsphere/logsphere/internal/config"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/pkg/types"
)

type fakeStore struct {
	ledger.Store
	events []*types.Event
	usage  map[types.CloudProvider]ledger.CloudUsage
	subs   []*types.FileSubmission
	stats  ledger.Stats
	meta   *ledger.IndexMeta
}

func (f *fakeStore) ForEachEvent(ctx context.Context, fn func(*types.Event) error) error {
	for _, ev := range f.events {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) CloudVolume(ctx context.Context) (map[types.CloudProvider]ledger.CloudUsage, error) {
	if f.usage == nil {
		return map[types.CloudProvider]ledger.CloudUsage{}, nil
	}
	return f.usage, nil
}

func (f *fakeStore) ListSubmissions(ctx context.Context) ([]*types.FileSubmission, error) {
	return f.subs, nil
}

func (f *fakeStore) Stats(ctx context.Context) (*ledger.Stats, error) {
	return &f.stats, nil
}

func (f *fakeStore) LatestIndexMeta(ctx context.Context) (*ledger.IndexMeta, error) {
	return f.meta, nil
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testAnalyzer(store *fakeStore) *Analyzer {
	cfg := config.DefaultConfig().Insights
	return New(store, cfg, 100000, zap.NewNop())
}

func levelEvents(errors, total int) []*types.Event {
	events := make([]*types.Event, 0, total)
	for i := 0; i < total; i++ {
		level := types.LevelInfo
		if i < errors {
			level = types.LevelError
		}
		events = append(events, &types.Event{
			ID:        int64(i + 1),
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			Level:     level,
			Service:   "api",
			User:      "alice",
			Message:   "request handled",
		})
	}
	return events
}

func TestAnalyze_ErrorRate(t *testing.T) {
	tests := []struct {
		name     string
		errors   int
		total    int
		wantRate float64
		wantFlag string
	}{
		{"exact rate", 3, 20, 0.15, "CRITICAL"},
		{"critical boundary inclusive", 10, 100, 0.10, "CRITICAL"},
		{"high boundary inclusive", 5, 100, 0.05, "HIGH"},
		{"below high threshold", 4, 100, 0.04, ""},
		{"no events", 0, 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{events: levelEvents(tt.errors, tt.total)}
			report, err := testAnalyzer(store).Analyze(context.Background(), nil)
			require.NoError(t, err)

			assert.Equal(t, int64(tt.total), report.ErrorRate.TotalEvents)
			assert.Equal(t, int64(tt.errors), report.ErrorRate.ErrorEvents)
			assert.InDelta(t, tt.wantRate, report.ErrorRate.Rate, 1e-9)
			assert.Equal(t, tt.wantFlag, report.ErrorRate.Flag)
		})
	}
}

func TestAnalyze_SpikeDetection(t *testing.T) {
	// 30 quiet minutes at 10 events each, one minute at 300.
	var events []*types.Event
	id := int64(1)
	for minute := 0; minute < 30; minute++ {
		count := 10
		if minute == 15 {
			count = 300
		}
		for i := 0; i < count; i++ {
			events = append(events, &types.Event{
				ID:        id,
				Timestamp: t0.Add(time.Duration(minute) * time.Minute),
				Level:     types.LevelInfo,
				Message:   "tick",
			})
			id++
		}
	}

	store := &fakeStore{events: events}
	report, err := testAnalyzer(store).Analyze(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report.Spikes.Spikes, 1)
	spike := report.Spikes.Spikes[0]
	assert.Equal(t, t0.Add(15*time.Minute), spike.Bucket)
	assert.Equal(t, int64(300), spike.Count)
	assert.Greater(t, spike.Magnitude, 10.0)
}

func TestAnalyze_UniformTrafficHasNoSpikes(t *testing.T) {
	var events []*types.Event
	for minute := 0; minute < 20; minute++ {
		for i := 0; i < 10; i++ {
			events = append(events, &types.Event{
				ID:        int64(minute*10 + i + 1),
				Timestamp: t0.Add(time.Duration(minute) * time.Minute),
				Level:     types.LevelInfo,
				Message:   "tick",
			})
		}
	}

	report, err := testAnalyzer(&fakeStore{events: events}).Analyze(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Spikes.Spikes)
}

func TestAnalyze_WindowFiltersEvents(t *testing.T) {
	events := levelEvents(0, 10)
	window := &Window{From: t0.Add(2 * time.Second), To: t0.Add(5 * time.Second)}

	report, err := testAnalyzer(&fakeStore{events: events}).Analyze(context.Background(), window)
	require.NoError(t, err)
	assert.Equal(t, int64(4), report.ErrorRate.TotalEvents)
}

func TestAnalyze_HealthyFallbackRecommendation(t *testing.T) {
	users := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	var events []*types.Event
	for i := 0; i < 60; i++ {
		events = append(events, &types.Event{
			ID:        int64(i + 1),
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			Level:     types.LevelInfo,
			Service:   "api",
			User:      users[i%len(users)],
			Message:   "request handled",
		})
	}

	report, err := testAnalyzer(&fakeStore{events: events}).Analyze(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, report.Recommendations, 1)
	assert.Equal(t, PriorityInfo, report.Recommendations[0].Priority)
}

func TestAnalyze_RecommendationOrdering(t *testing.T) {
	// 20% error rate over a spiky timeline with a single user forces
	// findings at several priorities.
	var events []*types.Event
	id := int64(1)
	for minute := 0; minute < 30; minute++ {
		count := 10
		if minute == 10 {
			count = 400
		}
		for i := 0; i < count; i++ {
			level := types.LevelInfo
			if i%5 == 0 {
				level = types.LevelError
			}
			events = append(events, &types.Event{
				ID:        id,
				Timestamp: t0.Add(time.Duration(minute) * time.Minute),
				Level:     level,
				Service:   "auth",
				User:      "svc-account",
				Message:   "login attempt unauthorized for user",
			})
			id++
		}
	}

	report, err := testAnalyzer(&fakeStore{events: events}).Analyze(context.Background(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, report.Recommendations)

	for i := 1; i < len(report.Recommendations); i++ {
		prev, cur := report.Recommendations[i-1], report.Recommendations[i]
		if prev.Priority == cur.Priority {
			assert.LessOrEqual(t, int(prev.Category), int(cur.Category),
				"categories must be stable within a priority")
		} else {
			assert.Less(t, int(prev.Priority), int(cur.Priority))
		}
	}

	assert.Equal(t, PriorityCritical, report.Recommendations[0].Priority)
	assert.Equal(t, CategoryErrorRate, report.Recommendations[0].Category)
}

func TestAnalyze_ErrorKeywordsSkipStopTerms(t *testing.T) {
	events := []*types.Event{
		{ID: 1, Timestamp: t0, Level: types.LevelError, Message: "error: database timeout"},
		{ID: 2, Timestamp: t0, Level: types.LevelError, Message: "error: database unreachable"},
	}

	report, err := testAnalyzer(&fakeStore{events: events}).Analyze(context.Background(), nil)
	require.NoError(t, err)

	require.NotEmpty(t, report.ErrorKeywords)
	assert.Equal(t, "database", report.ErrorKeywords[0].Name)
	assert.Equal(t, int64(2), report.ErrorKeywords[0].Count)
	for _, kw := range report.ErrorKeywords {
		assert.NotEqual(t, "error", kw.Name)
	}
}
