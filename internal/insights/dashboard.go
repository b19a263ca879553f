package insights

import (
	"context"
	"sort"
	"time"

	"github.com/logsphere/logsphere/pkg/types"
)

// SeriesPoint is one bucket of the dashboard timeline.
type SeriesPoint struct {
	Bucket time.Time `json:"bucket"`
	Total  int64     `json:"total"`
	Errors int64     `json:"errors"`
}

// LevelCount is one slice of the level distribution.
type LevelCount struct {
	Level string `json:"level"`
	Count int64  `json:"count"`
}

// Dashboard is the at-a-glance view the UI renders.
type Dashboard struct {
	GeneratedAt   time.Time           `json:"generated_at"`
	TotalFiles    int64               `json:"total_files"`
	TotalEvents   int64               `json:"total_events"`
	ErrorEvents   int64               `json:"error_events"`
	TotalBytes    int64               `json:"total_bytes"`
	ErrorRate     float64             `json:"error_rate"`
	Levels        []LevelCount        `json:"levels"`
	Timeline      []SeriesPoint       `json:"timeline"`
	IndexBuiltAt  *time.Time          `json:"index_built_at,omitempty"`
	IndexDocCount int64               `json:"index_doc_count,omitempty"`
	Providers     []ProviderBreakdown `json:"providers"`
}

// ProviderBreakdown summarizes submissions per detected provider.
type ProviderBreakdown struct {
	Provider types.CloudProvider `json:"provider"`
	Files    int64               `json:"files"`
	Bytes    int64               `json:"bytes"`
}

// Dashboard assembles headline KPIs, the hourly timeline, and the
// level distribution in one ledger pass.
func (a *Analyzer) Dashboard(ctx context.Context) (*Dashboard, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	levels := make(map[string]int64)
	timeline := make(map[int64]*SeriesPoint)
	err = a.store.ForEachEvent(ctx, func(ev *types.Event) error {
		levels[string(ev.Level)]++

		bucket := ev.Timestamp.Truncate(time.Hour).Unix()
		point := timeline[bucket]
		if point == nil {
			point = &SeriesPoint{Bucket: time.Unix(bucket, 0).UTC()}
			timeline[bucket] = point
		}
		point.Total++
		if ev.Level == types.LevelError {
			point.Errors++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	usage, err := a.store.CloudVolume(ctx)
	if err != nil {
		return nil, err
	}

	dash := &Dashboard{
		GeneratedAt: time.Now().UTC(),
		TotalFiles:  stats.TotalFiles,
		TotalEvents: stats.TotalEvents,
		ErrorEvents: stats.ErrorEvents,
		TotalBytes:  stats.TotalBytes,
	}
	if stats.TotalEvents > 0 {
		dash.ErrorRate = float64(stats.ErrorEvents) / float64(stats.TotalEvents)
	}

	for level, count := range levels {
		dash.Levels = append(dash.Levels, LevelCount{Level: level, Count: count})
	}
	sort.Slice(dash.Levels, func(i, j int) bool {
		if dash.Levels[i].Count != dash.Levels[j].Count {
			return dash.Levels[i].Count > dash.Levels[j].Count
		}
		return dash.Levels[i].Level < dash.Levels[j].Level
	})

	for _, point := range timeline {
		dash.Timeline = append(dash.Timeline, *point)
	}
	sort.Slice(dash.Timeline, func(i, j int) bool {
		return dash.Timeline[i].Bucket.Before(dash.Timeline[j].Bucket)
	})

	for _, provider := range types.AllProviders() {
		u := usage[provider]
		if u.Files == 0 {
			continue
		}
		dash.Providers = append(dash.Providers, ProviderBreakdown{
			Provider: provider,
			Files:    u.Files,
			Bytes:    u.Bytes,
		})
	}

	if meta, err := a.store.LatestIndexMeta(ctx); err == nil && meta != nil {
		dash.IndexBuiltAt = &meta.BuiltAt
		dash.IndexDocCount = meta.DocCount
	}

	return dash, nil
}
