package insights

import (
	"context"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/logsphere/logsphere/internal/config"
	"github.com/logsphere/logsphere/internal/index"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/pkg/types"
)

// ErrorRateFinding summarizes error density over the analyzed events.
type ErrorRateFinding struct {
	TotalEvents int64   `json:"total_events"`
	ErrorEvents int64   `json:"error_events"`
	Rate        float64 `json:"rate"`
	Flag        string  `json:"flag,omitempty"` // CRITICAL, HIGH, or empty
}

// Spike is one bucket whose event count exceeded mean + k*stddev.
type Spike struct {
	Bucket    time.Time `json:"bucket"`
	Count     int64     `json:"count"`
	Threshold float64   `json:"threshold"`
	Magnitude float64   `json:"magnitude"` // count / mean
}

// SpikeFinding reports the traffic spike analysis.
type SpikeFinding struct {
	BucketSize time.Duration `json:"bucket_size"`
	Buckets    int           `json:"buckets"`
	Mean       float64       `json:"mean"`
	Stddev     float64       `json:"stddev"`
	Spikes     []Spike       `json:"spikes"`
}

// TopEntry is one item of a ranked frequency list.
type TopEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Compliance reports coverage of fields audits care about.
type Compliance struct {
	TimestampCoverage float64 `json:"timestamp_coverage"` // events with non-inferred timestamps
	UserCoverage      float64 `json:"user_coverage"`
	ServiceCoverage   float64 `json:"service_coverage"`
}

// Report is the full insights output.
type Report struct {
	GeneratedAt     time.Time        `json:"generated_at"`
	Window          *Window          `json:"window,omitempty"`
	ErrorRate       ErrorRateFinding `json:"error_rate"`
	Spikes          SpikeFinding     `json:"spikes"`
	TopServices     []TopEntry       `json:"top_services"`
	TopUsers        []TopEntry       `json:"top_users"`
	TopIPs          []TopEntry       `json:"top_ips"`
	ErrorKeywords   []TopEntry       `json:"error_keywords"`
	DistinctUsers   int              `json:"distinct_users"`
	Compliance      Compliance       `json:"compliance"`
	Cost            CostComparison   `json:"cost"`
	Sampled         bool             `json:"sampled"` // any analyzed submission was sampled
	Recommendations []Recommendation `json:"recommendations"`
}

// Window restricts analysis to a time range.
type Window struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (w *Window) contains(t time.Time) bool {
	if w == nil {
		return true
	}
	return !t.Before(w.From) && !t.After(w.To)
}

// Analyzer computes insight reports from the ledger.
type Analyzer struct {
	store           ledger.Store
	cfg             config.InsightsConfig
	profiles        map[types.CloudProvider]CostProfile
	volumeThreshold int64
	logger          *zap.Logger
}

// New creates an Analyzer. volumeThreshold is the ingest sampling
// threshold; total volume above it triggers a filtering recommendation.
func New(store ledger.Store, cfg config.InsightsConfig, volumeThreshold int, logger *zap.Logger) *Analyzer {
	return &Analyzer{
		store:           store,
		cfg:             cfg,
		profiles:        resolveCostProfiles(cfg.CostRates),
		volumeThreshold: int64(volumeThreshold),
		logger:          logger,
	}
}

// Analyze streams the event set once, computes every finding, and
// materializes recommendations. A nil window analyzes everything.
func (a *Analyzer) Analyze(ctx context.Context, window *Window) (*Report, error) {
	start := time.Now()

	acc := newStats(a.cfg)
	err := a.store.ForEachEvent(ctx, func(ev *types.Event) error {
		if window.contains(ev.Timestamp) {
			acc.observe(ev)
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

	subs, err := a.store.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	sampled := false
	for _, sub := range subs {
		if sub.Sampled {
			sampled = true
			break
		}
	}

	report := acc.report(a.cfg, window)
	report.Cost = CompareCosts(usage, a.profiles)
	report.Sampled = sampled
	report.Recommendations = a.recommend(report)
	sortRecommendations(report.Recommendations)

	a.logger.Debug("insights computed",
		zap.Int64("events", report.ErrorRate.TotalEvents),
		zap.Int("recommendations", len(report.Recommendations)),
		zap.Duration("took", time.Since(start)))

	return report, nil
}

// stats accumulates per-event counters in one pass.
type stats struct {
	cfg         config.InsightsConfig
	total       int64
	errors      int64
	withTS      int64
	withUser    int64
	withService int64
	services    map[string]int64
	users       map[string]int64
	ips         map[string]int64
	errorTerms  map[string]int64
	buckets     map[int64]int64 // unix bucket start -> count
}

func newStats(cfg config.InsightsConfig) *stats {
	return &stats{
		cfg:        cfg,
		services:   make(map[string]int64),
		users:      make(map[string]int64),
		ips:        make(map[string]int64),
		errorTerms: make(map[string]int64),
		buckets:    make(map[int64]int64),
	}
}

func (s *stats) observe(ev *types.Event) {
	s.total++

	if !ev.TimestampInferred {
		s.withTS++
		bucket := ev.Timestamp.Truncate(s.cfg.SpikeBucket).Unix()
		s.buckets[bucket]++
	}
	if ev.Service != "" {
		s.withService++
		s.services[ev.Service]++
	}
	if ev.User != "" {
		s.withUser++
		s.users[ev.User]++
	}
	if ev.IP != "" {
		s.ips[ev.IP]++
	}

	if ev.Level == types.LevelError {
		s.errors++
		for _, term := range index.Tokenize(ev.Message) {
			if !isStopTerm(term) {
				s.errorTerms[term]++
			}
		}
	}
}

func (s *stats) report(cfg config.InsightsConfig, window *Window) *Report {
	report := &Report{
		GeneratedAt:   time.Now().UTC(),
		Window:        window,
		TopServices:   topN(s.services, cfg.TopN),
		TopUsers:      topN(s.users, cfg.TopN),
		TopIPs:        topN(s.ips, cfg.TopN),
		ErrorKeywords: topN(s.errorTerms, cfg.TopN),
		DistinctUsers: len(s.users),
	}

	report.ErrorRate = s.errorRate(cfg)
	report.Spikes = s.spikes(cfg)

	if s.total > 0 {
		report.Compliance = Compliance{
			TimestampCoverage: float64(s.withTS) / float64(s.total),
			UserCoverage:      float64(s.withUser) / float64(s.total),
			ServiceCoverage:   float64(s.withService) / float64(s.total),
		}
	}

	return report
}

func (s *stats) errorRate(cfg config.InsightsConfig) ErrorRateFinding {
	finding := ErrorRateFinding{
		TotalEvents: s.total,
		ErrorEvents: s.errors,
	}
	if s.total == 0 {
		return finding
	}

	finding.Rate = float64(s.errors) / float64(s.total)
	switch {
	case finding.Rate >= cfg.ErrorRateCritical:
		finding.Flag = "CRITICAL"
	case finding.Rate >= cfg.ErrorRateHigh:
		finding.Flag = "HIGH"
	}
	return finding
}

// spikes flags buckets whose count exceeds mean + k*stddev across all
// observed buckets.
func (s *stats) spikes(cfg config.InsightsConfig) SpikeFinding {
	finding := SpikeFinding{
		BucketSize: cfg.SpikeBucket,
		Buckets:    len(s.buckets),
	}
	if len(s.buckets) < 2 {
		return finding
	}

	var sum float64
	for _, count := range s.buckets {
		sum += float64(count)
	}
	mean := sum / float64(len(s.buckets))

	var variance float64
	for _, count := range s.buckets {
		d := float64(count) - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(s.buckets)))

	finding.Mean = mean
	finding.Stddev = stddev
	threshold := mean + cfg.SpikeStddevFactor*stddev

	for bucket, count := range s.buckets {
		if float64(count) > threshold {
			finding.Spikes = append(finding.Spikes, Spike{
				Bucket:    time.Unix(bucket, 0).UTC(),
				Count:     count,
				Threshold: threshold,
				Magnitude: float64(count) / mean,
			})
		}
	}

	sort.Slice(finding.Spikes, func(i, j int) bool {
		return finding.Spikes[i].Bucket.Before(finding.Spikes[j].Bucket)
	})

	return finding
}

func topN(counts map[string]int64, n int) []TopEntry {
	entries := make([]TopEntry, 0, len(counts))
	for name, count := range counts {
		entries = append(entries, TopEntry{Name: name, Count: count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Name < entries[j].Name
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// stopTerms are tokens too generic to be useful error keywords.
var stopTerms = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"error": true, "failed": true, "failure": true, "exception": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "is": true,
}

func isStopTerm(term string) bool {
	return stopTerms[term] || len(term) < 3
}
