// Package insights derives operational findings from the full event
// set: error rates, traffic spikes, volume pressure, usage, cost
// comparison, and compliance coverage. Everything is recomputed on
// request; nothing here is cached.
package insights

import (
	"fmt"
	"sort"
	"time"
)

// Priority orders recommendations. Lower value sorts first.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityInfo
)

var priorityNames = map[Priority]string{
	PriorityCritical: "CRITICAL",
	PriorityHigh:     "HIGH",
	PriorityMedium:   "MEDIUM",
	PriorityLow:      "LOW",
	PriorityInfo:     "INFO",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return "INFO"
}

// MarshalJSON renders the priority as its name.
func (p Priority) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// Category groups recommendations. The numeric order is the stable
// tie-break within a priority.
type Category int

const (
	CategoryErrorRate Category = iota
	CategoryTraffic
	CategoryCost
	CategorySecurity
	CategoryVolume
	CategoryIdle
	CategoryCompliance
)

var categoryNames = map[Category]string{
	CategoryErrorRate:  "error_rate",
	CategoryTraffic:    "traffic",
	CategoryCost:       "cost",
	CategorySecurity:   "security",
	CategoryVolume:     "volume",
	CategoryIdle:       "idle",
	CategoryCompliance: "compliance",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON renders the category as its name.
func (c Category) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.String() + `"`), nil
}

// Recommendation is one materialized finding. CostDelta, when set, is
// the estimated monthly saving in USD of following the action.
type Recommendation struct {
	Priority  Priority `json:"priority"`
	Category  Category `json:"category"`
	Title     string   `json:"title"`
	Detail    string   `json:"detail"`
	Action    string   `json:"action,omitempty"`
	CostDelta *float64 `json:"cost_delta,omitempty"`
}

// sortRecommendations orders by priority, then category, preserving
// insertion order for equal (priority, category) pairs.
func sortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority < recs[j].Priority
		}
		return recs[i].Category < recs[j].Category
	})
}

// securityTerms mark error keywords that suggest access problems
// rather than plain failures.
var securityTerms = map[string]bool{
	"unauthorized":   true,
	"forbidden":      true,
	"denied":         true,
	"authentication": true,
	"authorization":  true,
	"accessdenied":   true,
	"token":          true,
}

// recommend materializes findings into ordered recommendations.
func (a *Analyzer) recommend(r *Report) []Recommendation {
	var recs []Recommendation

	switch r.ErrorRate.Flag {
	case "CRITICAL":
		recs = append(recs, Recommendation{
			Priority: PriorityCritical,
			Category: CategoryErrorRate,
			Title:    "Critical error rate",
			Detail: fmt.Sprintf("%.1f%% of events are errors (%d of %d)",
				r.ErrorRate.Rate*100, r.ErrorRate.ErrorEvents, r.ErrorRate.TotalEvents),
			Action: "investigate the top failing services immediately",
		})
	case "HIGH":
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: CategoryErrorRate,
			Title:    "Elevated error rate",
			Detail: fmt.Sprintf("%.1f%% of events are errors (%d of %d)",
				r.ErrorRate.Rate*100, r.ErrorRate.ErrorEvents, r.ErrorRate.TotalEvents),
			Action: "review error keywords and top services",
		})
	}

	if len(r.Spikes.Spikes) > 0 {
		peak := r.Spikes.Spikes[0]
		for _, s := range r.Spikes.Spikes {
			if s.Count > peak.Count {
				peak = s
			}
		}
		recs = append(recs, Recommendation{
			Priority: PriorityHigh,
			Category: CategoryTraffic,
			Title:    "Traffic spikes detected",
			Detail: fmt.Sprintf("%d bucket(s) exceeded mean+%.1f*stddev; peak %d events at %s (%.1fx mean)",
				len(r.Spikes.Spikes), a.cfg.SpikeStddevFactor, peak.Count,
				peak.Bucket.Format(time.RFC3339), peak.Magnitude),
			Action: "check for retry storms or misbehaving clients around the peak",
		})
	}

	if rec, ok := costRecommendation(r.Cost); ok {
		recs = append(recs, rec)
	}

	for _, kw := range r.ErrorKeywords {
		if securityTerms[kw.Name] {
			recs = append(recs, Recommendation{
				Priority: PriorityHigh,
				Category: CategorySecurity,
				Title:    "Access failures in error logs",
				Detail:   fmt.Sprintf("error messages frequently mention %q (%d times)", kw.Name, kw.Count),
				Action:   "review authentication configuration and audit trails",
			})
			break
		}
	}

	if r.ErrorRate.TotalEvents > a.volumeThreshold && a.volumeThreshold > 0 {
		detail := fmt.Sprintf("%d events analyzed, above the %d sampling threshold", r.ErrorRate.TotalEvents, a.volumeThreshold)
		if r.Sampled {
			detail += " (some submissions were sampled)"
		}
		recs = append(recs, Recommendation{
			Priority: PriorityMedium,
			Category: CategoryVolume,
			Title:    "High log volume",
			Detail:   detail,
			Action:   "filter noise at the source or raise the sampling threshold",
		})
	}

	if r.ErrorRate.TotalEvents > 0 && r.DistinctUsers > 0 && r.DistinctUsers < a.cfg.IdleUserThreshold {
		recs = append(recs, Recommendation{
			Priority: PriorityLow,
			Category: CategoryIdle,
			Title:    "Low user activity",
			Detail:   fmt.Sprintf("only %d distinct users observed", r.DistinctUsers),
			Action:   "check whether the environment is over-provisioned",
		})
	}

	if r.ErrorRate.TotalEvents > 0 {
		if r.Compliance.TimestampCoverage < 0.9 {
			recs = append(recs, Recommendation{
				Priority: PriorityLow,
				Category: CategoryCompliance,
				Title:    "Missing timestamps",
				Detail:   fmt.Sprintf("only %.0f%% of events carried their own timestamp; the rest use ingestion time", r.Compliance.TimestampCoverage*100),
				Action:   "enable timestamps in the emitting services' log format",
			})
		}
		if r.Compliance.UserCoverage < 0.5 {
			recs = append(recs, Recommendation{
				Priority: PriorityLow,
				Category: CategoryCompliance,
				Title:    "Sparse user attribution",
				Detail:   fmt.Sprintf("only %.0f%% of events identify a user; audit trails may be incomplete", r.Compliance.UserCoverage*100),
				Action:   "include caller identity in application logs",
			})
		}
	}

	if len(recs) == 0 {
		recs = append(recs, Recommendation{
			Priority: PriorityInfo,
			Category: CategoryErrorRate,
			Title:    "No issues detected",
			Detail:   "error rate, traffic, and volume are within normal bounds",
		})
	}

	return recs
}

// costRecommendation suggests the cheaper provider when the active one
// is not the cheapest by a meaningful margin.
func costRecommendation(cost CostComparison) (Recommendation, bool) {
	if cost.TotalBytes == 0 || len(cost.Providers) == 0 {
		return Recommendation{}, false
	}

	cheapest := cost.Providers[0] // sorted ascending by total cost
	var active *ProviderCost
	for i := range cost.Providers {
		if cost.Providers[i].Active {
			active = &cost.Providers[i]
			break
		}
	}
	if active == nil || active.Provider == cheapest.Provider {
		return Recommendation{}, false
	}
	if active.TotalCost <= cheapest.TotalCost*1.2 {
		return Recommendation{}, false
	}

	delta := round2(active.TotalCost - cheapest.TotalCost)
	return Recommendation{
		Priority: PriorityMedium,
		Category: CategoryCost,
		Title:    "Cheaper ingestion available",
		Detail: fmt.Sprintf("current volume costs ~$%.2f/month on %s; %s would cost ~$%.2f",
			active.TotalCost, active.Provider, cheapest.Provider, cheapest.TotalCost),
		Action:    fmt.Sprintf("consider migrating log ingestion to %s", cheapest.Provider),
		CostDelta: &delta,
	}, true
}
