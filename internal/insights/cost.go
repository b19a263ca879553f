package insights

import (
	"math"
	"sort"

	"github.com/logsphere/logsphere/internal/config"
	"github.com/logsphere/logsphere/internal/ledger"
	"github.com/logsphere/logsphere/pkg/types"
)

// CostProfile holds a provider's published per-GB monthly rates.
type CostProfile struct {
	IngestPerGB  float64
	StoragePerGB float64
}

// defaultCostProfiles is the published rate table, USD per GB per
// month. Config can override individual providers.
var defaultCostProfiles = map[types.CloudProvider]CostProfile{
	types.CloudAWS:   {IngestPerGB: 0.50, StoragePerGB: 0.023},
	types.CloudAzure: {IngestPerGB: 2.30, StoragePerGB: 0.025},
	types.CloudGCP:   {IngestPerGB: 0.50, StoragePerGB: 0.020},
	types.CloudOther: {IngestPerGB: 0, StoragePerGB: 0.015},
}

// DefaultCostProfiles returns a copy of the default rate table.
func DefaultCostProfiles() map[types.CloudProvider]CostProfile {
	profiles := make(map[types.CloudProvider]CostProfile, len(defaultCostProfiles))
	for provider, profile := range defaultCostProfiles {
		profiles[provider] = profile
	}
	return profiles
}

// resolveCostProfiles applies configured per-provider rate overrides
// on top of the defaults.
func resolveCostProfiles(overrides map[string]config.CostRate) map[types.CloudProvider]CostProfile {
	profiles := DefaultCostProfiles()
	for name, rate := range overrides {
		profiles[types.CloudProvider(name)] = CostProfile{
			IngestPerGB:  rate.IngestPerGB,
			StoragePerGB: rate.StoragePerGB,
		}
	}
	return profiles
}

// ProviderCost is the estimated monthly cost of the observed volume on
// one provider. Active marks the provider most submissions were
// detected as.
type ProviderCost struct {
	Provider    types.CloudProvider `json:"provider"`
	Files       int64               `json:"files"`
	Bytes       int64               `json:"bytes"`
	IngestCost  float64             `json:"ingest_cost"`
	StorageCost float64             `json:"storage_cost"`
	TotalCost   float64             `json:"total_cost"`
	Active      bool                `json:"active"`
}

// CostComparison prices the total observed byte volume on every
// provider's rate card.
type CostComparison struct {
	TotalBytes int64          `json:"total_bytes"`
	Providers  []ProviderCost `json:"providers"`
}

// CompareCosts estimates what the full ingested volume would cost per
// month on each provider. Zero volume yields zero costs, which is a
// valid state, not an error. The active provider is the one holding
// the most submissions, ties broken by byte volume then enum order.
func CompareCosts(usage map[types.CloudProvider]ledger.CloudUsage, profiles map[types.CloudProvider]CostProfile) CostComparison {
	var totalBytes int64
	for _, u := range usage {
		totalBytes += u.Bytes
	}
	gb := float64(totalBytes) / (1024 * 1024 * 1024)

	active := activeProvider(usage)

	providers := make([]ProviderCost, 0, len(profiles))
	for _, provider := range types.AllProviders() {
		profile := profiles[provider]
		u := usage[provider]
		providers = append(providers, ProviderCost{
			Provider:    provider,
			Files:       u.Files,
			Bytes:       u.Bytes,
			IngestCost:  round2(gb * profile.IngestPerGB),
			StorageCost: round2(gb * profile.StoragePerGB),
			TotalCost:   round2(gb * (profile.IngestPerGB + profile.StoragePerGB)),
			Active:      provider == active,
		})
	}

	sort.Slice(providers, func(i, j int) bool {
		return providers[i].TotalCost < providers[j].TotalCost
	})

	return CostComparison{TotalBytes: totalBytes, Providers: providers}
}

// activeProvider returns the provider with the most submissions, or
// CloudOther when nothing has been ingested.
func activeProvider(usage map[types.CloudProvider]ledger.CloudUsage) types.CloudProvider {
	active := types.CloudOther
	var bestFiles, bestBytes int64
	for _, provider := range types.AllProviders() {
		u := usage[provider]
		if u.Files > bestFiles || (u.Files == bestFiles && u.Files > 0 && u.Bytes > bestBytes) {
			active = provider
			bestFiles = u.Files
			bestBytes = u.Bytes
		}
	}
	return active
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
