package normalize

import (
	"strings"

	"github.com/logsphere/logsphere/internal/parser"
	"github.com/logsphere/logsphere/pkg/types"
)

// Detection rules per provider. A record casts at most one field vote and
// one keyword vote per provider; field matches carry more weight because
// provider-specific field names are a far stronger signal than free-text
// keywords.
const (
	fieldVoteWeight   = 2
	keywordVoteWeight = 1
)

type providerSignals struct {
	provider types.CloudProvider
	fields   []string
	keywords []string
}

var detectionRules = []providerSignals{
	{
		provider: types.CloudAWS,
		fields:   []string{"eventName", "eventSource", "awsRegion"},
		keywords: []string{"amazonaws.com", "cloudtrail", "s3"},
	},
	{
		provider: types.CloudAzure,
		fields:   []string{"operationName", "resourceId", "subscriptionId"},
		keywords: []string{"azure", "microsoft", "windows.net"},
	},
	{
		provider: types.CloudGCP,
		fields:   []string{"protoPayload", "logName", "insertId"},
		keywords: []string{"googleapis", "gcp", "google"},
	},
}

// DetectProvider classifies a file by majority vote across its sampled
// records. The provider with the highest total score wins; a tie between
// providers, or no matching signal at all, resolves to CloudOther. The
// function is pure so the rule set stays unit-testable without the
// pipeline.
func DetectProvider(records []parser.Record) types.CloudProvider {
	scores := map[types.CloudProvider]int{}
	for _, rec := range records {
		for provider, score := range recordVotes(rec) {
			scores[provider] += score
		}
	}

	best := types.CloudOther
	bestScore := 0
	tied := false
	for _, rule := range detectionRules {
		score := scores[rule.provider]
		switch {
		case score > bestScore:
			best = rule.provider
			bestScore = score
			tied = false
		case score == bestScore && score > 0:
			tied = true
		}
	}

	if bestScore == 0 || tied {
		return types.CloudOther
	}
	return best
}

// RecordProvider classifies a single record. It returns CloudOther unless
// the record carries a provider-specific field, the only signal strong
// enough to override a file-level classification per event.
func RecordProvider(rec parser.Record) types.CloudProvider {
	for _, rule := range detectionRules {
		for _, field := range rule.fields {
			if _, ok := rec[field]; ok {
				return rule.provider
			}
		}
	}
	return types.CloudOther
}

// recordVotes scores one record against every provider's rule set.
func recordVotes(rec parser.Record) map[types.CloudProvider]int {
	message := strings.ToLower(extractMessage(rec))

	votes := map[types.CloudProvider]int{}
	for _, rule := range detectionRules {
		for _, field := range rule.fields {
			if _, ok := rec[field]; ok {
				votes[rule.provider] += fieldVoteWeight
				break
			}
		}
		for _, keyword := range rule.keywords {
			if strings.Contains(message, keyword) {
				votes[rule.provider] += keywordVoteWeight
				break
			}
		}
	}
	return votes
}
