// Package types provides core data types for LogSphere.
package types

import (
	"strings"
	"time"
)

// Level is the normalized severity of an event.
type Level string

const (
	LevelError   Level = "ERROR"
	LevelWarn    Level = "WARN"
	LevelInfo    Level = "INFO"
	LevelDebug   Level = "DEBUG"
	LevelUnknown Level = "UNKNOWN"
)

// ParseLevel normalizes a raw severity string to a Level.
// Matching is case-insensitive; values that map to none of the known
// severities (including empty strings) yield LevelUnknown.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR", "ERR", "FATAL", "CRITICAL", "CRIT", "SEVERE", "EMERGENCY", "ALERT":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "INFO", "INFORMATION", "INFORMATIONAL", "NOTICE":
		return LevelInfo
	case "DEBUG", "TRACE", "VERBOSE", "FINE":
		return LevelDebug
	default:
		return LevelUnknown
	}
}

// CloudProvider identifies the cloud platform a log file originated from.
type CloudProvider string

const (
	CloudAWS   CloudProvider = "aws"
	CloudAzure CloudProvider = "azure"
	CloudGCP   CloudProvider = "gcp"
	CloudOther CloudProvider = "other"
)

// AllProviders lists every provider in cost-comparison display order.
func AllProviders() []CloudProvider {
	return []CloudProvider{CloudAWS, CloudAzure, CloudGCP, CloudOther}
}

// SubmissionStatus tracks a file submission through the ingestion pipeline.
type SubmissionStatus string

const (
	StatusPending SubmissionStatus = "pending"
	StatusParsed  SubmissionStatus = "parsed"
	// StatusPartial marks archive submissions where some entries ingested
	// and others failed.
	StatusPartial SubmissionStatus = "partial"
	StatusFailed  SubmissionStatus = "failed"
)

// FileSubmission is the metadata record for one uploaded or imported file.
// Fields other than Status, CloudType, Sampled, EventCount and ErrorMsg are
// immutable once the file has been parsed.
type FileSubmission struct {
	ID        string           `json:"id"`
	Filename  string           `json:"filename"`
	Extension string           `json:"extension"`
	SizeBytes int64            `json:"size_bytes"`
	CloudType CloudProvider    `json:"cloud_type,omitempty"`
	Status    SubmissionStatus `json:"status"`

	// Sampled is true when the normalizer kept only a subset of the file's
	// records to bound memory. OriginalCount always records the true number
	// of records seen before sampling.
	Sampled       bool  `json:"sampled"`
	OriginalCount int64 `json:"original_count"`
	EventCount    int64 `json:"event_count"`

	ErrorMsg   string    `json:"error_msg,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Event is one normalized log record. Events are immutable after creation;
// re-ingesting a file creates new events rather than mutating existing ones.
type Event struct {
	ID           int64  `json:"id"`
	SubmissionID string `json:"submission_id"`

	// Timestamp is the event time extracted from the record, or the
	// ingestion time when no timestamp-like field could be parsed.
	// TimestampInferred marks the fallback case.
	Timestamp         time.Time `json:"timestamp"`
	TimestampInferred bool      `json:"timestamp_inferred,omitempty"`

	Level   Level  `json:"level"`
	Service string `json:"service,omitempty"`
	User    string `json:"user,omitempty"`
	IP      string `json:"ip,omitempty"`
	Message string `json:"message"`

	// Raw preserves every field of the source record verbatim so the
	// normalization is lossless.
	Raw map[string]interface{} `json:"raw,omitempty"`

	CloudType CloudProvider `json:"cloud_type,omitempty"`
}

// EventFilter selects a subset of events from the ledger or a result set.
// Zero values mean "no constraint" for that dimension.
type EventFilter struct {
	Level        Level
	Service      string // substring match, case-insensitive
	SubmissionID string
	From         time.Time
	To           time.Time
	Limit        int
}

// Matches reports whether the event passes every set constraint.
// Events failing any constraint are excluded entirely, never down-weighted.
func (f EventFilter) Matches(e *Event) bool {
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Service != "" && !strings.Contains(strings.ToLower(e.Service), strings.ToLower(f.Service)) {
		return false
	}
	if f.SubmissionID != "" && e.SubmissionID != f.SubmissionID {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}
