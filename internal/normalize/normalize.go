// Package normalize maps loosely-typed parser records onto the canonical
// Event model. Field mapping is heuristic: ordered lists of known keys are
// tried in priority order, and everything in the source record is retained
// verbatim in the event's raw field map so the transform is lossless.
package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/logsphere/logsphere/internal/parser"
	"github.com/logsphere/logsphere/pkg/types"
)

// Key priority lists. First match wins; extending support for a new log
// shape means appending a key here, not adding a conditional.
var (
	timestampKeys = []string{"eventTime", "timestamp", "@timestamp", "time", "ts", "ts_event", "eventDate"}
	levelKeys     = []string{"level", "severity", "logLevel", "log_level", "loglevel"}
	serviceKeys   = []string{"operationName", "eventName", "service", "serviceName", "logName", "component", "source"}
	userKeys      = []string{"userIdentity", "caller", "user", "userName", "principalId"}
	ipKeys        = []string{"sourceIPAddress", "ip", "clientIP", "callerIpAddress", "remoteAddr"}
	messageKeys   = []string{"message", "msg", "text", "errorMessage", "description"}
)

// timestampLayouts are tried in order for string timestamp values.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"02/Jan/2006:15:04:05 -0700",
	"2006-01-02",
}

// levelTokens are scanned, in order, inside unstructured messages when no
// level-like key exists.
var levelTokens = []string{"FATAL", "CRITICAL", "ERROR", "WARNING", "WARN", "DEBUG", "TRACE", "INFO"}

// Normalizer converts parser records into events.
type Normalizer struct {
	now func() time.Time
}

// New creates a Normalizer using the wall clock for ingestion-time fallback.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock creates a Normalizer with a fixed clock, for tests.
func NewWithClock(now func() time.Time) *Normalizer {
	return &Normalizer{now: now}
}

// Normalize maps one record to a canonical event. The returned event always
// has a timestamp: the extracted one, or the ingestion time with
// TimestampInferred set.
func (n *Normalizer) Normalize(rec parser.Record) *types.Event {
	e := &types.Event{
		Level:   types.LevelUnknown,
		Message: extractMessage(rec),
		Raw:     map[string]interface{}(rec),
	}

	if ts, ok := extractTimestamp(rec); ok {
		e.Timestamp = ts
	} else {
		e.Timestamp = n.now().UTC()
		e.TimestampInferred = true
	}

	if lvl, ok := firstString(rec, levelKeys); ok {
		e.Level = types.ParseLevel(lvl)
	} else {
		e.Level = scanMessageLevel(e.Message)
	}

	if svc, ok := firstString(rec, serviceKeys); ok {
		e.Service = svc
	}
	e.User = extractUser(rec)
	if ip, ok := firstString(rec, ipKeys); ok {
		e.IP = ip
	}

	return e
}

// extractTimestamp tries the timestamp key list in priority order.
func extractTimestamp(rec parser.Record) (time.Time, bool) {
	for _, key := range timestampKeys {
		v, ok := rec[key]
		if !ok {
			continue
		}
		if ts, ok := coerceTimestamp(v); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// coerceTimestamp parses a raw value as a timestamp. Numeric values are
// interpreted as Unix epochs (seconds, milliseconds, or nanoseconds by
// magnitude).
func coerceTimestamp(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts, true
			}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochToTime(n)
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return epochToTime(n)
		}
	case float64:
		return epochToTime(int64(t))
	}
	return time.Time{}, false
}

func epochToTime(n int64) (time.Time, bool) {
	switch {
	case n <= 0:
		return time.Time{}, false
	case n < 1e11: // seconds
		return time.Unix(n, 0).UTC(), true
	case n < 1e14: // milliseconds
		return time.UnixMilli(n).UTC(), true
	default: // nanoseconds
		return time.Unix(0, n).UTC(), true
	}
}

// extractMessage tries the message key list, then falls back to a JSON
// rendering of the whole record so no event ends up without text.
func extractMessage(rec parser.Record) string {
	for _, key := range messageKeys {
		if v, ok := rec[key]; ok {
			if s := stringify(v); s != "" {
				return s
			}
		}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Sprint(map[string]interface{}(rec))
	}
	return string(b)
}

// extractUser handles both flat user fields and the nested AWS userIdentity
// object (principalId, then userName, then arn).
func extractUser(rec parser.Record) string {
	for _, key := range userKeys {
		v, ok := rec[key]
		if !ok {
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok {
			for _, k := range []string{"principalId", "userName", "arn"} {
				if s := stringify(nested[k]); s != "" {
					return s
				}
			}
			continue
		}
		if s := stringify(v); s != "" {
			return s
		}
	}
	return ""
}

// scanMessageLevel finds the highest-priority level token inside an
// unstructured message. Matching is case-insensitive; no token means INFO,
// matching how bare log lines are conventionally treated.
func scanMessageLevel(message string) types.Level {
	upper := strings.ToUpper(message)
	for _, token := range levelTokens {
		if strings.Contains(upper, token) {
			return types.ParseLevel(token)
		}
	}
	return types.LevelInfo
}

func firstString(rec parser.Record, keys []string) (string, bool) {
	for _, key := range keys {
		if v, ok := rec[key]; ok {
			if s := stringify(v); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
