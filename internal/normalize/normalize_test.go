package normalize

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/logsphere/logsphere/internal/parser"
	"github.com/logsphere/logsphere/pkg/types"
)

var ingestTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testNormalizer() *Normalizer {
	return NewWithClock(func() time.Time { return ingestTime })
}

func TestNormalize_CloudTrailRecord(t *testing.T) {
	rec := parser.Record{
		"eventTime":   "2026-02-20T08:30:00Z",
		"eventName":   "PutObject",
		"eventSource": "s3.amazonaws.com",
		"awsRegion":   "eu-west-1",
		"sourceIPAddress": "198.51.100.7",
		"userIdentity": map[string]interface{}{
			"principalId": "AIDA123",
			"userName":    "deploy-bot",
		},
		"errorMessage": "Access Denied",
	}

	ev := testNormalizer().Normalize(rec)

	want := time.Date(2026, 2, 20, 8, 30, 0, 0, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, want)
	}
	if ev.TimestampInferred {
		t.Error("timestamp came from the record, must not be inferred")
	}
	if ev.Service != "PutObject" {
		t.Errorf("Service = %q, want PutObject", ev.Service)
	}
	if ev.User != "AIDA123" {
		t.Errorf("User = %q, want principalId AIDA123", ev.User)
	}
	if ev.IP != "198.51.100.7" {
		t.Errorf("IP = %q", ev.IP)
	}
	if ev.Message != "Access Denied" {
		t.Errorf("Message = %q", ev.Message)
	}
}

func TestNormalize_TimestampFallback(t *testing.T) {
	ev := testNormalizer().Normalize(parser.Record{"message": "no time here"})

	if !ev.Timestamp.Equal(ingestTime) {
		t.Errorf("Timestamp = %v, want ingestion time", ev.Timestamp)
	}
	if !ev.TimestampInferred {
		t.Error("fallback timestamp must be flagged inferred")
	}
}

func TestNormalize_EpochTimestamps(t *testing.T) {
	tests := []struct {
		name string
		val  interface{}
		want time.Time
	}{
		{"seconds", json.Number("1776599400"), time.Unix(1776599400, 0).UTC()},
		{"milliseconds", json.Number("1776599400123"), time.UnixMilli(1776599400123).UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := testNormalizer().Normalize(parser.Record{"timestamp": tt.val, "message": "tick"})
			if !ev.Timestamp.Equal(tt.want) {
				t.Errorf("Timestamp = %v, want %v", ev.Timestamp, tt.want)
			}
			if ev.TimestampInferred {
				t.Error("epoch timestamp must not be inferred")
			}
		})
	}
}

func TestNormalize_LevelFromMessageScan(t *testing.T) {
	tests := []struct {
		message string
		want    types.Level
	}{
		{"FATAL: out of memory", types.LevelError},
		{"connection WARN slow", types.LevelWarn},
		{"debug trace enabled", types.LevelDebug},
		{"all systems nominal", types.LevelInfo},
	}

	for _, tt := range tests {
		ev := testNormalizer().Normalize(parser.Record{"message": tt.message})
		if ev.Level != tt.want {
			t.Errorf("level for %q = %s, want %s", tt.message, ev.Level, tt.want)
		}
	}
}

func TestNormalize_LevelFieldPriority(t *testing.T) {
	// An explicit severity field wins over message content.
	ev := testNormalizer().Normalize(parser.Record{
		"severity": "ERROR",
		"message":  "informational text",
	})
	if ev.Level != types.LevelError {
		t.Errorf("Level = %s, want ERROR", ev.Level)
	}
}

func TestNormalize_MessageJSONFallback(t *testing.T) {
	rec := parser.Record{"foo": "bar", "count": json.Number("3")}
	ev := testNormalizer().Normalize(rec)

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(ev.Message), &decoded); err != nil {
		t.Fatalf("fallback message is not JSON: %v", err)
	}
	if decoded["foo"] != "bar" {
		t.Errorf("fallback message lost fields: %s", ev.Message)
	}
}

func TestNormalize_RawIsLossless(t *testing.T) {
	rec := parser.Record{
		"message":     "hello",
		"customField": "preserved",
		"nested":      map[string]interface{}{"a": "b"},
	}
	ev := testNormalizer().Normalize(rec)

	if ev.Raw["customField"] != "preserved" {
		t.Error("unmapped fields must survive in Raw")
	}
	if ev.Raw["message"] != "hello" {
		t.Error("mapped fields must also survive in Raw")
	}
	nested, ok := ev.Raw["nested"].(map[string]interface{})
	if !ok || nested["a"] != "b" {
		t.Error("nested structures must survive in Raw")
	}
}
