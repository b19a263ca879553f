package parser

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	lserrors "github.com/logsphere/logsphere/internal/errors"
)

func collect(t *testing.T, ext, input string) ([]Record, error) {
	t.Helper()
	var records []Record
	err := Parse(ext, strings.NewReader(input), func(rec Record) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

func TestParse_JSONArray(t *testing.T) {
	records, err := collect(t, ".json", `[{"level":"ERROR","message":"boom"},{"level":"INFO","message":"ok"}]`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["message"] != "boom" {
		t.Errorf("records[0][message] = %v, want boom", records[0]["message"])
	}
}

func TestParse_NDJSON(t *testing.T) {
	input := `{"message":"first"}
{"message":"second"}
{"message":"third"}`
	records, err := collect(t, ".json", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
}

func TestParse_ConcatenatedPrettyJSON(t *testing.T) {
	input := `{
  "message": "first"
}
{
  "message": "second"
}`
	records, err := collect(t, ".json", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestParse_JSONScalarWrapped(t *testing.T) {
	records, err := collect(t, ".json", `["plain string entry"]`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0]["message"] != "plain string entry" {
		t.Errorf("non-object entries should wrap as message, got %v", records[0])
	}
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := collect(t, ".json", `{"broken": `)
	if err == nil {
		t.Fatal("expected MALFORMED_INPUT")
	}
	var lse *lserrors.LogSphereError
	if !errors.As(err, &lse) || lse.Code != lserrors.CodeMalformedInput {
		t.Errorf("expected MALFORMED_INPUT, got %v", err)
	}
}

func TestParse_CSV(t *testing.T) {
	input := "timestamp,level,message\n2026-03-01T10:00:00Z,ERROR,disk full\n2026-03-01T10:01:00Z,INFO,recovered"
	records, err := collect(t, ".csv", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["level"] != "ERROR" || records[0]["message"] != "disk full" {
		t.Errorf("header fields not mapped: %v", records[0])
	}
}

func TestParse_CSVEmptyFile(t *testing.T) {
	records, err := collect(t, ".csv", "")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("empty csv should yield zero records, got %d", len(records))
	}
}

func TestParse_CSVRaggedRow(t *testing.T) {
	_, err := collect(t, ".csv", "a,b\n1,2,3\n")
	if err == nil {
		t.Fatal("expected MALFORMED_INPUT for ragged row")
	}
}

func TestParse_PlainText(t *testing.T) {
	input := "first log line\nok\nx\n\nanother entry here"
	records, err := collect(t, ".log", input)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// Lines shorter than three characters are skipped.
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0]["message"] != "first log line" {
		t.Errorf("records[0] = %v", records[0])
	}
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := collect(t, ".xml", "<log/>")
	if err == nil {
		t.Fatal("expected UNSUPPORTED_FORMAT")
	}
	var lse *lserrors.LogSphereError
	if !errors.As(err, &lse) || lse.Code != lserrors.CodeUnsupportedFormat {
		t.Errorf("expected UNSUPPORTED_FORMAT, got %v", err)
	}
}

func TestSupports(t *testing.T) {
	for _, ext := range []string{".json", ".csv", ".log", ".txt"} {
		if !Supports(ext) {
			t.Errorf("Supports(%s) = false", ext)
		}
	}
	if Supports(".zip") {
		t.Error("zip is handled by WalkArchive, not Parse")
	}
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestWalkArchive_PartialFailure(t *testing.T) {
	data := buildZip(t, map[string]string{
		"good.json": `[{"message":"fine"}]`,
		"bad.json":  `{"broken": `,
	})

	var parsed int
	results, err := WalkArchive(bytes.NewReader(data), int64(len(data)), func(entry ArchiveEntry, r io.Reader) (int64, error) {
		var kept int64
		err := Parse(entry.Ext, r, func(rec Record) error {
			parsed++
			kept++
			return nil
		})
		return kept, err
	})
	if err != nil {
		t.Fatalf("WalkArchive failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d entry results, want 2", len(results))
	}
	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			if res.Entry.Name != "bad.json" {
				t.Errorf("unexpected failed entry %s", res.Entry.Name)
			}
			continue
		}
		if res.Records != 1 {
			t.Errorf("entry %s records = %d, want 1", res.Entry.Name, res.Records)
		}
	}
	if failed != 1 {
		t.Errorf("failed entries = %d, want 1", failed)
	}
	if parsed != 1 {
		t.Errorf("parsed records = %d, want 1", parsed)
	}
}

func TestWalkArchive_NotAZip(t *testing.T) {
	data := []byte("definitely not a zip")
	_, err := WalkArchive(bytes.NewReader(data), int64(len(data)), func(entry ArchiveEntry, r io.Reader) (int64, error) {
		return 0, nil
	})
	if err == nil {
		t.Fatal("expected MALFORMED_INPUT for invalid container")
	}
	var lse *lserrors.LogSphereError
	if !errors.As(err, &lse) || lse.Code != lserrors.CodeMalformedInput {
		t.Errorf("expected MALFORMED_INPUT, got %v", err)
	}
}
