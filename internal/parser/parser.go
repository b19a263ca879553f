// Package parser turns raw log file bytes into sequences of loosely-typed
// records. Each parser streams records through an emit callback so large
// files never have to be buffered whole.
package parser

import (
	"io"
	"strings"

	lserrors "github.com/logsphere/logsphere/internal/errors"
)

// Record is one loosely-typed parsed entry: field name to value.
type Record map[string]interface{}

// EmitFunc receives each parsed record. Returning an error aborts the parse.
type EmitFunc func(Record) error

// Parse dispatches to the parser for the given file extension and streams
// every record through emit. Archive extensions are not handled here; see
// WalkArchive.
func Parse(ext string, r io.Reader, emit EmitFunc) error {
	switch strings.ToLower(ext) {
	case ".json":
		return parseJSON(r, emit)
	case ".csv":
		return parseCSV(r, emit)
	case ".log", ".txt":
		return parsePlain(r, emit)
	default:
		return lserrors.New(lserrors.ErrCategoryParse, lserrors.CodeUnsupportedFormat,
			"no parser for extension "+ext)
	}
}

// Supports reports whether ext has a non-archive parser.
func Supports(ext string) bool {
	switch strings.ToLower(ext) {
	case ".json", ".csv", ".log", ".txt":
		return true
	default:
		return false
	}
}
