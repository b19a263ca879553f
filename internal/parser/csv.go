package parser

import (
	"encoding/csv"
	"io"

	lserrors "github.com/logsphere/logsphere/internal/errors"
)

// parseCSV reads delimited text where the first row defines field names.
// Each subsequent row becomes one record keyed by those names.
func parseCSV(r io.Reader, emit EmitFunc) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return lserrors.NewParseError(lserrors.CodeMalformedInput, "csv header", err)
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return lserrors.NewParseError(lserrors.CodeMalformedInput, "csv row", err)
		}

		rec := make(Record, len(header))
		for i, name := range header {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}
