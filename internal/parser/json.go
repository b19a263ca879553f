package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	lserrors "github.com/logsphere/logsphere/internal/errors"
)

// parseJSON handles three JSON layouts: a single object, an array of
// objects, and newline-delimited objects. Concatenated objects (including
// pretty-printed ones) decode through the same streaming path as NDJSON.
func parseJSON(r io.Reader, emit EmitFunc) error {
	br := bufio.NewReader(r)

	first, err := firstByte(br)
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return lserrors.NewParseError(lserrors.CodeMalformedInput, "read json input", err)
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	if first == '[' {
		return parseJSONArray(dec, emit)
	}
	return parseJSONStream(dec, emit)
}

// parseJSONArray decodes a top-level array, emitting one record per element.
func parseJSONArray(dec *json.Decoder, emit EmitFunc) error {
	if _, err := dec.Token(); err != nil {
		return lserrors.NewParseError(lserrors.CodeMalformedInput, "json array open", err)
	}
	for dec.More() {
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			return lserrors.NewParseError(lserrors.CodeMalformedInput, "json array element", err)
		}
		if err := emit(toRecord(v)); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return lserrors.NewParseError(lserrors.CodeMalformedInput, "json array close", err)
	}
	return nil
}

// parseJSONStream decodes successive top-level values until EOF.
func parseJSONStream(dec *json.Decoder, emit EmitFunc) error {
	decoded := 0
	for {
		var v interface{}
		err := dec.Decode(&v)
		if err == io.EOF {
			break
		}
		if err != nil {
			return lserrors.NewParseError(lserrors.CodeMalformedInput,
				fmt.Sprintf("json value %d", decoded+1), err)
		}
		decoded++
		if err := emit(toRecord(v)); err != nil {
			return err
		}
	}
	if decoded == 0 {
		return lserrors.New(lserrors.ErrCategoryParse, lserrors.CodeMalformedInput, "no json values in input")
	}
	return nil
}

// toRecord wraps non-object values so every record is a field map.
func toRecord(v interface{}) Record {
	if m, ok := v.(map[string]interface{}); ok {
		return Record(m)
	}
	return Record{"message": fmt.Sprint(v)}
}

// firstByte returns the first non-whitespace byte without consuming it.
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, err
		}
		return b, nil
	}
}
