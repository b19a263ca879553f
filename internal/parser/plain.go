package parser

import (
	"bufio"
	"io"
	"strings"

	lserrors "github.com/logsphere/logsphere/internal/errors"
)

// maxLineBytes bounds a single unstructured log line.
const maxLineBytes = 1024 * 1024

// parsePlain treats input as line-oriented text: one record per non-blank
// line, the whole line as the message.
func parsePlain(r io.Reader, emit EmitFunc) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if len(line) < 3 {
			continue
		}
		if err := emit(Record{"message": line}); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return lserrors.NewParseError(lserrors.CodeMalformedInput, "scan lines", err)
	}
	return nil
}
