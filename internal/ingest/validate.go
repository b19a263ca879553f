package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/logsphere/logsphere/internal/config"
	lserrors "github.com/logsphere/logsphere/internal/errors"
)

// ValidateFile runs the precondition checks for a submission: allowed
// extension and size bounds. It runs before any parsing; a violation
// rejects the file outright with nothing persisted.
func ValidateFile(cfg *config.Config, filename string, size int64) (ext string, err error) {
	ext = strings.ToLower(filepath.Ext(filename))

	if !cfg.AllowsExtension(ext) {
		return ext, lserrors.NewValidationError(lserrors.CodeInvalidExtension,
			fmt.Sprintf("extension %q not allowed", ext))
	}
	if size <= 0 {
		return ext, lserrors.NewValidationError(lserrors.CodeEmptyFile, "file is empty")
	}
	if size > cfg.Ingest.MaxUploadBytes {
		return ext, lserrors.NewValidationError(lserrors.CodeFileTooLarge,
			fmt.Sprintf("file size %d exceeds limit %d", size, cfg.Ingest.MaxUploadBytes))
	}
	return ext, nil
}
