package parser

import (
	"archive/zip"
	"io"
	"path/filepath"
	"strings"

	lserrors "github.com/logsphere/logsphere/internal/errors"
)

// ArchiveEntry describes one file inside a zip archive.
type ArchiveEntry struct {
	Name string
	Ext  string
	Size int64
}

// EntryFunc handles one archive entry and reports how many records it kept.
// An error from fn fails that entry only; WalkArchive records it and
// continues with the next entry.
type EntryFunc func(entry ArchiveEntry, r io.Reader) (int64, error)

// EntryResult reports the outcome of one archive entry.
type EntryResult struct {
	Entry   ArchiveEntry
	Records int64
	Err     error
}

// WalkArchive opens a zip archive and dispatches each regular file inside to
// fn. A corrupt or unreadable entry fails only that entry; the walk itself
// fails only when the archive container cannot be opened at all.
func WalkArchive(ra io.ReaderAt, size int64, fn EntryFunc) ([]EntryResult, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, lserrors.NewParseError(lserrors.CodeMalformedInput, "open zip archive", err)
	}

	var results []EntryResult
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}

		entry := ArchiveEntry{
			Name: filepath.Base(f.Name),
			Ext:  strings.ToLower(filepath.Ext(f.Name)),
			Size: int64(f.UncompressedSize64),
		}

		rc, err := f.Open()
		if err != nil {
			results = append(results, EntryResult{
				Entry: entry,
				Err:   lserrors.NewParseError(lserrors.CodeMalformedInput, "open zip entry "+f.Name, err),
			})
			continue
		}
		n, err := fn(entry, rc)
		rc.Close()
		results = append(results, EntryResult{Entry: entry, Records: n, Err: err})
	}
	return results, nil
}
