package index

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang/snappy"

	"github.com/logsphere/logsphere/internal/bloom"
)

// Snapshot files inside the index directory. The bloom sidecar lets a
// restored snapshot pre-screen query terms without decoding postings.
const (
	snapshotFile = "snapshot.bin"
	vocabFile    = "vocab.bloom"
)

type snapshotPayload struct {
	Postings map[string]map[int64]int
	Docs     map[int64]DocMeta
	BuiltAt  time.Time
}

// SaveSnapshot writes the snapshot to dir, snappy-compressed, with a
// vocabulary bloom filter sidecar. Both files are written via temp
// file and rename so a crash never leaves a torn snapshot.
func SaveSnapshot(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create index dir: %w", err)
	}

	var buf bytes.Buffer
	payload := snapshotPayload{
		Postings: snap.postings,
		Docs:     snap.docs,
		BuiltAt:  snap.builtAt,
	}
	if err := gob.NewEncoder(&buf).Encode(&payload); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	compressed := snappy.Encode(nil, buf.Bytes())
	if err := writeAtomic(filepath.Join(dir, snapshotFile), compressed); err != nil {
		return err
	}

	return writeAtomic(filepath.Join(dir, vocabFile), bloom.SerializeCompressed(snap.vocab))
}

// LoadSnapshot reads a previously saved snapshot from dir. Returns
// (nil, nil) when no snapshot exists.
func LoadSnapshot(dir string) (*Snapshot, error) {
	compressed, err := os.ReadFile(filepath.Join(dir, snapshotFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
	}

	var payload snapshotPayload
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	snap := &Snapshot{
		postings: payload.Postings,
		docs:     payload.Docs,
		builtAt:  payload.BuiltAt,
	}

	// A missing or corrupt sidecar is recoverable: rebuild the filter
	// from the decoded vocabulary.
	vocabData, err := os.ReadFile(filepath.Join(dir, vocabFile))
	if err == nil {
		if vocab, verr := bloom.DeserializeCompressed(vocabData); verr == nil {
			snap.vocab = vocab
			return snap, nil
		}
	}

	vocab := bloom.NewWithEstimates(len(snap.postings), 0.01)
	for term := range snap.postings {
		vocab.AddString(term)
	}
	snap.vocab = vocab

	return snap, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
