// Package index maintains the TF-IDF inverted index over normalized
// events. A rebuild discards all postings and recomputes them from the
// full event set, then publishes the result as an immutable snapshot.
package index

import (
	"math"
	"time"

	"github.com/logsphere/logsphere/internal/bloom"
)

// DocMeta carries the per-event fields the query engine needs for
// filtering and tie-breaking without going back to the ledger.
type DocMeta struct {
	EventID      int64
	SubmissionID string
	Timestamp    time.Time
	Level        string
	Service      string
	Message      string
}

// Snapshot is one fully built index generation. It is never mutated
// after a rebuild publishes it, so readers need no locking.
type Snapshot struct {
	postings map[string]map[int64]int // term -> event id -> term frequency
	docs     map[int64]DocMeta
	vocab    *bloom.Filter
	builtAt  time.Time
}

// NumDocs returns the number of indexed events.
func (s *Snapshot) NumDocs() int {
	return len(s.docs)
}

// VocabSize returns the number of distinct terms.
func (s *Snapshot) VocabSize() int {
	return len(s.postings)
}

// BuiltAt returns when this snapshot was built.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Doc returns the metadata for an indexed event.
func (s *Snapshot) Doc(eventID int64) (DocMeta, bool) {
	meta, ok := s.docs[eventID]
	return meta, ok
}

// MayContain reports whether a term can be in the vocabulary. A false
// return is definitive and skips the postings lookup.
func (s *Snapshot) MayContain(term string) bool {
	if s.vocab == nil {
		return true
	}
	return s.vocab.ContainsString(term)
}

// Postings returns the event ids and term frequencies for a term, or
// nil if the term is not in the vocabulary.
func (s *Snapshot) Postings(term string) map[int64]int {
	if !s.MayContain(term) {
		return nil
	}
	return s.postings[term]
}

// TermWeights returns the TF-IDF weight of a term for every event it
// occurs in, or nil if the term is not in the vocabulary.
func (s *Snapshot) TermWeights(term string) map[int64]float64 {
	posting := s.Postings(term)
	if posting == nil {
		return nil
	}

	idf := s.idf(len(posting))
	weights := make(map[int64]float64, len(posting))
	for eventID, tf := range posting {
		weights[eventID] = float64(tf) * idf
	}
	return weights
}

// Weight returns the TF-IDF weight tf * log(N/df) for a term in an
// event, or zero when the term does not occur there.
func (s *Snapshot) Weight(term string, eventID int64) float64 {
	posting := s.Postings(term)
	if posting == nil {
		return 0
	}
	tf, ok := posting[eventID]
	if !ok {
		return 0
	}
	return float64(tf) * s.idf(len(posting))
}

func (s *Snapshot) idf(df int) float64 {
	if df == 0 {
		return 0
	}
	return math.Log(float64(len(s.docs)) / float64(df))
}

// accumulator builds a snapshot one document at a time.
type accumulator struct {
	postings map[string]map[int64]int
	docs     map[int64]DocMeta
}

func newAccumulator() *accumulator {
	return &accumulator{
		postings: make(map[string]map[int64]int),
		docs:     make(map[int64]DocMeta),
	}
}

// add indexes one document. Documents whose text yields no tokens are
// skipped entirely.
func (a *accumulator) add(meta DocMeta, text string) {
	counts := TermCounts(text)
	if len(counts) == 0 {
		return
	}

	a.docs[meta.EventID] = meta
	for term, tf := range counts {
		posting := a.postings[term]
		if posting == nil {
			posting = make(map[int64]int)
			a.postings[term] = posting
		}
		posting[meta.EventID] = tf
	}
}

// seal freezes the accumulated state into a Snapshot.
func (a *accumulator) seal(builtAt time.Time) *Snapshot {
	vocab := bloom.NewWithEstimates(len(a.postings), 0.01)
	for term := range a.postings {
		vocab.AddString(term)
	}

	return &Snapshot{
		postings: a.postings,
		docs:     a.docs,
		vocab:    vocab,
		builtAt:  builtAt,
	}
}
