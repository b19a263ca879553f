// Package bloom provides a probabilistic set used to pre-screen search
// terms against the index vocabulary without loading postings.
package bloom

import (
	"math"
	"sync"

	"github.com/spaolacci/murmur3"
)

// Filter is a bloom filter with no false negatives: if a term was
// added, Contains always returns true.
type Filter struct {
	mu        sync.RWMutex
	bits      []uint64
	numBits   uint64
	numHashes uint64
	count     uint64
}

// New creates a Filter with the given number of bits and hash functions.
func New(numBits, numHashes int) *Filter {
	if numBits <= 0 {
		numBits = 1024
	}
	if numHashes <= 0 {
		numHashes = 7
	}

	// Round up to whole 64-bit words.
	numWords := (numBits + 63) / 64

	return &Filter{
		bits:      make([]uint64, numWords),
		numBits:   uint64(numWords * 64),
		numHashes: uint64(numHashes),
	}
}

// NewWithEstimates sizes a Filter for the expected vocabulary size and
// target false positive rate.
func NewWithEstimates(expectedItems int, targetFPR float64) *Filter {
	numBits, numHashes := OptimalParameters(expectedItems, targetFPR)
	return New(numBits, numHashes)
}

// OptimalParameters computes bit and hash counts for n items at false
// positive rate p, using m = -n*ln(p)/ln(2)^2 and k = (m/n)*ln(2).
func OptimalParameters(expectedItems int, targetFPR float64) (numBits, numHashes int) {
	if expectedItems <= 0 {
		expectedItems = 1000
	}
	if targetFPR <= 0 || targetFPR >= 1 {
		targetFPR = 0.01
	}

	n := float64(expectedItems)
	m := -n * math.Log(targetFPR) / (math.Ln2 * math.Ln2)
	k := (m / n) * math.Ln2

	numBits = int(math.Ceil(m))
	numHashes = int(math.Ceil(k))

	if numBits < 64 {
		numBits = 64
	}
	if numHashes < 1 {
		numHashes = 1
	}
	return numBits, numHashes
}

// AddString adds a term to the filter.
func (f *Filter) AddString(term string) {
	f.Add([]byte(term))
}

// Add adds an item to the filter.
func (f *Filter) Add(item []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h1, h2 := hash128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		f.setBit((h1 + i*h2) % f.numBits)
	}
	f.count++
}

// ContainsString reports whether a term might be in the filter.
func (f *Filter) ContainsString(term string) bool {
	return f.Contains([]byte(term))
}

// Contains reports whether an item might be in the filter. A false
// return is definitive.
func (f *Filter) Contains(item []byte) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	h1, h2 := hash128(item)
	for i := uint64(0); i < f.numHashes; i++ {
		if !f.getBit((h1 + i*h2) % f.numBits) {
			return false
		}
	}
	return true
}

// Count returns the number of items added.
func (f *Filter) Count() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.count
}

// FalsePositiveRate estimates the current false positive rate from the
// fill ratio: (1 - e^(-k*n/m))^k.
func (f *Filter) FalsePositiveRate() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.count == 0 {
		return 0
	}

	k := float64(f.numHashes)
	n := float64(f.count)
	m := float64(f.numBits)
	return math.Pow(1-math.Exp(-k*n/m), k)
}

// hash128 derives two 64-bit hashes for double hashing.
func hash128(item []byte) (uint64, uint64) {
	h := murmur3.New128()
	h.Write(item)
	return h.Sum128()
}

func (f *Filter) setBit(pos uint64) {
	f.bits[pos/64] |= 1 << (pos % 64)
}

func (f *Filter) getBit(pos uint64) bool {
	return f.bits[pos/64]&(1<<(pos%64)) != 0
}
