package bloom

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/snappy"
)

// Serialized layout: 8 bytes numBits, 8 bytes numHashes, 8 bytes count
// (all little-endian), then the snappy-compressed bit array.
const headerSize = 24

// SerializeCompressed serializes the filter with a snappy-compressed
// bit array.
func SerializeCompressed(f *Filter) []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()

	bitData := make([]byte, len(f.bits)*8)
	for i, word := range f.bits {
		binary.LittleEndian.PutUint64(bitData[i*8:(i+1)*8], word)
	}

	compressed := snappy.Encode(nil, bitData)

	buf := make([]byte, headerSize+len(compressed))
	binary.LittleEndian.PutUint64(buf[0:8], f.numBits)
	binary.LittleEndian.PutUint64(buf[8:16], f.numHashes)
	binary.LittleEndian.PutUint64(buf[16:24], f.count)
	copy(buf[headerSize:], compressed)

	return buf
}

// DeserializeCompressed reconstructs a filter serialized by
// SerializeCompressed.
func DeserializeCompressed(data []byte) (*Filter, error) {
	if len(data) < headerSize {
		return nil, errors.New("bloom: compressed data too short")
	}

	numBits := binary.LittleEndian.Uint64(data[0:8])
	numHashes := binary.LittleEndian.Uint64(data[8:16])
	count := binary.LittleEndian.Uint64(data[16:24])

	if numBits == 0 || numHashes == 0 {
		return nil, errors.New("bloom: invalid filter parameters")
	}

	bitData, err := snappy.Decode(nil, data[headerSize:])
	if err != nil {
		return nil, fmt.Errorf("bloom: snappy decompress failed: %w", err)
	}

	numWords := (numBits + 63) / 64
	if uint64(len(bitData)) < numWords*8 {
		return nil, fmt.Errorf("bloom: decompressed data too short: expected %d bytes, got %d", numWords*8, len(bitData))
	}

	bits := make([]uint64, numWords)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(bitData[i*8 : (i+1)*8])
	}

	return &Filter{
		bits:      bits,
		numBits:   numBits,
		numHashes: numHashes,
		count:     count,
	}, nil
}
