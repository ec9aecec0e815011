// Package syncx holds small locking helpers shared by the in-memory stores.
package syncx

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultStripes is used when NewStriped receives a non-positive size.
const DefaultStripes = 64

// Striped is a fixed table of mutexes addressed by key hash. Two keys that
// land on different stripes never contend.
type Striped struct {
	locks []sync.Mutex
	mask  uint64
}

// NewStriped builds a table with n stripes rounded up to a power of two.
func NewStriped(n int) *Striped {
	if n <= 0 {
		n = DefaultStripes
	}
	size := 1
	for size < n {
		size <<= 1
	}
	return &Striped{
		locks: make([]sync.Mutex, size),
		mask:  uint64(size - 1),
	}
}

// Len reports the number of stripes.
func (s *Striped) Len() int {
	return len(s.locks)
}

// For returns the mutex guarding hash h.
func (s *Striped) For(h uint64) *sync.Mutex {
	return &s.locks[h&s.mask]
}

// Hash64 mixes a handful of integer key parts into a stripe hash.
func Hash64(parts ...int64) uint64 {
	var buf [8 * 4]byte
	b := buf[:0]
	for _, p := range parts {
		b = binary.LittleEndian.AppendUint64(b, uint64(p))
	}
	return xxhash.Sum64(b)
}

// HashString mixes integer parts with a trailing string component.
func HashString(s string, parts ...int64) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(buf[:], uint64(p))
		_, _ = d.Write(buf[:])
	}
	_, _ = d.WriteString(s)
	return d.Sum64()
}
