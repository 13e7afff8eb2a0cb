// Package bloom implements the fixed-size, lock-free, bit-packed Bloom
// filter shared by every worker: atomic OR on insert, relaxed atomic load
// on test, a binary-search sizing optimizer, and a little-endian on-disk
// codec.
package bloom

import (
	"math"
	"math/bits"
	"runtime"
	"sync"
	"sync/atomic"
)

// Seed is one hash function's fixed four-tuple of 64-bit mixing constants.
type Seed [4]uint64

// Filter is a W-word, 32-bit-per-word bit-packed membership structure.
// All mutation is atomic OR; all reads are relaxed atomic loads. Both
// operations are monotone, so concurrent access never corrupts state.
type Filter struct {
	words []uint32
	seeds []Seed
}

// New creates an empty filter of the given bit count (rounded to whole
// 32-bit words) with freshly generated seeds for k hash functions.
func New(bits uint64, k int) *Filter {
	w := (bits + 31) / 32
	if w == 0 {
		w = 1
	}
	return &Filter{
		words: make([]uint32, w),
		seeds: randomSeeds(k),
	}
}

// NewWithSeeds builds a filter from an explicit word count and seed set,
// used by the on-disk codec when loading an existing filter.
func NewWithSeeds(words []uint32, seeds []Seed) *Filter {
	return &Filter{words: words, seeds: seeds}
}

// NumHashers returns K, the number of seeded hash functions.
func (f *Filter) NumHashers() int { return len(f.seeds) }

// NumWords returns W, the number of 32-bit words backing the filter.
func (f *Filter) NumWords() int { return len(f.words) }

// NumBits returns the total addressable bit count, 32*W.
func (f *Filter) NumBits() uint64 { return uint64(len(f.words)) * 32 }

// Seeds returns the filter's fixed hash seeds.
func (f *Filter) Seeds() []Seed { return f.seeds }

// Hashes computes the K seeded hashes of an ordered token sequence (an
// n-gram shingle).
func (f *Filter) Hashes(tokens []string) []uint64 {
	base := hashTokens(tokens)
	out := make([]uint64, len(f.seeds))
	for i, seed := range f.seeds {
		out[i] = mix(base, seed)
	}
	return out
}

// Insert atomically ORs every hash's bit into the filter.
func (f *Filter) Insert(hashes []uint64) {
	w := uint64(len(f.words))
	for _, h := range hashes {
		word := (h / 32) % w
		bit := h % 32
		atomic.OrUint32(&f.words[word], uint32(1)<<bit)
	}
}

// Contains reports whether every hash's bit is set.
func (f *Filter) Contains(hashes []uint64) bool {
	w := uint64(len(f.words))
	for _, h := range hashes {
		word := (h / 32) % w
		bit := h % 32
		if atomic.LoadUint32(&f.words[word])&(uint32(1)<<bit) == 0 {
			return false
		}
	}
	return true
}

// Sparsity returns the fraction of set bits, computed by a parallel
// population count over the backing words.
func (f *Filter) Sparsity() float64 {
	if len(f.words) == 0 {
		return 0
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > len(f.words) {
		workers = len(f.words)
	}
	if workers < 1 {
		workers = 1
	}

	chunk := (len(f.words) + workers - 1) / workers
	var wg sync.WaitGroup
	partials := make([]uint64, workers)
	for i := 0; i < workers; i++ {
		start := i * chunk
		end := start + chunk
		if start >= len(f.words) {
			break
		}
		if end > len(f.words) {
			end = len(f.words)
		}
		wg.Add(1)
		go func(i, start, end int) {
			defer wg.Done()
			var count uint64
			for j := start; j < end; j++ {
				count += uint64(bits.OnesCount32(atomic.LoadUint32(&f.words[j])))
			}
			partials[i] = count
		}(i, start, end)
	}
	wg.Wait()

	var set uint64
	for _, p := range partials {
		set += p
	}
	return float64(set) / float64(f.NumBits())
}

const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// hashTokens combines an ordered token sequence into a single base hash via
// FNV-1a, with a separator byte between tokens so ("ab","c") and ("a","bc")
// never collide.
func hashTokens(tokens []string) uint64 {
	h := fnvOffset64
	for _, t := range tokens {
		for i := 0; i < len(t); i++ {
			h ^= uint64(t[i])
			h *= fnvPrime64
		}
		h ^= 0xff
		h *= fnvPrime64
	}
	return h
}

// mix derives one seeded hash from the base hash via a murmur-style
// finalizer keyed by the seed's four mixing constants.
func mix(base uint64, seed Seed) uint64 {
	h := base ^ seed[0]
	h *= seed[1] | 1
	h = bits.RotateLeft64(h, 31)
	h ^= seed[2]
	h *= seed[3] | 1
	h ^= h >> 33
	return h
}

// OptimalK returns the theoretically optimal hasher count ceil((m/n)*ln2)
// for m bits and n expected elements.
func OptimalK(m, n uint64) int {
	if n == 0 {
		n = 1
	}
	k := math.Ceil(float64(m) / float64(n) * math.Ln2)
	if k < 1 {
		k = 1
	}
	return int(k)
}

// FPRate returns the theoretical false-positive probability P(fp) =
// (1 - (1 - 1/m)^(kn))^k for m bits, k hashers and n expected elements.
func FPRate(m uint64, k int, n uint64) float64 {
	if m == 0 {
		return 1
	}
	inner := math.Pow(1-1/float64(m), float64(k)*float64(n))
	return math.Pow(1-inner, float64(k))
}
