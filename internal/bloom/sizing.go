package bloom

import (
	"context"
	"math"

	"github.com/shirou/gopsutil/v4/mem"
)

// SizingReport records the outcome of a Size calculation, supplementing the
// feature the original implementation printed from its sizing trace: the
// realized false-positive rate and chosen (bits, hashers) for a fresh
// filter, or for the sysreq advisory subcommand.
type SizingReport struct {
	Bits           uint64
	Bytes          uint64
	NumHashers     int
	RealizedFPRate float64
	HitMemoryCap   bool
}

// memoryCapFraction is the fraction of total system memory the binary
// search's upper bound is allowed to consume.
const memoryCapFraction = 0.9

// SystemMemoryCapBytes returns 90% of total system memory, used as the
// binary search's upper bound when the caller doesn't supply an explicit
// cap. Returns 0 (meaning "no cap") if system memory can't be determined.
func SystemMemoryCapBytes() uint64 {
	vm, err := mem.VirtualMemoryWithContext(context.Background())
	if err != nil {
		return 0
	}
	return uint64(float64(vm.Total) * memoryCapFraction)
}

// Size computes the Bloom filter size via bounded binary search on
// [1, min(theoreticalCap, memCapBytes*8)] bits, targeting fpRate for n
// expected ngrams. If numHashers is 0, K is recomputed to the theoretical
// optimum at every candidate size; otherwise K is fixed. memCapBytes of 0
// means no memory cap is applied.
func Size(fpRate float64, n uint64, numHashers int, memCapBytes uint64) SizingReport {
	if n == 0 {
		n = 1
	}
	if fpRate <= 0 {
		fpRate = 1e-9
	}

	// A generous multiple of the classic optimal bit count as a safety
	// margin for the binary search's theoretical upper bound.
	theoreticalCap := uint64(math.Ceil(-float64(n)*math.Log(fpRate)/(math.Ln2*math.Ln2))) * 4
	if theoreticalCap < 8 {
		theoreticalCap = 8
	}

	upper := theoreticalCap
	if memCapBytes > 0 {
		if memBits := memCapBytes * 8; memBits < upper {
			upper = memBits
		}
	}
	if upper < 1 {
		upper = 1
	}

	kFor := func(m uint64) int {
		if numHashers > 0 {
			return numHashers
		}
		return OptimalK(m, n)
	}
	fpFor := func(m uint64) float64 {
		return FPRate(m, kFor(m), n)
	}

	hitCap := fpFor(upper) > fpRate
	best := upper
	if !hitCap {
		lo, hi := uint64(1), upper
		for lo < hi {
			mid := lo + (hi-lo)/2
			if fpFor(mid) <= fpRate {
				hi = mid
			} else {
				lo = mid + 1
			}
		}
		best = hi
		// Round up to a whole 32-bit word so the byte alignment below does
		// not shave off bits the target rate needs.
		if up := (best + 31) / 32 * 32; up <= upper {
			best = up
		}
	}

	bytes := alignBytesDown(best)
	m := bytes * 8
	k := kFor(m)
	return SizingReport{
		Bits:           m,
		Bytes:          bytes,
		NumHashers:     k,
		RealizedFPRate: fpFor(m),
		HitMemoryCap:   hitCap,
	}
}

// alignBytesDown rounds a bit count down to a byte count that is itself a
// multiple of 4 (one full 32-bit word), per the on-disk alignment rule.
func alignBytesDown(bitCount uint64) uint64 {
	bytes := bitCount / 8
	bytes -= bytes % 4
	if bytes == 0 {
		bytes = 4
	}
	return bytes
}
