package bloom

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xufeisofly/bff/internal/bfferr"
)

// TestMonotonicity is the spec §8 invariant: after any sequence of
// inserts, Contains returns true for every previously inserted value.
func TestMonotonicity(t *testing.T) {
	f := New(1<<16, 4)
	shingles := [][]string{
		{"a", "b", "c"},
		{"b", "c", "d"},
		{"the", "quick", "brown", "fox"},
	}
	for _, s := range shingles {
		f.Insert(f.Hashes(s))
	}
	for _, s := range shingles {
		if !f.Contains(f.Hashes(s)) {
			t.Errorf("Contains(%v) = false after insert, want true", s)
		}
	}
}

func TestContainsFalseBeforeInsert(t *testing.T) {
	f := New(1<<16, 4)
	if f.Contains(f.Hashes([]string{"never", "inserted"})) {
		t.Errorf("Contains() = true before any insert, want false")
	}
}

// TestRoundTrip is the spec §8 invariant: write then read yields an
// identical filter (seeds, K, bit contents).
func TestRoundTrip(t *testing.T) {
	f := New(1024, 3)
	f.Insert(f.Hashes([]string{"round", "trip", "test"}))

	var buf bytes.Buffer
	if err := f.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := ReadFrom(&buf)
	if err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	if got.NumHashers() != f.NumHashers() {
		t.Errorf("NumHashers = %d, want %d", got.NumHashers(), f.NumHashers())
	}
	if got.NumWords() != f.NumWords() {
		t.Errorf("NumWords = %d, want %d", got.NumWords(), f.NumWords())
	}
	for i := range f.Seeds() {
		if got.Seeds()[i] != f.Seeds()[i] {
			t.Errorf("Seeds()[%d] = %v, want %v", i, got.Seeds()[i], f.Seeds()[i])
		}
	}
	if !got.Contains(got.Hashes([]string{"round", "trip", "test"})) {
		t.Errorf("round-tripped filter lost a previously inserted shingle")
	}
}

func TestReadFromRejectsBadMagic(t *testing.T) {
	buf := bytes.NewBuffer(make([]byte, 32))
	_, err := ReadFrom(buf)
	if !errors.Is(err, bfferr.ErrInvalidFile) {
		t.Errorf("ReadFrom garbage = %v, want ErrInvalidFile", err)
	}
}

func TestOptimalK(t *testing.T) {
	if k := OptimalK(1000, 100); k < 1 {
		t.Errorf("OptimalK(1000, 100) = %d, want >= 1", k)
	}
}

// TestSizingCorrectness is the spec §8 invariant: the realized FP rate is
// at or under the target unless the memory cap was hit.
func TestSizingCorrectness(t *testing.T) {
	report := Size(0.01, 10000, 0, 0)
	if report.HitMemoryCap {
		t.Fatalf("unexpected memory cap hit with no cap supplied")
	}
	if report.RealizedFPRate > 0.01 {
		t.Errorf("RealizedFPRate = %v, want <= 0.01", report.RealizedFPRate)
	}
	if report.Bytes%4 != 0 {
		t.Errorf("Bytes = %d, not a multiple of 4", report.Bytes)
	}
}

func TestSizingHitsMemoryCap(t *testing.T) {
	report := Size(1e-12, 10_000_000, 0, 64)
	if !report.HitMemoryCap {
		t.Errorf("expected a tiny memory cap to be hit")
	}
	if report.Bytes > 64 {
		// alignBytesDown rounds down, so capped bytes should not exceed the cap.
		t.Errorf("Bytes = %d, want <= 64 when capped", report.Bytes)
	}
}

func TestSparsity(t *testing.T) {
	f := New(1<<12, 2)
	if s := f.Sparsity(); s != 0 {
		t.Errorf("Sparsity() on empty filter = %v, want 0", s)
	}
	f.Insert(f.Hashes([]string{"x"}))
	if s := f.Sparsity(); s <= 0 {
		t.Errorf("Sparsity() after insert = %v, want > 0", s)
	}
}
