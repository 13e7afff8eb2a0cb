// Package interval implements the half-open integer interval algebra bff's
// decision engines use to track removed/kept byte and token ranges:
// merge, merge of two pre-sorted inputs, complement, and threshold-gated
// fuzzy absorption of nearby runs.
package interval

import "sort"

// Interval is a half-open range [Start, End) over byte offsets or token
// indices, depending on the caller.
type Interval struct {
	Start int
	End   int
}

// Merge sorts intervals by Start and coalesces overlapping or adjacent
// ones (prev.End >= next.Start) into a single interval spanning the max End.
func Merge(ivs []Interval) []Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := make([]Interval, len(ivs))
	copy(sorted, ivs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	out := make([]Interval, 0, len(sorted))
	cur := sorted[0]
	for _, iv := range sorted[1:] {
		if iv.Start <= cur.End {
			if iv.End > cur.End {
				cur.End = iv.End
			}
			continue
		}
		out = append(out, cur)
		cur = iv
	}
	out = append(out, cur)
	return out
}

// MergeSortedPair merges two already-sorted, disjoint interval slices via a
// two-pointer merge, then coalesces the result with Merge.
func MergeSortedPair(a, b []Interval) []Interval {
	merged := make([]Interval, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].Start <= b[j].Start {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	merged = append(merged, b[j:]...)
	return Merge(merged)
}

// Invert returns the complement of sorted, disjoint intervals within the
// universe [0, length). The input should already be the output of Merge.
func Invert(sorted []Interval, length int) []Interval {
	var out []Interval
	cursor := 0
	for _, iv := range sorted {
		if iv.Start > cursor {
			out = append(out, Interval{Start: cursor, End: iv.Start})
		}
		if iv.End > cursor {
			cursor = iv.End
		}
	}
	if cursor < length {
		out = append(out, Interval{Start: cursor, End: length})
	}
	return out
}

// FuzzySandwich scans sorted, disjoint intervals and greedily absorbs the
// next interval into a running span whenever the fraction of the span
// actually covered by absorbed intervals is at least threshold. reverse
// scans right-to-left instead of left-to-right (the intervals are still
// given in ascending order; only the absorption direction changes).
//
// threshold must be in (0, 1]; a threshold of 1 only absorbs gap-free runs.
func FuzzySandwich(sorted []Interval, threshold float64, reverse bool) []Interval {
	if len(sorted) == 0 {
		return nil
	}
	order := make([]Interval, len(sorted))
	copy(order, sorted)
	if reverse {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	var out []Interval
	span := order[0]
	covered := span.End - span.Start

	flush := func() {
		if reverse {
			out = append([]Interval{span}, out...)
		} else {
			out = append(out, span)
		}
	}

	for _, iv := range order[1:] {
		var candidate Interval
		if reverse {
			candidate = Interval{Start: iv.Start, End: span.End}
		} else {
			candidate = Interval{Start: span.Start, End: iv.End}
		}
		width := candidate.End - candidate.Start
		newCovered := covered + (iv.End - iv.Start)
		if width > 0 && float64(newCovered) >= threshold*float64(width) {
			span = candidate
			covered = newCovered
			continue
		}
		flush()
		span = iv
		covered = iv.End - iv.Start
	}
	flush()
	return out
}
