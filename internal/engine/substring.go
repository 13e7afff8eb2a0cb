package engine

import (
	"strings"

	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
	"github.com/xufeisofly/bff/internal/interval"
)

// substringWindow is one max-ngram-size shingle at a given token start
// index, with its containment result.
type substringWindow struct {
	start     int
	hashes    []uint64
	contained bool
}

// substringEngine finds contiguous runs of contained shingles, coalesces
// them into token intervals, optionally bridges small gaps via fuzzy
// sandwich, discards short runs, and removes the corresponding byte ranges
// while keeping everything else.
type substringEngine struct{}

func (substringEngine) Process(doc *document.Document, f *bloom.Filter, opts Options) (Result, error) {
	text := doc.Text()
	toks := tokenizeFullText(text)
	n := len(toks)
	maxN := opts.MaxNgramSize

	tokByteEnd := func(idx int) int {
		if idx >= n {
			return len(text)
		}
		return toks[idx].Offset
	}

	var windows []substringWindow
	for i := 0; i+maxN <= n; i++ {
		h := f.Hashes(tokenStrings(toks, i, i+maxN))
		windows = append(windows, substringWindow{start: i, hashes: h, contained: f.Contains(h)})
	}

	var tokenIvs []interval.Interval
	i := 0
	for i < len(windows) {
		if !windows[i].contained {
			i++
			continue
		}
		j := i
		for j+1 < len(windows) && windows[j+1].contained && windows[j+1].start == windows[j].start+1 {
			j++
		}
		tokenIvs = append(tokenIvs, interval.Interval{Start: windows[i].start, End: windows[j].start + maxN})
		i = j + 1
	}

	if opts.FilteringThreshold < 1.0 && len(tokenIvs) > 0 {
		forward := interval.FuzzySandwich(tokenIvs, opts.FilteringThreshold, false)
		backward := interval.FuzzySandwich(tokenIvs, opts.FilteringThreshold, true)
		tokenIvs = interval.MergeSortedPair(forward, backward)
	}

	kept := make([]interval.Interval, 0, len(tokenIvs))
	for _, iv := range tokenIvs {
		if iv.End-iv.Start >= opts.SubstrSeqLen {
			kept = append(kept, iv)
		}
	}
	kept = interval.Merge(kept)

	byteContained := make([]interval.Interval, len(kept))
	for i, iv := range kept {
		byteContained[i] = interval.Interval{Start: toks[iv.Start].Offset, End: tokByteEnd(iv.End)}
	}
	byteContained = interval.Merge(byteContained)
	keptByteIvs := interval.Invert(byteContained, len(text))

	var sb strings.Builder
	for _, iv := range keptByteIvs {
		sb.WriteString(text[iv.Start:iv.End])
	}
	outputText := strings.TrimRight(sb.String(), " \t\n\r\v\f")

	containedNgramCount := 0
	for _, w := range windows {
		if w.contained {
			containedNgramCount++
		}
	}

	if !opts.NoUpdateBloomFilter {
		for _, w := range windows {
			start := toks[w.start].Offset
			end := tokByteEnd(w.start + maxN)
			if byteRangeWithin(start, end, keptByteIvs) {
				f.Insert(w.hashes)
			}
		}
	}

	if opts.Annotate {
		spans := make([]document.Span, len(byteContained))
		for i, iv := range byteContained {
			spans[i] = document.Span{Start: iv.Start, End: iv.End}
		}
		doc.SetDuplicateSpans(spans)
		doc.SetContainedNgramCount(containedNgramCount)
	} else {
		doc.SetText(outputText)
	}

	return Result{RemovedBytes: len(text) - len(outputText), TotalBytes: len(text)}, nil
}

// byteRangeWithin reports whether [start, end) lies entirely inside one of ivs.
func byteRangeWithin(start, end int, ivs []interval.Interval) bool {
	for _, iv := range ivs {
		if start >= iv.Start && end <= iv.End {
			return true
		}
	}
	return false
}
