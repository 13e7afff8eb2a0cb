package engine

import (
	"strings"

	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
	"github.com/xufeisofly/bff/internal/tokenizer"
	"github.com/xufeisofly/bff/internal/unit"
)

// reconstructText rebuilds text with the given removed spans cut out,
// stitching the surviving byte ranges back together in place. spans must
// be in increasing, non-overlapping order. This reproduces the original
// bytes exactly for whatever was kept, including any separator a
// surviving unit's span already carries (e.g. a paragraph's leading
// newline), rather than re-joining stripped unit strings with a
// hardcoded separator.
func reconstructText(text string, removed []document.Span) string {
	if len(removed) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	lastEnd := 0
	for _, s := range removed {
		b.WriteString(text[lastEnd:s.Start])
		lastEnd = s.End
	}
	b.WriteString(text[lastEnd:])
	return b.String()
}

// tokenizeUnit tokenizes a unit's text with byte offsets made absolute
// within the unit's parent document.
func tokenizeUnit(u unit.Unit) []tokenizer.Token {
	toks := tokenizer.TokenizeIndices(u.Text)
	for i := range toks {
		toks[i].Offset += u.Start
	}
	return toks
}

// tokenizeFullText tokenizes an entire document's text.
func tokenizeFullText(text string) []tokenizer.Token {
	return tokenizer.TokenizeIndices(text)
}

// tokenStrings extracts the token text for tokens[start:end].
func tokenStrings(toks []tokenizer.Token, start, end int) []string {
	out := make([]string, end-start)
	for i := start; i < end; i++ {
		out[i-start] = toks[i].Text
	}
	return out
}

// shingleWindows returns the [start, end) token-index windows to shingle
// for a unit of n tokens: every maxN-token window if n >= maxN, a single
// window spanning all n tokens if minN <= n < maxN, or none if n < minN.
func shingleWindows(n, minN, maxN int) [][2]int {
	if n >= maxN {
		windows := make([][2]int, 0, n-maxN+1)
		for i := 0; i+maxN <= n; i++ {
			windows = append(windows, [2]int{i, i + maxN})
		}
		return windows
	}
	if n >= minN && n > 0 {
		return [][2]int{{0, n}}
	}
	return nil
}

// unitShingles computes the shingle hashes and containment count for a unit.
func unitShingles(u unit.Unit, f *bloom.Filter, minN, maxN int) (hashes [][]uint64, contained int) {
	toks := tokenizeUnit(u)
	windows := shingleWindows(len(toks), minN, maxN)
	hashes = make([][]uint64, len(windows))
	for i, w := range windows {
		h := f.Hashes(tokenStrings(toks, w[0], w[1]))
		hashes[i] = h
		if f.Contains(h) {
			contained++
		}
	}
	return hashes, contained
}

// runUnitEngine implements the shared "tokenize, shingle, check, decide,
// update, render" skeleton used by the Paragraph, Document, NaiveBoth and
// OldBoth engines: evaluate every unit independently, remove it if its
// containment ratio exceeds filteringThreshold, otherwise insert its
// shingles (unless noUpdate) and keep its text. Output is reconstructed
// from text by cutting the removed spans out, byte-exact (including a
// surviving paragraph's leading newline when an earlier paragraph was
// removed), rather than rejoining stripped unit strings.
func runUnitEngine(text string, f *bloom.Filter, opts Options, units []unit.Unit) (outputText string, spans []document.Span, totalContained, totalShingles int) {
	for _, u := range units {
		hashes, contained := unitShingles(u, f, opts.MinNgramSize, opts.MaxNgramSize)
		total := len(hashes)
		removed := total > 0 && float64(contained)/float64(total) > opts.FilteringThreshold

		totalContained += contained
		totalShingles += total

		if removed {
			spans = append(spans, document.Span{Start: u.Start, End: u.End})
			continue
		}
		if !opts.NoUpdateBloomFilter {
			for _, h := range hashes {
				f.Insert(h)
			}
		}
	}
	return reconstructText(text, spans), spans, totalContained, totalShingles
}
