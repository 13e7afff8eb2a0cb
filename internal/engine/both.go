package engine

import (
	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
	"github.com/xufeisofly/bff/internal/unit"
)

// bothShingle is one n-gram shingle, tagged with the paragraph index range
// its tokens fall in. firstPar == lastPar means it fits entirely within one
// paragraph; otherwise it's an overflow shingle crossing a boundary.
type bothShingle struct {
	hashes    []uint64
	firstPar  int
	lastPar   int
	contained bool
}

// bothEngine is the interleaved paragraph/document engine: it catches
// whole-document duplicates while still removing at paragraph granularity,
// sharing shingle work and filter writes correctly across paragraph
// boundaries via an overflow bucket for shingles that span more than one
// paragraph.
type bothEngine struct{}

func (bothEngine) Process(doc *document.Document, f *bloom.Filter, opts Options) (Result, error) {
	text := doc.Text()
	paragraphs := unit.Paragraphs(text)
	toks := tokenizeFullText(text)

	paragraphOf := make([]int, len(toks))
	pi := 0
	for i, tk := range toks {
		for pi < len(paragraphs)-1 && tk.Offset >= paragraphs[pi].End {
			pi++
		}
		paragraphOf[i] = pi
	}

	windows := shingleWindows(len(toks), opts.MinNgramSize, opts.MaxNgramSize)

	byParagraph := make(map[int][]*bothShingle, len(paragraphs))
	var overflow []*bothShingle
	var totalContained, totalShingles int

	for _, w := range windows {
		h := f.Hashes(tokenStrings(toks, w[0], w[1]))
		c := f.Contains(h)
		s := &bothShingle{hashes: h, firstPar: paragraphOf[w[0]], lastPar: paragraphOf[w[1]-1], contained: c}
		totalShingles++
		if c {
			totalContained++
		}
		if s.firstPar == s.lastPar {
			byParagraph[s.firstPar] = append(byParagraph[s.firstPar], s)
		} else {
			overflow = append(overflow, s)
		}
	}

	// If the document is too short to yield any window but long enough for
	// a single min-ngram-size shingle, fall back to one whole-document
	// shingle for the document-level ratio check.
	var wholeDoc *bothShingle
	if totalShingles == 0 && len(toks) >= opts.MinNgramSize && len(toks) > 0 {
		h := f.Hashes(tokenStrings(toks, 0, len(toks)))
		c := f.Contains(h)
		wholeDoc = &bothShingle{hashes: h, firstPar: 0, lastPar: len(paragraphs) - 1, contained: c}
		totalShingles = 1
		if c {
			totalContained = 1
		}
	}

	if totalShingles > 0 && float64(totalContained)/float64(totalShingles) >= opts.FilteringThreshold {
		if opts.Annotate {
			doc.SetDuplicateSpans([]document.Span{{Start: 0, End: len(text)}})
			doc.SetContainedNgramCount(totalContained)
		} else {
			doc.SetText("")
		}
		return Result{RemovedBytes: len(text), TotalBytes: len(text)}, nil
	}

	if wholeDoc != nil {
		if !opts.NoUpdateBloomFilter {
			f.Insert(wholeDoc.hashes)
		}
		if opts.Annotate {
			doc.SetContainedNgramCount(totalContained)
		}
		return Result{RemovedBytes: 0, TotalBytes: len(text)}, nil
	}

	var spans []document.Span
	consumed := make([]bool, len(overflow))

	for p, para := range paragraphs {
		own := byParagraph[p]
		ownContained := 0
		for _, s := range own {
			if s.contained {
				ownContained++
			}
		}
		removed := len(own) > 0 && float64(ownContained)/float64(len(own)) >= opts.FilteringThreshold

		if removed {
			spans = append(spans, document.Span{Start: para.Start, End: para.End})
		} else if !opts.NoUpdateBloomFilter {
			for _, s := range own {
				f.Insert(s.hashes)
			}
		}

		for i, s := range overflow {
			if consumed[i] {
				continue
			}
			if s.lastPar < p {
				if !opts.NoUpdateBloomFilter {
					f.Insert(s.hashes)
				}
				consumed[i] = true
				continue
			}
			if s.firstPar <= p && p <= s.lastPar && removed {
				consumed[i] = true
			}
		}
	}

	for i, s := range overflow {
		if !consumed[i] && !opts.NoUpdateBloomFilter {
			f.Insert(s.hashes)
		}
	}

	outputText := reconstructText(text, spans)
	if opts.Annotate {
		doc.SetDuplicateSpans(spans)
		doc.SetContainedNgramCount(totalContained)
	} else {
		doc.SetText(outputText)
	}
	return Result{RemovedBytes: len(text) - len(outputText), TotalBytes: len(text)}, nil
}
