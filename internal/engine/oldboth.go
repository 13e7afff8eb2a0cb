package engine

import (
	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
	"github.com/xufeisofly/bff/internal/unit"
)

// oldBothEngine runs paragraph mode, then clears the whole document if the
// aggregate containment ratio across all paragraphs exceeds the filtering
// threshold. Annotate mode always reports the per-paragraph spans and never
// performs the whole-document clear; bff_contained_ngram_count_before_dedupe
// is written unconditionally in non-annotate mode, clear-or-not.
type oldBothEngine struct{}

func (oldBothEngine) Process(doc *document.Document, f *bloom.Filter, opts Options) (Result, error) {
	text := doc.Text()
	units := unit.Paragraphs(text)
	outputText, spans, contained, total := runUnitEngine(text, f, opts, units)

	if opts.Annotate {
		doc.SetDuplicateSpans(spans)
		doc.SetContainedNgramCount(contained)
		return Result{RemovedBytes: len(text) - len(outputText), TotalBytes: len(text)}, nil
	}

	clearAll := total > 0 && float64(contained)/float64(total) > opts.FilteringThreshold
	if clearAll {
		outputText = ""
	}
	doc.SetText(outputText)
	doc.SetContainedNgramCountBeforeDedupe(contained)
	return Result{RemovedBytes: len(text) - len(outputText), TotalBytes: len(text)}, nil
}
