package engine

import (
	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
	"github.com/xufeisofly/bff/internal/unit"
)

// naiveBothEngine runs document mode first; if the document survives, it
// also runs paragraph mode. Unlike bothEngine, it does not avoid inserting
// a document-wide shingle and then also inserting overlapping paragraph
// shingles — that double-insertion is the documented divergence between
// the two engines.
type naiveBothEngine struct{}

func (naiveBothEngine) Process(doc *document.Document, f *bloom.Filter, opts Options) (Result, error) {
	text := doc.Text()

	_, docSpans, docContained, _ := runUnitEngine(text, f, opts, unit.Document(text))
	if len(docSpans) > 0 {
		if opts.Annotate {
			doc.SetDuplicateSpans(docSpans)
			doc.SetContainedNgramCount(docContained)
		} else {
			doc.SetText("")
		}
		return Result{RemovedBytes: len(text), TotalBytes: len(text)}, nil
	}

	outputText, paraSpans, paraContained, _ := runUnitEngine(text, f, opts, unit.Paragraphs(text))
	if opts.Annotate {
		// The paragraph pass re-evaluates the document from scratch, the
		// way a second, independent process_line call would in the
		// original: its reported count is paragraph-only, not combined
		// with the discarded document-level pass above.
		doc.SetDuplicateSpans(paraSpans)
		doc.SetContainedNgramCount(paraContained)
	} else {
		doc.SetText(outputText)
	}
	return Result{RemovedBytes: len(text) - len(outputText), TotalBytes: len(text)}, nil
}
