package engine

import (
	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
	"github.com/xufeisofly/bff/internal/unit"
)

// paragraphEngine removes each newline-delimited paragraph independently
// whose containment ratio exceeds the filtering threshold.
type paragraphEngine struct{}

func (paragraphEngine) Process(doc *document.Document, f *bloom.Filter, opts Options) (Result, error) {
	text := doc.Text()
	units := unit.Paragraphs(text)
	outputText, spans, contained, _ := runUnitEngine(text, f, opts, units)
	applyUnitResult(doc, opts, text, outputText, spans, contained)
	return Result{RemovedBytes: len(text) - len(outputText), TotalBytes: len(text)}, nil
}

// documentEngine treats the entire text as one unit and applies the
// paragraph rule once.
type documentEngine struct{}

func (documentEngine) Process(doc *document.Document, f *bloom.Filter, opts Options) (Result, error) {
	text := doc.Text()
	units := unit.Document(text)
	outputText, spans, contained, _ := runUnitEngine(text, f, opts, units)
	applyUnitResult(doc, opts, text, outputText, spans, contained)
	return Result{RemovedBytes: len(text) - len(outputText), TotalBytes: len(text)}, nil
}

// applyUnitResult writes either the rewritten text or the annotation
// fields, per the shared annotation-mode rule in spec §4.5.
func applyUnitResult(doc *document.Document, opts Options, _, outputText string, spans []document.Span, contained int) {
	if opts.Annotate {
		doc.SetDuplicateSpans(spans)
		doc.SetContainedNgramCount(contained)
		return
	}
	doc.SetText(outputText)
}
