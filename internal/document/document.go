// Package document parses and re-serializes the newline-delimited JSON
// documents bff operates on: a "text" field plus arbitrary passthrough
// fields, with bff_* fields layered on by the duplicate-decision engines.
package document

import (
	"encoding/json"
	"fmt"

	"github.com/xufeisofly/bff/internal/bfferr"
)

const (
	fieldText                        = "text"
	fieldDuplicateSpans              = "bff_duplicate_spans"
	fieldContainedNgramCount         = "bff_contained_ngram_count"
	fieldContainedNgramCountBefore   = "bff_contained_ngram_count_before_dedupe"
	fieldExactDuplicate              = "bff_exact_duplicate"
)

// Document wraps one JSON line. Fields other than "text" and the bff_*
// annotation fields are preserved verbatim on re-serialization.
type Document struct {
	fields map[string]any
}

// Parse decodes a single JSON line into a Document.
func Parse(line []byte) (*Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", bfferr.ErrParse, err)
	}
	return &Document{fields: fields}, nil
}

// Text returns the document's "text" field, or "" if absent or non-string.
func (d *Document) Text() string {
	if v, ok := d.fields[fieldText].(string); ok {
		return v
	}
	return ""
}

// SetText overwrites the document's "text" field.
func (d *Document) SetText(s string) { d.fields[fieldText] = s }

// Span is a half-open [Start, End) interval reported in an annotation.
type Span struct {
	Start int
	End   int
}

// SetDuplicateSpans attaches bff_duplicate_spans. An empty slice removes
// the field rather than writing an empty array.
func (d *Document) SetDuplicateSpans(spans []Span) {
	if len(spans) == 0 {
		delete(d.fields, fieldDuplicateSpans)
		return
	}
	out := make([][2]int, len(spans))
	for i, s := range spans {
		out[i] = [2]int{s.Start, s.End}
	}
	d.fields[fieldDuplicateSpans] = out
}

// SetContainedNgramCount attaches bff_contained_ngram_count.
func (d *Document) SetContainedNgramCount(n int) {
	d.fields[fieldContainedNgramCount] = n
}

// SetContainedNgramCountBeforeDedupe attaches the old-both engine's
// auxiliary counter, recorded before its whole-document clear decision.
func (d *Document) SetContainedNgramCountBeforeDedupe(n int) {
	d.fields[fieldContainedNgramCountBefore] = n
}

// SetExactDuplicate attaches bff_exact_duplicate, used only by the exact
// engine (which never attaches bff_contained_ngram_count).
func (d *Document) SetExactDuplicate(dup bool) {
	d.fields[fieldExactDuplicate] = dup
}

// MarshalLine serializes the document back to a newline-terminated JSON line.
func (d *Document) MarshalLine() ([]byte, error) {
	b, err := json.Marshal(d.fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", bfferr.ErrParse, err)
	}
	return append(b, '\n'), nil
}
