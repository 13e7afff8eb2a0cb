// Package unit maps a document's text to the "units" duplicate-decision
// engines evaluate containment over: paragraphs split on newline bytes, the
// whole document as a single unit, or no units at all (substring mode
// works over the raw token stream instead).
package unit

// Unit is a half-open byte range [Start, End) of text, together with the
// text it covers.
type Unit struct {
	Start int
	End   int
	Text  string
}

// Paragraphs splits text into units at '\n' bytes, bookended by 0 and
// len(text). Every unit but the first includes its own leading '\n' byte
// (the boundary belongs to the paragraph that follows it, not the one that
// precedes it), so that concatenating a subsequence of kept units in order
// reproduces the corresponding byte range of the original text exactly,
// separators included. Units may be empty (consecutive newlines).
func Paragraphs(text string) []Unit {
	bounds := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			bounds = append(bounds, i)
		}
	}
	bounds = append(bounds, len(text))

	units := make([]Unit, 0, len(bounds)-1)
	for i := 0; i+1 < len(bounds); i++ {
		start, end := bounds[i], bounds[i+1]
		units = append(units, Unit{Start: start, End: end, Text: text[start:end]})
	}
	return units
}

// Document treats the entire text as a single unit spanning [0, len(text)).
func Document(text string) []Unit {
	return []Unit{{Start: 0, End: len(text), Text: text}}
}
