package unit

import (
	"reflect"
	"testing"
)

func TestParagraphsSplitsOnNewline(t *testing.T) {
	// Every unit but the first carries its own leading newline byte, so a
	// kept subsequence concatenates back to the exact original bytes.
	got := Paragraphs("A B C\nA B C\n")
	want := []Unit{
		{Start: 0, End: 5, Text: "A B C"},
		{Start: 5, End: 11, Text: "\nA B C"},
		{Start: 11, End: 12, Text: "\n"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Paragraphs() = %+v, want %+v", got, want)
	}
}

func TestParagraphsNoNewline(t *testing.T) {
	got := Paragraphs("single paragraph")
	want := []Unit{{Start: 0, End: 16, Text: "single paragraph"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Paragraphs() = %+v, want %+v", got, want)
	}
}

func TestDocumentIsSingleUnit(t *testing.T) {
	got := Document("A B C\nD E F")
	want := []Unit{{Start: 0, End: 11, Text: "A B C\nD E F"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Document() = %+v, want %+v", got, want)
	}
}

func TestParagraphsEmptyText(t *testing.T) {
	got := Paragraphs("")
	want := []Unit{{Start: 0, End: 0, Text: ""}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Paragraphs(\"\") = %+v, want %+v", got, want)
	}
}
