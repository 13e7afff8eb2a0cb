package document

import (
	"encoding/json"
	"testing"
)

func TestParseAndText(t *testing.T) {
	d, err := Parse([]byte(`{"text":"hello world","id":42}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Text() != "hello world" {
		t.Errorf("Text() = %q, want %q", d.Text(), "hello world")
	}
}

func TestParseInvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`not json`)); err == nil {
		t.Errorf("Parse(invalid) = nil error, want parse error")
	}
}

func TestPassthroughFieldsPreserved(t *testing.T) {
	d, err := Parse([]byte(`{"text":"hi","source":"wiki","meta":{"a":1}}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	line, err := d.MarshalLine()
	if err != nil {
		t.Fatalf("MarshalLine: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(line, &out); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if out["source"] != "wiki" {
		t.Errorf("source field dropped: %v", out)
	}
	if _, ok := out["meta"]; !ok {
		t.Errorf("meta field dropped: %v", out)
	}
}

func TestAnnotationFields(t *testing.T) {
	d, _ := Parse([]byte(`{"text":"hi"}`))
	d.SetDuplicateSpans([]Span{{Start: 0, End: 2}})
	d.SetContainedNgramCount(3)

	line, _ := d.MarshalLine()
	var out map[string]any
	_ = json.Unmarshal(line, &out)

	if out["bff_contained_ngram_count"].(float64) != 3 {
		t.Errorf("bff_contained_ngram_count = %v, want 3", out["bff_contained_ngram_count"])
	}
	spans, ok := out["bff_duplicate_spans"].([]any)
	if !ok || len(spans) != 1 {
		t.Fatalf("bff_duplicate_spans = %v, want one span", out["bff_duplicate_spans"])
	}
}

func TestSetDuplicateSpansEmptyOmitsField(t *testing.T) {
	d, _ := Parse([]byte(`{"text":"hi"}`))
	d.SetDuplicateSpans(nil)
	line, _ := d.MarshalLine()
	var out map[string]any
	_ = json.Unmarshal(line, &out)
	if _, ok := out["bff_duplicate_spans"]; ok {
		t.Errorf("bff_duplicate_spans present with no spans, want omitted")
	}
}

func TestExactDuplicateField(t *testing.T) {
	d, _ := Parse([]byte(`{"text":"hi"}`))
	d.SetExactDuplicate(true)
	line, _ := d.MarshalLine()
	var out map[string]any
	_ = json.Unmarshal(line, &out)
	if out["bff_exact_duplicate"] != true {
		t.Errorf("bff_exact_duplicate = %v, want true", out["bff_exact_duplicate"])
	}
}
