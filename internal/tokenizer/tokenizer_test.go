package tokenizer

import "testing"

func TestTokenizeDropsWhitespace(t *testing.T) {
	got := Tokenize("A B C\n")
	want := []string{"A", "B", "C"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokenize()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenizeIndicesOffsets(t *testing.T) {
	toks := TokenizeIndices("hi there")
	if len(toks) != 2 {
		t.Fatalf("got %d tokens, want 2", len(toks))
	}
	if toks[0].Text != "hi" || toks[0].Offset != 0 {
		t.Errorf("toks[0] = %+v, want {hi 0}", toks[0])
	}
	if toks[1].Text != "there" || toks[1].Offset != 3 {
		t.Errorf("toks[1] = %+v, want {there 3}", toks[1])
	}
}

// TestTokenizeDeterminism is the determinism invariant from spec §8.
func TestTokenizeDeterminism(t *testing.T) {
	s := "The quick brown fox jumps over the lazy dog.\nSecond line here."
	var first []string
	for i := 0; i < 10; i++ {
		got := Tokenize(s)
		if first == nil {
			first = got
			continue
		}
		if len(got) != len(first) {
			t.Fatalf("run %d: length changed: %v vs %v", i, got, first)
		}
		for j := range got {
			if got[j] != first[j] {
				t.Errorf("run %d: token[%d] = %q, want %q (non-deterministic)", i, j, got[j], first[j])
			}
		}
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if got := Tokenize(""); len(got) != 0 {
		t.Errorf("Tokenize(\"\") = %v, want empty", got)
	}
}
