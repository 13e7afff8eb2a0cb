package engine

import (
	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
)

// exactEngine treats the whole text as a single shingle and only ever
// distinguishes "seen before" from "not seen before" — it never attaches
// bff_contained_ngram_count, only bff_exact_duplicate.
type exactEngine struct{}

func (exactEngine) Process(doc *document.Document, f *bloom.Filter, opts Options) (Result, error) {
	text := doc.Text()
	h := f.Hashes([]string{text})

	if f.Contains(h) {
		doc.SetExactDuplicate(true)
		if !opts.Annotate {
			doc.SetText("")
		}
		return Result{RemovedBytes: len(text), TotalBytes: len(text)}, nil
	}

	if !opts.NoUpdateBloomFilter {
		f.Insert(h)
	}
	return Result{RemovedBytes: 0, TotalBytes: len(text)}, nil
}
