// Package engine implements the seven duplicate-decision policies: tokenize
// a unit, shingle it into n-grams, check containment against the shared
// Bloom filter, decide whether to remove, update the filter with survivors,
// and render either rewritten text or annotation spans.
package engine

import (
	"fmt"

	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
)

// RemoveType selects which duplicate-decision policy processes a document.
type RemoveType string

const (
	Paragraph RemoveType = "paragraph"
	Document  RemoveType = "document"
	Both      RemoveType = "both"
	NaiveBoth RemoveType = "naive-both"
	OldBoth   RemoveType = "old-both"
	Substring RemoveType = "substring"
	Exact     RemoveType = "exact"
)

// Options configures every engine's shingling and removal behavior.
type Options struct {
	MinNgramSize        int
	MaxNgramSize        int
	FilteringThreshold  float64
	SubstrSeqLen        int
	NoUpdateBloomFilter bool
	Annotate            bool
}

// Result reports the byte accounting for one processed document, used to
// roll up the shard worker's total/removed byte counters.
type Result struct {
	RemovedBytes int
	TotalBytes   int
}

// Engine is the shared contract every duplicate-decision policy implements.
type Engine interface {
	Process(doc *document.Document, f *bloom.Filter, opts Options) (Result, error)
}

// New returns the Engine implementing t.
func New(t RemoveType) (Engine, error) {
	switch t {
	case Paragraph:
		return paragraphEngine{}, nil
	case Document:
		return documentEngine{}, nil
	case Both:
		return bothEngine{}, nil
	case NaiveBoth:
		return naiveBothEngine{}, nil
	case OldBoth:
		return oldBothEngine{}, nil
	case Substring:
		return substringEngine{}, nil
	case Exact:
		return exactEngine{}, nil
	default:
		return nil, fmt.Errorf("unknown remove-type %q", t)
	}
}
