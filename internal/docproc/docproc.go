package docproc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xufeisofly/bff/internal/bfferr"
	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/document"
	"github.com/xufeisofly/bff/internal/engine"
)

// maxLineSize bounds a single shard-file line (one JSON document). A longer
// line fails the shard with a bfferr.ErrIO-wrapped scanner error rather
// than being silently truncated.
const maxLineSize = 64 << 20

// Stats accumulates byte counters across every document in a shard file.
type Stats struct {
	TotalBytes    int64
	RemovedBytes  int64
	DocumentCount int
	DocumentsKept int
}

// ProcessShard reads a shard file from r (named inputName, for codec
// detection), runs eng over every line, and writes the re-serialized,
// recompressed result to w (named outputName). It returns false for wrote
// when the output would have been empty and nothing was written, matching
// the "empty outputs are not written" rule.
func ProcessShard(r io.Reader, inputName string, w io.Writer, outputName string, eng engine.Engine, filter *bloom.Filter, opts engine.Options) (Stats, bool, error) {
	decoded, closer, err := decompressReader(inputName, r)
	if err != nil {
		return Stats{}, false, err
	}
	defer closer.Close()

	var stats Stats
	var out bytes.Buffer

	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		doc, err := document.Parse(line)
		if err != nil {
			return Stats{}, false, fmt.Errorf("%s: %w", inputName, err)
		}

		result, err := eng.Process(doc, filter, opts)
		if err != nil {
			return Stats{}, false, fmt.Errorf("%s: process document %d: %w", inputName, stats.DocumentCount, err)
		}

		stats.DocumentCount++
		stats.TotalBytes += int64(result.TotalBytes)
		stats.RemovedBytes += int64(result.RemovedBytes)
		if result.RemovedBytes < result.TotalBytes {
			stats.DocumentsKept++
		}

		if strings.TrimSpace(doc.Text()) == "" {
			continue
		}

		serialized, err := doc.MarshalLine()
		if err != nil {
			return Stats{}, false, fmt.Errorf("%s: %w", inputName, err)
		}
		out.Write(serialized)
	}
	if err := scanner.Err(); err != nil {
		return Stats{}, false, fmt.Errorf("%w: %s: %w", bfferr.ErrIO, inputName, err)
	}

	if out.Len() == 0 {
		return stats, false, nil
	}

	compressed, err := compressBuffer(outputName, out.Bytes())
	if err != nil {
		return Stats{}, false, err
	}
	if _, err := w.Write(compressed); err != nil {
		return Stats{}, false, fmt.Errorf("%w: write %s: %w", bfferr.ErrIO, outputName, err)
	}

	return stats, true, nil
}
