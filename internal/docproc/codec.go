// Package docproc applies a duplicate-decision engine to every line of one
// shard file, handling the gzip/zstd/raw codec dispatch that lets shard
// files travel compressed end to end.
package docproc

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/xufeisofly/bff/internal/bfferr"
)

// codec names the compression scheme inferred from a shard file's extension.
type codec int

const (
	codecRaw codec = iota
	codecGzip
	codecZstd
)

// closerFunc adapts a no-error close method (zstd.Decoder.Close) to io.Closer.
type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

func codecForPath(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz":
		return codecGzip
	case ".zst", ".zstd":
		return codecZstd
	default:
		return codecRaw
	}
}

// decompressReader wraps r with the decompression stream matching path's
// extension. The returned closer must be closed by the caller once done
// reading, even on error paths partway through.
func decompressReader(path string, r io.Reader) (io.Reader, io.Closer, error) {
	switch codecForPath(path) {
	case codecGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open gzip stream: %w", bfferr.ErrIO, err)
		}
		return zr, zr, nil
	case codecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: open zstd stream: %w", bfferr.ErrIO, err)
		}
		return zr, closerFunc(zr.Close), nil
	default:
		return r, io.NopCloser(r), nil
	}
}

// compressBuffer compresses buf per path's extension, returning raw bytes
// unchanged when path has no recognized compression extension.
func compressBuffer(path string, buf []byte) ([]byte, error) {
	switch codecForPath(path) {
	case codecGzip:
		var out bytes.Buffer
		zw := gzip.NewWriter(&out)
		if _, err := zw.Write(buf); err != nil {
			return nil, fmt.Errorf("%w: gzip write: %w", bfferr.ErrIO, err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("%w: gzip close: %w", bfferr.ErrIO, err)
		}
		return out.Bytes(), nil
	case codecZstd:
		zw, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd writer: %w", bfferr.ErrIO, err)
		}
		defer zw.Close()
		return zw.EncodeAll(buf, nil), nil
	default:
		return buf, nil
	}
}
