// Package objstore abstracts over local filesystem paths and S3-compatible
// object stores behind a single Store interface, so the rest of bff can
// read/write/list shard files without caring where they live.
package objstore

import (
	"context"
	"io"
	"strings"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "objstore: object not found" }

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ConditionalPutError is returned by PutIfAbsent when the key already exists.
type ConditionalPutError struct{ Key string }

func (e *ConditionalPutError) Error() string { return "objstore: key already exists: " + e.Key }

// Store is the minimal surface bff needs from a storage backend: streaming
// reads and writes, conditional writes for internal/lock, and paginated
// listing for shard discovery.
type Store interface {
	// Get opens a reader over key's contents. The caller must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Put writes body to key, overwriting any existing object.
	Put(ctx context.Context, key string, body []byte) error
	// PutIfAbsent writes body to key only if key does not already exist,
	// returning a *ConditionalPutError otherwise. Backs internal/lock's
	// compare-and-swap acquire.
	PutIfAbsent(ctx context.Context, key string, body []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// List returns every object whose key has prefix, sorted lexicographically.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Scheme identifies which backend a path addresses.
type Scheme int

const (
	SchemeLocal Scheme = iota
	SchemeS3
	SchemeOSS
)

// ParsePath splits a bff path into its scheme, bucket (empty for local),
// and key, per the "s3://<bucket>/<key>", "oss://<bucket>/<key>", anything
// else local" convention.
func ParsePath(path string) (scheme Scheme, bucket, key string) {
	switch {
	case strings.HasPrefix(path, "s3://"):
		rest := strings.TrimPrefix(path, "s3://")
		bucket, key, _ = strings.Cut(rest, "/")
		return SchemeS3, bucket, key
	case strings.HasPrefix(path, "oss://"):
		rest := strings.TrimPrefix(path, "oss://")
		bucket, key, _ = strings.Cut(rest, "/")
		return SchemeOSS, bucket, key
	default:
		return SchemeLocal, "", path
	}
}

// shardExtensions are the file extensions expand/list treats as shard files.
var shardExtensions = []string{".jsonl.gz", ".jsonl", ".jsonl.zstd", ".jsonl.zst"}

// IsShardFile reports whether key has one of the extensions bff shards use.
func IsShardFile(key string) bool {
	for _, ext := range shardExtensions {
		if strings.HasSuffix(key, ext) {
			return true
		}
	}
	return false
}
