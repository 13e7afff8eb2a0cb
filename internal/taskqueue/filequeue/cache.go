package filequeue

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const leaseCacheBucket = "tasks_snapshot"

// leaseCache is a local BoltDB-backed fast path for Acquire's poll loop,
// adapted from the teacher's internal/cache: instead of a fileinfo-keyed
// content-hash cache used to skip re-hashing unchanged file ranges, this
// caches the last-seen bytes of one task-file object, keyed by its object
// key, so a poller can skip the lock-guarded read/scan/write cycle when the
// object is byte-identical to what it saw on its previous failed attempt.
// Unlike the teacher's cache, a lost or stale entry is never a correctness
// problem (a cache miss just falls through to the real check), so this
// keeps a single always-open DB rather than the teacher's
// read-old/write-new/atomic-rename scheme built for a cache whose entries
// must never be read back from a half-written file.
type leaseCache struct {
	db      *bolt.DB
	enabled bool
}

// openLeaseCache opens (creating if absent) a lease cache at path. An empty
// path disables the cache; every lookup then reports a miss.
func openLeaseCache(path string) (*leaseCache, error) {
	if path == "" {
		return &leaseCache{enabled: false}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lease cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open lease cache: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(leaseCacheBucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &leaseCache{db: db, enabled: true}, nil
}

func (c *leaseCache) Close() error {
	if !c.enabled {
		return nil
	}
	return c.db.Close()
}

// Unchanged reports whether body is identical to the snapshot last stored
// for key.
func (c *leaseCache) Unchanged(key string, body []byte) (bool, error) {
	if !c.enabled {
		return false, nil
	}
	var same bool
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(leaseCacheBucket))
		if b == nil {
			return nil
		}
		same = bytes.Equal(b.Get([]byte(key)), body)
		return nil
	})
	return same, err
}

// Store records body as the latest snapshot seen for key.
func (c *leaseCache) Store(key string, body []byte) error {
	if !c.enabled {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(leaseCacheBucket))
		return b.Put([]byte(key), body)
	})
}
