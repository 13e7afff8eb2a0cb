package objstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/xufeisofly/bff/internal/bfferr"
)

// LocalStore is a Store backed by the local filesystem, rooted at root.
type LocalStore struct {
	root string
}

// NewLocalStore returns a LocalStore rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, key)
}

func (s *LocalStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", bfferr.ErrIO, key, err)
	}
	return f, nil
}

func (s *LocalStore) Put(_ context.Context, key string, body []byte) error {
	return writeFileAtomic(s.path(key), body)
}

func (s *LocalStore) PutIfAbsent(_ context.Context, key string, body []byte) error {
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir for %s: %w", bfferr.ErrIO, key, err)
	}
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if os.IsExist(err) {
		return &ConditionalPutError{Key: key}
	}
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", bfferr.ErrIO, key, err)
	}
	defer f.Close()
	if _, err := f.Write(body); err != nil {
		return fmt.Errorf("%w: write %s: %w", bfferr.ErrIO, key, err)
	}
	return nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: delete %s: %w", bfferr.ErrIO, key, err)
	}
	return nil
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]ObjectInfo, error) {
	root := s.path(prefix)
	var infos []ObjectInfo

	walkRoot := root
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		walkRoot = filepath.Dir(root)
	}

	err := filepath.Walk(walkRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if prefix != "" && !hasPathPrefix(rel, prefix) {
			return nil
		}
		infos = append(infos, ObjectInfo{Key: rel, Size: info.Size()})
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: list %s: %w", bfferr.ErrIO, prefix, err)
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func hasPathPrefix(key, prefix string) bool {
	return len(key) >= len(prefix) && key[:len(prefix)] == prefix
}

// writeFileAtomic writes body to a temp file in the same directory as path
// and renames it into place, so readers never observe a partial write.
func writeFileAtomic(path string, body []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", bfferr.ErrIO, dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".bff-tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp in %s: %w", bfferr.ErrIO, dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp %s: %w", bfferr.ErrIO, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp %s: %w", bfferr.ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s to %s: %w", bfferr.ErrIO, tmpName, path, err)
	}
	return nil
}
