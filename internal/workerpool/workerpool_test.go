package workerpool

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/xufeisofly/bff/internal/bloom"
	"github.com/xufeisofly/bff/internal/engine"
	"github.com/xufeisofly/bff/internal/objstore"
)

// fakeResolver maps every path to a single LocalStore, stripping any
// "local://" prefix so tests can address files relative to the store root.
type fakeResolver struct {
	store objstore.Store
}

func (f fakeResolver) Resolve(_ context.Context, path string) (objstore.Store, string, error) {
	return f.store, strings.TrimPrefix(path, "local://"), nil
}

func TestDeriveOutputPath(t *testing.T) {
	cases := []struct {
		key         string
		suffixLevel int
		want        string
	}{
		{"a/b/c/shard.jsonl", 1, "out/shard.jsonl"},
		{"a/b/c/shard.jsonl", 2, "out/c/shard.jsonl"},
		{"a/b/c/shard.jsonl", 99, "out/a/b/c/shard.jsonl"},
		{"shard.jsonl", 0, "out/shard.jsonl"},
	}
	for _, c := range cases {
		got := deriveOutputPath(c.key, "out", c.suffixLevel)
		if got != c.want {
			t.Errorf("deriveOutputPath(%q, out, %d) = %q, want %q", c.key, c.suffixLevel, got, c.want)
		}
	}
}

func TestExpandAndShardFiltersAndStripesByIndex(t *testing.T) {
	store := objstore.NewLocalStore(t.TempDir())
	ctx := context.Background()
	keys := []string{
		"shards/a.jsonl",
		"shards/b.jsonl.gz",
		"shards/c.txt",
		"shards/d.jsonl.zst",
	}
	for _, k := range keys {
		if err := store.Put(ctx, k, []byte("x")); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	files, err := ExpandAndShard(ctx, fakeResolver{store}, []string{"shards/"}, 0, 1)
	if err != nil {
		t.Fatalf("ExpandAndShard: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("len(files) = %d, want 3 (c.txt excluded)", len(files))
	}

	var shard0, shard1 []ShardFile
	shard0, err = ExpandAndShard(ctx, fakeResolver{store}, []string{"shards/"}, 0, 2)
	if err != nil {
		t.Fatalf("ExpandAndShard shard0: %v", err)
	}
	shard1, err = ExpandAndShard(ctx, fakeResolver{store}, []string{"shards/"}, 1, 2)
	if err != nil {
		t.Fatalf("ExpandAndShard shard1: %v", err)
	}
	if len(shard0)+len(shard1) != 3 {
		t.Errorf("sharded totals = %d + %d, want 3", len(shard0), len(shard1))
	}
}

func TestPoolRunProcessesAndWritesSurvivingShard(t *testing.T) {
	store := objstore.NewLocalStore(t.TempDir())
	ctx := context.Background()

	if err := store.Put(ctx, "in/shard.jsonl", []byte(`{"text":"a b c d e f g h"}`+"\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	eng, err := engine.New(engine.Paragraph)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	filter := bloom.New(1<<16, 4)
	opts := engine.Options{MinNgramSize: 3, MaxNgramSize: 3, FilteringThreshold: 0.8}

	pool := New(2, false, nil)
	files := []ShardFile{{Store: store, Key: "in/shard.jsonl"}}
	stats := pool.Run(ctx, files, store, "out", 1, eng, filter, opts)

	if stats.FilesProcessed.Load() != 1 {
		t.Fatalf("FilesProcessed = %d, want 1", stats.FilesProcessed.Load())
	}
	if stats.FilesWritten.Load() != 1 {
		t.Fatalf("FilesWritten = %d, want 1", stats.FilesWritten.Load())
	}

	r, err := store.Get(ctx, "out/shard.jsonl")
	if err != nil {
		t.Fatalf("Get output: %v", err)
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !strings.Contains(string(body), `"text"`) {
		t.Errorf("output missing text field: %s", body)
	}
}

func TestPoolRunReportsErrorsOnErrCh(t *testing.T) {
	store := objstore.NewLocalStore(t.TempDir())
	ctx := context.Background()
	if err := store.Put(ctx, "in/bad.jsonl", []byte("not json\n")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	eng, err := engine.New(engine.Paragraph)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	filter := bloom.New(1<<16, 4)
	opts := engine.Options{MinNgramSize: 3, MaxNgramSize: 3, FilteringThreshold: 0.8}

	errCh := make(chan error, 1)
	pool := New(1, false, errCh)
	files := []ShardFile{{Store: store, Key: "in/bad.jsonl"}}
	stats := pool.Run(ctx, files, store, "out", 1, eng, filter, opts)

	if stats.FilesProcessed.Load() != 0 {
		t.Errorf("FilesProcessed = %d, want 0 for a parse failure", stats.FilesProcessed.Load())
	}
	select {
	case err := <-errCh:
		if err == nil {
			t.Errorf("expected a non-nil error on errCh")
		}
	default:
		t.Errorf("expected an error on errCh")
	}
}
