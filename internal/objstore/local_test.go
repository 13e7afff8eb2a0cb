package objstore

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestLocalStorePutGet(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()

	if err := s.Put(ctx, "shards/a.jsonl", []byte("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	r, err := s.Get(ctx, "shards/a.jsonl")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer r.Close()
	body, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(body) != "hello" {
		t.Errorf("body = %q, want %q", body, "hello")
	}
}

func TestLocalStoreGetMissing(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	_, err := s.Get(context.Background(), "missing.jsonl")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLocalStorePutIfAbsent(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()

	if err := s.PutIfAbsent(ctx, "lock/key", []byte("locked_w1")); err != nil {
		t.Fatalf("first PutIfAbsent: %v", err)
	}

	err := s.PutIfAbsent(ctx, "lock/key", []byte("locked_w2"))
	var cpe *ConditionalPutError
	if !errors.As(err, &cpe) {
		t.Errorf("second PutIfAbsent err = %v, want *ConditionalPutError", err)
	}
}

func TestLocalStoreDeleteMissingIsNotError(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	if err := s.Delete(context.Background(), "nonexistent"); err != nil {
		t.Errorf("Delete of missing key returned error: %v", err)
	}
}

func TestLocalStoreListSortedByKey(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	ctx := context.Background()
	for _, key := range []string{"shards/c.jsonl", "shards/a.jsonl", "shards/b.jsonl"} {
		if err := s.Put(ctx, key, []byte("x")); err != nil {
			t.Fatalf("Put(%s): %v", key, err)
		}
	}

	infos, err := s.List(ctx, "shards/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("len(infos) = %d, want 3", len(infos))
	}
	want := []string{"shards/a.jsonl", "shards/b.jsonl", "shards/c.jsonl"}
	for i, info := range infos {
		if info.Key != want[i] {
			t.Errorf("infos[%d].Key = %q, want %q", i, info.Key, want[i])
		}
	}
}

func TestParsePathSchemes(t *testing.T) {
	cases := []struct {
		path       string
		wantScheme Scheme
		wantBucket string
		wantKey    string
	}{
		{"s3://my-bucket/shards/a.jsonl", SchemeS3, "my-bucket", "shards/a.jsonl"},
		{"oss://my-bucket/shards/a.jsonl", SchemeOSS, "my-bucket", "shards/a.jsonl"},
		{"/local/shards/a.jsonl", SchemeLocal, "", "/local/shards/a.jsonl"},
	}
	for _, c := range cases {
		scheme, bucket, key := ParsePath(c.path)
		if scheme != c.wantScheme || bucket != c.wantBucket || key != c.wantKey {
			t.Errorf("ParsePath(%q) = (%v, %q, %q), want (%v, %q, %q)",
				c.path, scheme, bucket, key, c.wantScheme, c.wantBucket, c.wantKey)
		}
	}
}
