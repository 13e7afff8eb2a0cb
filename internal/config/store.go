package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xufeisofly/bff/internal/objstore"
)

// StoreResolver maps a bff path (local, s3://, or oss://) to the
// objstore.Store that serves it plus the object key within that store,
// lazily constructing and caching one S3-compatible client per bucket so
// repeated lookups against the same bucket reuse its connection and rate
// limiter.
type StoreResolver struct {
	env Env

	mu    sync.Mutex
	local objstore.Store
	s3    map[string]*objstore.S3Store
}

// NewStoreResolver returns a resolver that authenticates S3/OSS buckets
// using the credentials in env.
func NewStoreResolver(env Env) *StoreResolver {
	return &StoreResolver{
		env:   env,
		local: objstore.NewLocalStore("/"),
		s3:    make(map[string]*objstore.S3Store),
	}
}

// Resolve returns the Store and in-store key that path addresses.
func (r *StoreResolver) Resolve(ctx context.Context, path string) (objstore.Store, string, error) {
	scheme, bucket, key := objstore.ParsePath(path)
	switch scheme {
	case objstore.SchemeLocal:
		abs, err := filepath.Abs(key)
		if err != nil {
			return nil, "", fmt.Errorf("resolve local path %q: %w", path, err)
		}
		return r.local, abs, nil
	case objstore.SchemeS3, objstore.SchemeOSS:
		store, err := r.s3Store(ctx, bucket, scheme == objstore.SchemeOSS)
		if err != nil {
			return nil, "", err
		}
		return store, key, nil
	default:
		return nil, "", fmt.Errorf("unrecognized path scheme: %q", path)
	}
}

// s3PollRateLimit bounds how many S3-compatible calls per second a single
// bucket's client issues, a conservative default well under any provider's
// default account-level throttle.
const s3PollRateLimit = rate.Limit(50)

func (r *StoreResolver) s3Store(ctx context.Context, bucket string, isOSS bool) (*objstore.S3Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.s3[bucket]; ok {
		return s, nil
	}

	opts := objstore.S3Options{
		Bucket:     bucket,
		MaxRetries: objstore.DefaultMaxRetries,
		RateLimit:  s3PollRateLimit,
	}
	if isOSS {
		opts.AccessKeyID = r.env.OSSAccessKeyID
		opts.AccessKeySecret = r.env.OSSAccessKeySecret
	}

	s, err := objstore.NewS3Store(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", bucket, err)
	}
	r.s3[bucket] = s
	return s, nil
}
