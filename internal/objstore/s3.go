package objstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/xufeisofly/bff/internal/bfferr"
)

// S3Store is a Store backed by an S3-compatible bucket, reached through
// aws-sdk-go-v2. GET/PUT calls are retried with jittered exponential
// backoff (matching the source implementation's get_object_with_retry) and
// throttled by a token-bucket limiter shared across all calls from this
// store, so a worker pool can't overrun the endpoint's rate limits.
type S3Store struct {
	client     *s3.Client
	bucket     string
	maxRetries int
	limiter    *rate.Limiter
}

// S3Options configures an S3Store.
type S3Options struct {
	Bucket string
	// Endpoint overrides the default AWS endpoint resolution, for
	// S3-compatible stores (MinIO, OSS-over-S3-gateway, etc).
	Endpoint string
	Region   string
	// MaxRetries is the retry budget for GET/PUT; -1 selects DefaultMaxRetries.
	MaxRetries int
	// RateLimit caps outbound calls per second; 0 disables throttling.
	RateLimit rate.Limit
	// AccessKeyID/AccessKeySecret, when both set, are used as static
	// credentials instead of the default AWS chain — the OSS-compatible
	// endpoints bff also targets authenticate this way.
	AccessKeyID     string
	AccessKeySecret string
}

// NewS3Store builds an S3Store from opts, loading AWS credentials the
// standard way (environment, shared config, IMDS) over an otelhttp-wrapped
// client so every outbound call is traced.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	httpClient := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}

	loadOpts := []func(*config.LoadOptions) error{config.WithHTTPClient(httpClient)}
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.AccessKeySecret != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: load aws config: %w", bfferr.ErrIO, err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(opts.RateLimit, int(opts.RateLimit)+1)
	}

	return &S3Store{client: client, bucket: opts.Bucket, maxRetries: maxRetries, limiter: limiter}, nil
}

func (s *S3Store) throttle(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := s.throttle(ctx); err != nil {
		return nil, err
	}

	var body io.ReadCloser
	err := withRetry(ctx, s.maxRetries, func() error {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var nf *types.NoSuchKey
			if errors.As(err, &nf) {
				return stopRetrying{ErrNotFound}
			}
			return err
		}
		body = out.Body
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.throttle(ctx); err != nil {
		return err
	}
	return withRetry(ctx, s.maxRetries, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
			Body:   bytes.NewReader(data),
		})
		return err
	})
}

func (s *S3Store) PutIfAbsent(ctx context.Context, key string, data []byte) error {
	if err := s.throttle(ctx); err != nil {
		return err
	}
	return withRetry(ctx, s.maxRetries, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			IfNoneMatch: aws.String("*"),
		})
		if err != nil && isPreconditionFailed(err) {
			return stopRetrying{&ConditionalPutError{Key: key}}
		}
		return err
	})
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	if err := s.throttle(ctx); err != nil {
		return err
	}
	return withRetry(ctx, s.maxRetries, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
}

// List pages through ListObjectsV2 (grounded on the source's expand_s3_dirs
// paginator loop) and returns every object sorted lexicographically, ready
// for the caller to shuffle for shard-assignment fairness.
func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		if err := s.throttle(ctx); err != nil {
			return nil, err
		}
		var page *s3.ListObjectsV2Output
		err := withRetry(ctx, s.maxRetries, func() error {
			var pageErr error
			page, pageErr = paginator.NextPage(ctx)
			return pageErr
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			infos = append(infos, ObjectInfo{Key: aws.ToString(obj.Key), Size: aws.ToInt64(obj.Size)})
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func isPreconditionFailed(err error) bool {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.Response.StatusCode == http.StatusPreconditionFailed
	}
	return false
}
