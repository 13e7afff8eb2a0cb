//go:build e2e

package objstore_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gotest.tools/v3/assert"

	"github.com/xufeisofly/bff/internal/objstore"
	"github.com/xufeisofly/bff/internal/testenv"
)

// TestS3StoreAgainstMinIO exercises objstore.S3Store's Get/Put/PutIfAbsent/
// Delete/List against a real S3-compatible server, the same way the source
// implementation's bff was actually run (OSS, an S3-compatible gateway)
// rather than against AWS itself.
func TestS3StoreAgainstMinIO(t *testing.T) {
	ctx := context.Background()

	minio, err := testenv.StartMinIO(ctx)
	assert.NilError(t, err, "start minio")
	defer minio.Close(ctx)

	const bucket = "bff-test"
	assert.NilError(t, createBucket(ctx, minio, bucket), "create bucket")

	store, err := objstore.NewS3Store(ctx, objstore.S3Options{
		Bucket:          bucket,
		Endpoint:        minio.Endpoint,
		Region:          "us-east-1",
		MaxRetries:      2,
		AccessKeyID:     minio.AccessKey,
		AccessKeySecret: minio.SecretKey,
	})
	assert.NilError(t, err, "new s3 store")

	assert.NilError(t, store.Put(ctx, "shards/a.jsonl", []byte("hello")))

	r, err := store.Get(ctx, "shards/a.jsonl")
	assert.NilError(t, err, "get")
	defer r.Close()
	body := make([]byte, 5)
	n, err := r.Read(body)
	assert.NilError(t, err)
	assert.Equal(t, string(body[:n]), "hello")

	err = store.PutIfAbsent(ctx, "shards/a.jsonl", []byte("overwrite"))
	var conflict *objstore.ConditionalPutError
	assert.Assert(t, err != nil)
	assert.Assert(t, asConditionalPutError(err, &conflict))

	assert.NilError(t, store.PutIfAbsent(ctx, "shards/b.jsonl", []byte("fresh")))

	infos, err := store.List(ctx, "shards/")
	assert.NilError(t, err, "list")
	assert.Equal(t, len(infos), 2)
	assert.Equal(t, infos[0].Key, "shards/a.jsonl")
	assert.Equal(t, infos[1].Key, "shards/b.jsonl")

	assert.NilError(t, store.Delete(ctx, "shards/a.jsonl"))
	_, err = store.Get(ctx, "shards/a.jsonl")
	assert.Assert(t, err != nil)
}

func asConditionalPutError(err error, target **objstore.ConditionalPutError) bool {
	cpe, ok := err.(*objstore.ConditionalPutError)
	if ok {
		*target = cpe
	}
	return ok
}

// createBucket sets up the MinIO bucket S3Store will read/write, mirroring
// the manual bucket-provisioning step a real OSS/S3 deployment requires
// before bff ever touches it.
func createBucket(ctx context.Context, minio *testenv.MinIO, bucket string) error {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(minio.AccessKey, minio.SecretKey, ""),
		),
	)
	if err != nil {
		return err
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(minio.Endpoint)
		o.UsePathStyle = true
	})
	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	return err
}
