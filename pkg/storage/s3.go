package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of *s3.Client used by S3Backend.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Backend stores each key as one object under a prefix.
//
// Example usage:
//
//	client := storage.NewS3Client(storage.S3ClientConfig{Region: "eu-west-1"})
//	durable := storage.NewS3Backend(client, "my-bucket", storage.WithS3Prefix("state/"))
type S3Backend struct {
	client S3API
	bucket string
	prefix string

	mu     sync.RWMutex
	closed bool
}

// S3Option configures S3Backend behavior.
type S3Option func(*S3Backend)

// WithS3Prefix sets the object key prefix.
// Default: "dux/".
func WithS3Prefix(prefix string) S3Option {
	return func(b *S3Backend) {
		b.prefix = prefix
	}
}

// NewS3Backend creates a backend storing objects in bucket.
func NewS3Backend(client S3API, bucket string, opts ...S3Option) *S3Backend {
	b := &S3Backend{
		client: client,
		bucket: bucket,
		prefix: "dux/",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// S3ClientConfig holds the settings for NewS3Client.
type S3ClientConfig struct {
	Region string

	// Endpoint overrides the service endpoint (MinIO, localstack).
	Endpoint string

	// AccessKeyID and SecretAccessKey default to the AWS_ACCESS_KEY_ID and
	// AWS_SECRET_ACCESS_KEY environment variables.
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// NewS3Client builds an S3 client from static settings. Custom endpoints use
// path-style addressing.
func NewS3Client(cfg S3ClientConfig) *s3.Client {
	if cfg.AccessKeyID == "" {
		cfg.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	}
	if cfg.SecretAccessKey == "" {
		cfg.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}
	if cfg.SessionToken == "" {
		cfg.SessionToken = os.Getenv("AWS_SESSION_TOKEN")
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}

	creds := aws.Credentials{
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		SessionToken:    cfg.SessionToken,
		Source:          "dux",
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return creds, nil
		}),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
	}
	return s3.New(opts)
}

func (b *S3Backend) objectKey(key string) string {
	return b.prefix + key
}

func (b *S3Backend) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Save uploads data as the object for key.
func (b *S3Backend) Save(ctx context.Context, key string, data []byte) error {
	if b.isClosed() {
		return errClosed()
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.objectKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	return err
}

// Load downloads the object for key. A missing object is not an error.
func (b *S3Backend) Load(ctx context.Context, key string) ([]byte, error) {
	if b.isClosed() {
		return nil, errClosed()
	}

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if stderrors.As(err, &noKey) {
			return nil, nil
		}
		return nil, err
	}
	defer out.Body.Close()

	return io.ReadAll(out.Body)
}

// Delete removes the object for key.
func (b *S3Backend) Delete(ctx context.Context, key string) error {
	if b.isClosed() {
		return errClosed()
	}

	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	return err
}

// Keys lists every key under the prefix.
func (b *S3Backend) Keys(ctx context.Context) ([]string, error) {
	if b.isClosed() {
		return nil, errClosed()
	}

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			keys = append(keys, strings.TrimPrefix(aws.ToString(obj.Key), b.prefix))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close marks the backend closed. The client has no resources to release.
func (b *S3Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
