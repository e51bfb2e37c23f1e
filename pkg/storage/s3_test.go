package storage

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	buckets map[string]bool
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte), buckets: make(map[string]bool)}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buckets[aws.ToString(in.Bucket)] = true
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data)))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	var names []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	out := &s3.ListObjectsV2Output{}
	for _, n := range names {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(n)})
	}
	return out, nil
}

func TestS3Backend_RoundTrip(t *testing.T) {
	fake := newFakeS3()
	b := NewS3Backend(fake, "bucket", WithS3Prefix("app/"))
	ctx := context.Background()

	if err := b.Save(ctx, "settings", []byte(`{"dark":true}`)); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, ok := fake.objects["app/settings"]; !ok {
		t.Fatalf("object not stored under prefix, have %v", fake.objects)
	}
	if !fake.buckets["bucket"] {
		t.Error("object not stored in configured bucket")
	}

	data, err := b.Load(ctx, "settings")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if string(data) != `{"dark":true}` {
		t.Errorf("Load() = %q", data)
	}

	missing, err := b.Load(ctx, "nope")
	if err != nil {
		t.Fatalf("Load(missing) error: %v", err)
	}
	if missing != nil {
		t.Errorf("Load(missing) = %q, want nil", missing)
	}
}

func TestS3Backend_KeysAndDelete(t *testing.T) {
	fake := newFakeS3()
	fake.objects["other/x"] = []byte("ignored")
	b := NewS3Backend(fake, "bucket")
	ctx := context.Background()

	_ = b.Save(ctx, "b", []byte("1"))
	_ = b.Save(ctx, "a", []byte("2"))
	if err := b.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}

	keys, err := b.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error: %v", err)
	}
	if len(keys) != 1 || keys[0] != "a" {
		t.Errorf("Keys() = %v, want [a]", keys)
	}
}

func TestS3Backend_Closed(t *testing.T) {
	b := NewS3Backend(newFakeS3(), "bucket")
	_ = b.Close()
	if err := b.Save(context.Background(), "k", []byte("v")); !IsClosed(err) {
		t.Errorf("Save() after Close = %v, want closed error", err)
	}
}

func TestNewS3Client_Endpoint(t *testing.T) {
	client := NewS3Client(S3ClientConfig{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "id",
		SecretAccessKey: "secret",
	})
	opts := client.Options()
	if !opts.UsePathStyle {
		t.Error("custom endpoint should use path-style addressing")
	}
	if aws.ToString(opts.BaseEndpoint) != "http://localhost:9000" {
		t.Errorf("BaseEndpoint = %q", aws.ToString(opts.BaseEndpoint))
	}
	creds, err := opts.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if creds.AccessKeyID != "id" {
		t.Errorf("AccessKeyID = %q, want id", creds.AccessKeyID)
	}
}
