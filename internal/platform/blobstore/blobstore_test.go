package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()
	content := "hello world"

	obj, err := store.Put(context.Background(), "k1", "text/plain", strings.NewReader(content))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), obj.Size)
	}
	want := fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
	if obj.SHA256 != want {
		t.Errorf("expected hash %s, got %s", want, obj.SHA256)
	}

	rc, err := store.Get(context.Background(), "k1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != content {
		t.Errorf("expected %q, got %q", content, got)
	}
}

func TestMemoryStore_TooLarge(t *testing.T) {
	store := NewMemoryStore()
	big := bytes.NewReader(make([]byte, MaxFileSize+1))

	_, err := store.Put(context.Background(), "big", "application/pdf", big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected ErrFileTooLarge, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected nothing stored")
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "nope"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Put(context.Background(), "k", "text/plain", strings.NewReader("x")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete(context.Background(), "k"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore_ConcurrentPut(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Put(context.Background(), fmt.Sprintf("k%d", i), "text/plain", strings.NewReader("data"))
		}(i)
	}
	wg.Wait()
	if store.Len() != 50 {
		t.Errorf("expected 50 blobs, got %d", store.Len())
	}
}

func TestNormalizeContentType(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"application/pdf", "application/pdf", false},
		{"text/plain; charset=utf-8", "text/plain", false},
		{"IMAGE/PNG", "image/png", false},
		{"image/jpeg", "image/jpeg", false},
		{"application/zip", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeContentType(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidContentType) {
				t.Errorf("%q: expected ErrInvalidContentType, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("%q: got %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestNewKey(t *testing.T) {
	now := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	k1 := NewKey("c1", now)
	k2 := NewKey("c1", now)
	if !strings.HasPrefix(k1, "clients/c1/2026/03/") {
		t.Errorf("unexpected key %s", k1)
	}
	if k1 == k2 {
		t.Error("expected unique keys")
	}
}

type fakeS3 struct {
	objects map[string][]byte
	putErr  error
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, _ := io.ReadAll(in.Body)
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_RoundTrip(t *testing.T) {
	fake := newFakeS3()
	store := &S3Store{client: fake, bucket: "docs"}

	obj, err := store.Put(context.Background(), "clients/1/a.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.Size != 8 {
		t.Errorf("expected size 8, got %d", obj.Size)
	}

	rc, err := store.Get(context.Background(), "clients/1/a.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "%PDF-1.4" {
		t.Errorf("unexpected content %q", got)
	}

	if err := store.Delete(context.Background(), "clients/1/a.pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Get(context.Background(), "clients/1/a.pdf"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestS3Store_PutError(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = errors.New("access denied")
	store := &S3Store{client: fake, bucket: "docs"}

	_, err := store.Put(context.Background(), "k", "text/plain", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("expected wrapped put error, got %v", err)
	}
}

func TestNewS3Client_KeepsLoadedConfig(t *testing.T) {
	cfg := aws.Config{
		Region:  "eu-west-1",
		Retryer: func() aws.Retryer { return retry.AddWithMaxAttempts(retry.NewStandard(), 7) },
	}

	opts := newS3Client(cfg, "").Options()
	if opts.Region != "eu-west-1" {
		t.Errorf("expected region from config, got %q", opts.Region)
	}
	if opts.Retryer == nil || opts.Retryer.MaxAttempts() != 7 {
		t.Errorf("expected retryer from config, got %v", opts.Retryer)
	}
	if opts.UsePathStyle || opts.BaseEndpoint != nil {
		t.Error("expected default addressing without an endpoint")
	}

	opts = newS3Client(cfg, "http://localhost:4566").Options()
	if opts.BaseEndpoint == nil || *opts.BaseEndpoint != "http://localhost:4566" || !opts.UsePathStyle {
		t.Errorf("expected path-style custom endpoint, got %v %v", opts.BaseEndpoint, opts.UsePathStyle)
	}
	if opts.Retryer == nil || opts.Retryer.MaxAttempts() != 7 {
		t.Error("endpoint override dropped the retryer")
	}
}
