package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeS3 struct {
	objects map[string]string
	puts    []*s3.PutObjectInput
	putErr  error
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Store_Get(t *testing.T) {
	api := &fakeS3{objects: map[string]string{"assets/files/doctors.json": `[]`}}
	store := NewS3StoreWithAPI(api, "assets")

	data, err := store.Get(context.Background(), "files/doctors.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "[]" {
		t.Errorf("expected [], got %q", data)
	}

	_, err = store.Get(context.Background(), "files/missing.json")
	if !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestS3Store_Put(t *testing.T) {
	api := &fakeS3{}
	store := NewS3StoreWithAPI(api, "exports")

	if err := store.Put(context.Background(), "2026/doctors.parquet", "application/vnd.apache.parquet", strings.NewReader("PAR1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(api.puts) != 1 {
		t.Fatalf("expected 1 put, got %d", len(api.puts))
	}
	in := api.puts[0]
	if aws.ToString(in.Bucket) != "exports" || aws.ToString(in.Key) != "2026/doctors.parquet" {
		t.Errorf("unexpected target %s/%s", aws.ToString(in.Bucket), aws.ToString(in.Key))
	}
	if aws.ToString(in.ContentType) != "application/vnd.apache.parquet" {
		t.Errorf("unexpected content type %q", aws.ToString(in.ContentType))
	}

	api.putErr = errors.New("denied")
	if err := store.Put(context.Background(), "k", "", strings.NewReader("x")); err == nil {
		t.Error("expected put error")
	}
}

func TestNewS3Store_RequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), Config{Region: "us-east-1"}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestNewS3Store_CustomEndpoint(t *testing.T) {
	store, err := NewS3Store(context.Background(), Config{
		Bucket:          "assets",
		Region:          "auto",
		Endpoint:        "http://127.0.0.1:9000",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client, ok := store.api.(*s3.Client)
	if !ok {
		t.Fatalf("expected *s3.Client, got %T", store.api)
	}
	opts := client.Options()
	if aws.ToString(opts.BaseEndpoint) != "http://127.0.0.1:9000" || !opts.UsePathStyle {
		t.Errorf("expected path-style custom endpoint, got %v %v", aws.ToString(opts.BaseEndpoint), opts.UsePathStyle)
	}
	if opts.Region != "auto" {
		t.Errorf("expected region auto, got %q", opts.Region)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()

	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
	if err := m.Put(ctx, "a", "application/json", strings.NewReader(`{"x":1}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := m.Get(ctx, "a")
	if err != nil || string(data) != `{"x":1}` {
		t.Errorf("unexpected get %q %v", data, err)
	}
	if m.ContentType("a") != "application/json" {
		t.Errorf("unexpected content type %q", m.ContentType("a"))
	}

	data[0] = 'X'
	again, _ := m.Get(ctx, "a")
	if again[0] != '{' {
		t.Error("expected Get to return a copy")
	}
}
