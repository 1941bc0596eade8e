package provider

import (
	"context"
	"fmt"
)

// ObjectReader fetches whole objects from a bucket.
type ObjectReader interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// S3Source reads the dataset object from a bucket.
type S3Source struct {
	blobSource
	objects ObjectReader
	key     string
}

func NewS3Source(objects ObjectReader, key string) *S3Source {
	s := &S3Source{objects: objects, key: key}
	s.blobSource = blobSource{load: s.get}
	return s
}

func (s *S3Source) get(ctx context.Context) ([]byte, error) {
	data, err := s.objects.Get(ctx, s.key)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset object %s: %w", s.key, err)
	}
	return data, nil
}
