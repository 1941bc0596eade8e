package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDataset is returned when a source yields bytes that are not a
// JSON array of provider records.
var ErrInvalidDataset = errors.New("dataset is not a JSON array of provider records")

// Source loads the raw provider dataset.
type Source interface {
	// Raw returns the dataset as the upstream JSON document.
	Raw(ctx context.Context) ([]byte, error)
	// Fetch returns the decoded records in upstream order.
	Fetch(ctx context.Context) ([]RawProviderRecord, error)
}

// DecodeRecords parses a JSON array of provider records.
func DecodeRecords(data []byte) ([]RawProviderRecord, error) {
	var records []RawProviderRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataset, err)
	}
	return records, nil
}

// blobSource adapts a raw byte loader into a Source.
type blobSource struct {
	load func(ctx context.Context) ([]byte, error)
}

func (s blobSource) Raw(ctx context.Context) ([]byte, error) {
	data, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, ErrInvalidDataset
	}
	return data, nil
}

func (s blobSource) Fetch(ctx context.Context) ([]RawProviderRecord, error) {
	data, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return DecodeRecords(data)
}
