package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// DefaultDatasetURL is the published provider blob.
const DefaultDatasetURL = "https://docnexus-assets.s3.us-east-1.amazonaws.com/files/pancreatic-map-data-1.json"

// HTTPSource reads the dataset from a URL with a single GET.
type HTTPSource struct {
	blobSource
	url    string
	client *http.Client
}

// NewHTTPSource creates a Source for url. A nil client gets a 30s timeout.
func NewHTTPSource(url string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	s := &HTTPSource{url: url, client: client}
	s.blobSource = blobSource{load: s.get}
	return s
}

func (s *HTTPSource) get(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build dataset request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dataset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch dataset: upstream returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read dataset body: %w", err)
	}
	return data, nil
}

// FileSource reads the dataset from a local JSON file.
type FileSource struct {
	blobSource
	path string
}

func NewFileSource(path string) *FileSource {
	s := &FileSource{path: path}
	s.blobSource = blobSource{load: s.read}
	return s
}

func (s *FileSource) read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file %s: %w", s.path, err)
	}
	return data, nil
}
