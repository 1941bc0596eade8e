package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/oncofinder/oncofinder/internal/geo"
)

var ErrDoctorNotFound = errors.New("doctor not found")

// Service owns the in-memory catalog. The catalog is loaded on first use and
// then only read; concurrent first callers share one load.
type Service struct {
	source Source
	table  *geo.Table
	logger zerolog.Logger

	mu      sync.RWMutex
	catalog *Catalog
	group   singleflight.Group
}

func NewService(source Source, table *geo.Table, logger zerolog.Logger) *Service {
	return &Service{
		source: source,
		table:  table,
		logger: logger.With().Str("component", "directory").Logger(),
	}
}

// Catalog returns the loaded catalog, loading it if needed. A failed load is
// logged and an empty catalog is returned; the failure is not remembered, so
// the next call makes one fresh attempt.
func (s *Service) Catalog(ctx context.Context) *Catalog {
	s.mu.RLock()
	cat := s.catalog
	s.mu.RUnlock()
	if cat != nil {
		return cat
	}

	cat, err := s.load(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load provider dataset")
		return Normalize(nil, s.table)
	}
	return cat
}

// Reload discards the current catalog and loads a new one.
func (s *Service) Reload(ctx context.Context) (*Catalog, error) {
	s.mu.Lock()
	s.catalog = nil
	s.mu.Unlock()
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) (*Catalog, error) {
	v, err, _ := s.group.Do("catalog", func() (interface{}, error) {
		s.mu.RLock()
		cached := s.catalog
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		records, err := s.source.Fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		cat := Normalize(records, s.table)

		s.mu.Lock()
		s.catalog = cat
		s.mu.Unlock()

		s.logger.Info().
			Int("doctors", cat.Len()).
			Int("states", len(cat.Keys())).
			Msg("provider dataset loaded")
		return cat, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Catalog), nil
}

// Raw returns the upstream dataset document unchanged.
func (s *Service) Raw(ctx context.Context) ([]byte, error) {
	return s.source.Raw(ctx)
}

// Browse runs the finder for a selection.
func (s *Service) Browse(ctx context.Context, sel Selection) (Result, Selection) {
	return Browse(s.Catalog(ctx), sel)
}

func (s *Service) States(ctx context.Context) []string {
	return s.Catalog(ctx).States()
}

func (s *Service) Counties(ctx context.Context, state string) []string {
	return s.Catalog(ctx).Counties(state)
}

// Link returns the profile URL of a doctor. A doctor without a URL yields ""
// and a warning in the log; it is not an error.
func (s *Service) Link(ctx context.Context, npi string) (string, error) {
	d, ok := s.Catalog(ctx).Lookup(npi)
	if !ok {
		return "", ErrDoctorNotFound
	}
	if d.URL == "" {
		s.logger.Warn().Str("npi", npi).Str("name", d.Name).Msg("no URL available for this doctor")
	}
	return d.URL, nil
}
