// Package mapview models the choropleth state picker: one path per FIPS
// region, a highlight that follows the selected state, and a hover tooltip.
// Geometry comes from an external TopoJSON document that clients render.
package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/oncofinder/oncofinder/internal/geo"
)

// DefaultTopologyURL is the US atlas used by the map.
const DefaultTopologyURL = "https://d3js.org/us-10m.v1.json"

// Map colours and viewport.
const (
	FillDefault  = "#815FA0"
	FillSelected = "#3c236a"
	Stroke       = "#ffffff"
	LabelColor   = "#ffffff"
	Width        = 960
	Height       = 600
)

// UnknownState is reported for map ids with no FIPS entry.
const UnknownState = "Unknown"

var ErrTopologyUnavailable = errors.New("topology unavailable")

// StatePath is the render model of one region.
type StatePath struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	Fill     string `json:"fill"`
	Stroke   string `json:"stroke"`
	Selected bool   `json:"selected"`
}

// Tooltip is the hover box for a region, positioned relative to the cursor.
type Tooltip struct {
	Text    string `json:"text"`
	Top     int    `json:"top"`
	Left    int    `json:"left"`
	Visible bool   `json:"visible"`
}

// Selector answers map interactions from the injected region table.
type Selector struct {
	table       *geo.Table
	topologyURL string
	client      *http.Client

	mu       sync.RWMutex
	topology []byte
	group    singleflight.Group
}

func NewSelector(table *geo.Table, topologyURL string, client *http.Client) *Selector {
	if topologyURL == "" {
		topologyURL = DefaultTopologyURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Selector{table: table, topologyURL: topologyURL, client: client}
}

// Paths returns every region in FIPS order. The region whose name equals
// selected is highlighted; at most one is, since names are unique.
func (s *Selector) Paths(selected string) []StatePath {
	regions := s.table.Regions()
	paths := make([]StatePath, 0, len(regions))
	for _, r := range regions {
		p := StatePath{
			ID:     r.FIPS,
			Name:   r.Name,
			Label:  r.Abbreviation,
			Fill:   FillDefault,
			Stroke: Stroke,
		}
		if selected != "" && r.Name == selected {
			p.Fill = FillSelected
			p.Selected = true
		}
		paths = append(paths, p)
	}
	return paths
}

// Select resolves a clicked region to the state name that becomes the
// finder's selected state.
func (s *Selector) Select(fips string) string {
	if name, ok := s.table.NameForFIPS(fips); ok {
		return name
	}
	return UnknownState
}

// Tooltip positions the hover box 10px above and 10px right of the cursor.
func (s *Selector) Tooltip(fips string, x, y int) Tooltip {
	return Tooltip{
		Text:    s.Select(fips),
		Top:     y - 10,
		Left:    x + 10,
		Visible: true,
	}
}

// Topology returns the TopoJSON atlas, fetching it on first use. A failed
// fetch is not remembered.
func (s *Selector) Topology(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	cached := s.topology
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := s.group.Do("topology", func() (interface{}, error) {
		s.mu.RLock()
		cached := s.topology
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		data, err := s.fetchTopology(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.topology = data
		s.mu.Unlock()
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Selector) fetchTopology(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.topologyURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build topology request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: upstream returned %d", ErrTopologyUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read topology: %w", err)
	}

	var doc struct {
		Type    string                     `json:"type"`
		Objects map[string]json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if _, ok := doc.Objects["states"]; !ok {
		return nil, fmt.Errorf("%w: no states object", ErrTopologyUnavailable)
	}
	return data, nil
}
