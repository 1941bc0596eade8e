package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/oncofinder/oncofinder/internal/config"
	"github.com/oncofinder/oncofinder/internal/domain/mapview"
	"github.com/oncofinder/oncofinder/internal/domain/provider"
	"github.com/oncofinder/oncofinder/internal/geo"
	"github.com/oncofinder/oncofinder/internal/platform/blobstore"
	"github.com/oncofinder/oncofinder/internal/platform/db"
	"github.com/oncofinder/oncofinder/internal/platform/middleware"
)

const datasetFixture = `[
  {"npi_number": 1001, "provider_name": "Ana Ruiz", "primary_hcp_segment": "Surgical Oncology", "affiliated_hco": "OSU", "city": "Columbus", "county": "franklin", "state": "OH", "zip_code": "43210", "total_whipple_procedures": "4", "total_pancreatic_cancer": "30", "url": "https://example.org/1001"},
  {"npi_number": "1002", "provider_name": "Ben Cole", "primary_hcp_segment": "Medical Oncology", "affiliated_hco": "Cleveland Clinic", "city": "Cleveland", "county": "cuyahoga", "state": "Ohio", "zip_code": "44195", "total_whipple_procedures": "", "total_pancreatic_cancer": "45", "url": ""},
  {"npi_number": "1003", "provider_name": "Cy Diaz", "primary_hcp_segment": "Surgery", "affiliated_hco": "MD Anderson", "city": "Houston", "county": "harris", "state": "TX", "zip_code": "77030", "total_whipple_procedures": "12", "total_pancreatic_cancer": "80", "url": ""}
]`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "providers.json")
	if err := os.WriteFile(path, []byte(datasetFixture), 0o600); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return path
}

func testDeps(t *testing.T) *deps {
	t.Helper()
	table, err := geo.Default()
	if err != nil {
		t.Fatalf("load region table: %v", err)
	}
	cfg := &config.Config{
		Env:             "test",
		DatasetSource:   config.SourceFile,
		DatasetFile:     writeDataset(t),
		DBSchema:        db.DefaultSchema,
		UpstreamTimeout: 5 * time.Second,
	}
	return &deps{
		cfg:    cfg,
		logger: zerolog.Nop(),
		table:  table,
		client: &http.Client{Timeout: cfg.UpstreamTimeout},
	}
}

func TestNewLogger_Level(t *testing.T) {
	tests := []struct {
		level string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{"", zerolog.InfoLevel},
		{"loud", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		logger := newLogger(&config.Config{Env: "production", LogLevel: tt.level})
		if got := logger.GetLevel(); got != tt.want {
			t.Errorf("LOG_LEVEL=%q: expected %s, got %s", tt.level, tt.want, got)
		}
	}
}

func TestDeps_Source(t *testing.T) {
	d := testDeps(t)

	tests := []struct {
		name    string
		mutate  func(*deps)
		check   func(provider.Source) bool
		wantErr bool
	}{
		{"file", func(*deps) {}, func(s provider.Source) bool {
			_, ok := s.(*provider.FileSource)
			return ok
		}, false},
		{"http", func(d *deps) {
			d.cfg.DatasetSource = config.SourceHTTP
			d.cfg.DatasetURL = "http://example.invalid/data.json"
		}, func(s provider.Source) bool {
			_, ok := s.(*provider.HTTPSource)
			return ok
		}, false},
		{"s3", func(d *deps) {
			d.cfg.DatasetSource = config.SourceS3
			d.blobs = blobstore.NewMemoryStore()
		}, func(s provider.Source) bool {
			_, ok := s.(*provider.S3Source)
			return ok
		}, false},
		{"s3 without bucket", func(d *deps) {
			d.cfg.DatasetSource = config.SourceS3
			d.blobs = nil
		}, nil, true},
		{"postgres without pool", func(d *deps) { d.cfg.DatasetSource = config.SourcePostgres }, nil, true},
		{"unknown", func(d *deps) { d.cfg.DatasetSource = "ftp" }, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *d.cfg
			local := *d
			local.cfg = &cfg
			tt.mutate(&local)

			src, err := local.source()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(src) {
				t.Errorf("unexpected source type %T", src)
			}
		})
	}
}

type fakeFinder struct {
	link string
	err  error
}

func (f fakeFinder) FirstLink(_ context.Context, query string) (string, error) {
	return f.link, f.err
}

const topology = `{"type":"Topology","objects":{"states":{"type":"GeometryCollection","geometries":[]}},"arcs":[]}`

func newTestServer(t *testing.T, adminKey string) *server {
	t.Helper()
	d := testDeps(t)
	d.cfg.AdminAPIKey = adminKey

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(topology))
	}))
	t.Cleanup(upstream.Close)

	svc, err := d.service()
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	srv := newServer(serverParams{
		cfg:      d.cfg,
		logger:   zerolog.Nop(),
		service:  svc,
		search:   fakeFinder{link: "https://example.org/profile"},
		selector: mapview.NewSelector(d.table, upstream.URL, upstream.Client()),
		cache:    middleware.NewInMemoryCacheStore(),
	})
	t.Cleanup(srv.Stop)
	return srv
}

func serve(srv *server, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, "")

	rec := serve(srv, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), version) {
		t.Errorf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a request id header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("expected security headers")
	}

	if rec := serve(srv, http.MethodGet, "/health/db", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected no db health route without a pool, got %d", rec.Code)
	}
}

func TestServer_Doctors(t *testing.T) {
	srv := newTestServer(t, "")

	rec := serve(srv, http.MethodGet, "/api/v1/doctors?state=Ohio", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Total int               `json:"total"`
		Data  []provider.Doctor `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 2 || page.Data[0].NPINumber != "1002" {
		t.Errorf("expected Ohio ranked by cancer count, got %+v", page)
	}

	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag on finder responses")
	}
	again := serve(srv, http.MethodGet, "/api/v1/doctors?state=Ohio", "", http.Header{"If-None-Match": {etag}})
	if again.Code != http.StatusNotModified {
		t.Errorf("expected 304 for a matching ETag, got %d", again.Code)
	}

	if rec := serve(srv, http.MethodGet, "/api/v1/doctors?specialty=Dentistry", "", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown specialty, got %d", rec.Code)
	}
}

func TestServer_RawDatasetAndSearch(t *testing.T) {
	srv := newTestServer(t, "")

	rec := serve(srv, http.MethodGet, "/api/fetchDoctorsData", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Ana Ruiz") {
		t.Errorf("unexpected dataset response %d", rec.Code)
	}

	rec = serve(srv, http.MethodPost, "/api/fetchGoogleResult", `{"query":"Ana Ruiz NPI 1001"}`, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "https://example.org/profile") {
		t.Errorf("unexpected search response %d %s", rec.Code, rec.Body.String())
	}

	big := `{"query":"` + strings.Repeat("x", 70<<10) + `"}`
	if rec := serve(srv, http.MethodPost, "/api/fetchGoogleResult", big, nil); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 for an oversized body, got %d", rec.Code)
	}
}

func TestServer_TopologyCached(t *testing.T) {
	srv := newTestServer(t, "")

	first := serve(srv, http.MethodGet, "/api/v1/map/topology", "", nil)
	if first.Code != http.StatusOK || first.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("unexpected first response %d %q", first.Code, first.Header().Get("X-Cache"))
	}
	second := serve(srv, http.MethodGet, "/api/v1/map/topology", "", nil)
	if second.Header().Get("X-Cache") != "HIT" || second.Body.String() != topology {
		t.Errorf("expected cached topology, got %q %s", second.Header().Get("X-Cache"), second.Body.String())
	}
}

func TestServer_AdminRoutes(t *testing.T) {
	open := newTestServer(t, "")
	if rec := serve(open, http.MethodPost, "/api/v1/admin/reload", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("expected admin routes absent without a key, got %d", rec.Code)
	}

	guarded := newTestServer(t, "s3cret")
	if rec := serve(guarded, http.MethodPost, "/api/v1/admin/reload", "", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a key, got %d", rec.Code)
	}
	rec := serve(guarded, http.MethodPost, "/api/v1/admin/reload", "", http.Header{"X-Api-Key": {"s3cret"}})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"doctors":3`) {
		t.Errorf("unexpected reload response %d %s", rec.Code, rec.Body.String())
	}
}

func TestPrintPage(t *testing.T) {
	d := testDeps(t)
	svc, err := d.service()
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	cat, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	var buf bytes.Buffer
	if err := printPage(&buf, cat, provider.NewSelection()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 6 {
		t.Fatalf("expected header, separator, 3 rows and footer, got:\n%s", out)
	}
	if !strings.HasPrefix(lines[0], "| #") || !strings.Contains(lines[2], "1003") {
		t.Errorf("unexpected table:\n%s", out)
	}
	if lines[5] != "page 1 of 1, 3 providers" {
		t.Errorf("unexpected footer %q", lines[5])
	}

	buf.Reset()
	if err := printPage(&buf, cat, provider.NewSelection().WithState("Alaska")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "no providers match\n" {
		t.Errorf("unexpected empty output %q", buf.String())
	}

	for _, state := range []string{"TX", "tx", " Texas ", "texas"} {
		buf.Reset()
		sel := provider.NewSelection().WithState(resolveState(d.table, state))
		if err := printPage(&buf, cat, sel); err != nil {
			t.Fatalf("state %q: unexpected error: %v", state, err)
		}
		out := buf.String()
		if !strings.Contains(out, "1003") || !strings.HasSuffix(out, "page 1 of 1, 1 providers\n") {
			t.Errorf("state %q: expected the Texas provider, got:\n%s", state, out)
		}
	}
	if got := resolveState(d.table, ""); got != "" {
		t.Errorf("expected empty state to stay empty, got %q", got)
	}
}

func TestUploadParquet(t *testing.T) {
	d := testDeps(t)
	svc, _ := d.service()
	cat, err := svc.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	store := blobstore.NewMemoryStore()
	n, err := uploadParquet(context.Background(), store, "exports/providers.parquet", cat)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}
	data, err := store.Get(context.Background(), "exports/providers.parquet")
	if err != nil || !bytes.HasPrefix(data, []byte("PAR1")) {
		t.Errorf("expected a parquet object, err=%v", err)
	}
	if ct := store.ContentType("exports/providers.parquet"); ct != ParquetContentType {
		t.Errorf("unexpected content type %q", ct)
	}
}

type fakeRecordWriter struct {
	got []provider.RawProviderRecord
	err error
}

func (f *fakeRecordWriter) Replace(_ context.Context, records []provider.RawProviderRecord) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.got = records
	return int64(len(records)), nil
}

func TestImportRecords(t *testing.T) {
	src := provider.NewFileSource(writeDataset(t))

	w := &fakeRecordWriter{}
	n, err := importRecords(context.Background(), src, w)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 imported, got %d err=%v", n, err)
	}
	if w.got[0].NPINumber.String() != "1001" {
		t.Errorf("expected upstream order kept, got %s", w.got[0].NPINumber)
	}

	failing := &fakeRecordWriter{err: errors.New("disk full")}
	if _, err := importRecords(context.Background(), src, failing); err == nil {
		t.Error("expected store error")
	}
	if _, err := importRecords(context.Background(), provider.NewFileSource("/nonexistent.json"), w); err == nil {
		t.Error("expected fetch error")
	}
}

func TestPrintMigrationStatus(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var buf bytes.Buffer
	err := printMigrationStatus(&buf, "public", []db.MigrationStatus{
		{Version: 1, Name: "provider_records", Applied: true, AppliedAt: &at},
		{Version: 2, Name: "next"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2026-01-02 03:04:05") || !strings.Contains(out, "pending") {
		t.Errorf("unexpected status output:\n%s", out)
	}
}
