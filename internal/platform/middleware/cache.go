package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// CacheConfig controls the ETag middleware. Directory data is public, so
// responses are marked shareable.
type CacheConfig struct {
	MaxAge       int // seconds
	VaryHeaders  []string
	ExcludePaths []string
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MaxAge:      60,
		VaryHeaders: []string{"Accept", "Accept-Encoding"},
	}
}

// CachedResponse is one stored GET response.
type CachedResponse struct {
	ContentType string
	Body        []byte
}

// CacheStore is a response cache backend.
type CacheStore interface {
	Get(key string) (CachedResponse, bool)
	Set(key string, value CachedResponse, ttl time.Duration)
	Delete(key string)
}

type cacheEntry struct {
	value     CachedResponse
	expiresAt time.Time
}

// InMemoryCacheStore expires entries lazily on read and, when StartCleanup
// is running, periodically in the background.
type InMemoryCacheStore struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewInMemoryCacheStore() *InMemoryCacheStore {
	return &InMemoryCacheStore{entries: make(map[string]cacheEntry)}
}

func (s *InMemoryCacheStore) Get(key string) (CachedResponse, bool) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return CachedResponse{}, false
	}
	if time.Now().After(entry.expiresAt) {
		s.Delete(key)
		return CachedResponse{}, false
	}
	return entry.value, true
}

func (s *InMemoryCacheStore) Set(key string, value CachedResponse, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(ttl)}
}

func (s *InMemoryCacheStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *InMemoryCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *InMemoryCacheStore) purge(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.entries {
		if now.After(v.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartCleanup purges expired entries every interval until ctx is done.
// The returned channel closes once the goroutine has exited.
func (s *InMemoryCacheStore) StartCleanup(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.purge(now)
			}
		}
	}()
	return done
}

// bufferedResponseWriter holds the status and body back so the middleware
// can inspect them before anything reaches the client.
type bufferedResponseWriter struct {
	writer     http.ResponseWriter
	buf        bytes.Buffer
	statusCode int
}

func newBufferedResponseWriter(w http.ResponseWriter) *bufferedResponseWriter {
	return &bufferedResponseWriter{writer: w, statusCode: http.StatusOK}
}

func (w *bufferedResponseWriter) Header() http.Header         { return w.writer.Header() }
func (w *bufferedResponseWriter) Write(b []byte) (int, error) { return w.buf.Write(b) }
func (w *bufferedResponseWriter) WriteHeader(code int)        { w.statusCode = code }
func (w *bufferedResponseWriter) Flush()                      {}

func (w *bufferedResponseWriter) flushTo() error {
	w.writer.WriteHeader(w.statusCode)
	if w.buf.Len() == 0 {
		return nil
	}
	_, err := w.writer.Write(w.buf.Bytes())
	return err
}

// buffer swaps the response writer for a buffer, runs next and restores
// the original writer.
func buffer(c echo.Context, next echo.HandlerFunc) (*bufferedResponseWriter, http.ResponseWriter, error) {
	res := c.Response()
	orig := res.Writer
	buf := newBufferedResponseWriter(orig)
	res.Writer = buf
	err := next(c)
	res.Writer = orig
	return buf, orig, err
}

// ETagMiddleware tags successful GET and HEAD responses with a weak ETag
// and answers a matching If-None-Match with 304.
func ETagMiddleware(config CacheConfig) echo.MiddlewareFunc {
	cacheControl := fmt.Sprintf("public, max-age=%d", config.MaxAge)
	vary := strings.Join(config.VaryHeaders, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next(c)
			}
			if shouldSkip(req.URL.Path, config.ExcludePaths) {
				return next(c)
			}

			buf, orig, err := buffer(c, next)
			if err != nil {
				return err
			}
			if buf.statusCode >= 300 {
				return buf.flushTo()
			}

			h := c.Response().Header()
			h.Set("Cache-Control", cacheControl)
			if vary != "" {
				h.Set("Vary", vary)
			}
			etag := computeETag(buf.buf.Bytes())
			h.Set("ETag", etag)

			if inm := req.Header.Get("If-None-Match"); inm != "" && etagMatch(inm, etag) {
				c.Response().Status = http.StatusNotModified
				orig.WriteHeader(http.StatusNotModified)
				return nil
			}
			return buf.flushTo()
		}
	}
}

// ResponseCacheMiddleware serves repeated GETs for the same URL from store.
// Only 200 responses are stored. X-Cache reports HIT or MISS.
func ResponseCacheMiddleware(store CacheStore, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Method != http.MethodGet {
				return next(c)
			}

			key := cacheKey(req.Method, req.URL.RequestURI())
			if hit, ok := store.Get(key); ok {
				c.Response().Header().Set("X-Cache", "HIT")
				return c.Blob(http.StatusOK, hit.ContentType, hit.Body)
			}

			buf, _, err := buffer(c, next)
			if err != nil {
				return err
			}
			if buf.statusCode == http.StatusOK {
				body := append([]byte(nil), buf.buf.Bytes()...)
				store.Set(key, CachedResponse{
					ContentType: c.Response().Header().Get(echo.HeaderContentType),
					Body:        body,
				}, ttl)
			}
			c.Response().Header().Set("X-Cache", "MISS")
			return buf.flushTo()
		}
	}
}

// computeETag returns a weak validator over the first 16 bytes of the
// body's SHA-256.
func computeETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `W/"` + hex.EncodeToString(sum[:16]) + `"`
}

func cacheKey(method, uri string) string {
	return method + " " + uri
}

func shouldSkip(path string, excludes []string) bool {
	for _, ex := range excludes {
		if path == ex {
			return true
		}
	}
	return false
}

// etagMatch reports whether an If-None-Match value names etag, using weak
// comparison. "*" matches anything.
func etagMatch(headerVal, etag string) bool {
	headerVal = strings.TrimSpace(headerVal)
	if headerVal == "*" {
		return true
	}
	for _, candidate := range strings.Split(headerVal, ",") {
		if strings.TrimPrefix(strings.TrimSpace(candidate), "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}
