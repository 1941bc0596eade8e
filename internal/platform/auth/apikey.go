package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingKey indicates the request carried no API key at all.
	ErrMissingKey = errors.New("api key required")

	// ErrInvalidKey indicates the provided key does not match the configured one.
	ErrInvalidKey = errors.New("invalid api key")
)

// StaticKey guards operator endpoints with a single shared key. Only the
// SHA-256 digest of the key is held in memory.
type StaticKey struct {
	digest [sha256.Size]byte
}

// NewStaticKey returns nil for an empty key; callers treat a nil guard as
// "admin endpoints disabled".
func NewStaticKey(raw string) *StaticKey {
	if raw == "" {
		return nil
	}
	return &StaticKey{digest: sha256.Sum256([]byte(raw))}
}

// Validate compares raw against the configured key in constant time.
func (k *StaticKey) Validate(raw string) error {
	if raw == "" {
		return ErrMissingKey
	}
	got := sha256.Sum256([]byte(raw))
	if subtle.ConstantTimeCompare(got[:], k.digest[:]) != 1 {
		return ErrInvalidKey
	}
	return nil
}

// Middleware rejects requests whose key is missing or wrong with 401.
func (k *StaticKey) Middleware(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := k.Validate(extractAPIKey(c)); err != nil {
				logger.Warn().
					Str("path", c.Request().URL.Path).
					Str("remote_ip", c.RealIP()).
					Err(err).
					Msg("admin request rejected")
				c.Response().Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}
			return next(c)
		}
	}
}

// extractAPIKey returns the raw key from the X-API-Key header, falling back
// to an Authorization: Bearer token.
func extractAPIKey(c echo.Context) string {
	if apiKey := c.Request().Header.Get("X-API-Key"); apiKey != "" {
		return apiKey
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
