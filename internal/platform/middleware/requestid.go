package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	// RequestIDHeader carries the request id in and out.
	RequestIDHeader = echo.HeaderXRequestID
	// RequestIDKey is the echo context key holding the id.
	RequestIDKey = "request_id"
)

const maxRequestIDLen = 128

// RequestID reuses a caller-supplied X-Request-ID or assigns a new UUID,
// and echoes it on the response.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" || len(rid) > maxRequestIDLen {
				rid = uuid.NewString()
			}
			c.Set(RequestIDKey, rid)
			c.Response().Header().Set(RequestIDHeader, rid)
			return next(c)
		}
	}
}
