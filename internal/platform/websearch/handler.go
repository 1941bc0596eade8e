package websearch

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Finder is satisfied by *Client.
type Finder interface {
	FirstLink(ctx context.Context, query string) (string, error)
}

type Handler struct {
	finder Finder
	logger zerolog.Logger
}

func NewHandler(finder Finder, logger zerolog.Logger) *Handler {
	return &Handler{finder: finder, logger: logger}
}

// RegisterRoutes mounts the search proxy on the /api group.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/fetchGoogleResult", h.FetchGoogleResult)
}

type resultRequest struct {
	Query string `json:"query"`
}

type resultResponse struct {
	Link string `json:"link,omitempty"`
}

// FetchGoogleResult answers {link} for {query}. Errors are plain text.
func (h *Handler) FetchGoogleResult(c echo.Context) error {
	var req resultRequest
	if err := c.Bind(&req); err != nil {
		if bodyTooLarge(err) {
			return c.String(http.StatusRequestEntityTooLarge, "Request body too large")
		}
		h.logger.Error().Err(err).Msg("error fetching Google result")
		return c.String(http.StatusInternalServerError, "Internal server error")
	}
	if req.Query == "" {
		return c.String(http.StatusBadRequest, "Query is required")
	}

	link, err := h.finder.FirstLink(c.Request().Context(), req.Query)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			return c.String(statusErr.StatusCode, "Network response was not ok")
		}
		if errors.Is(err, ErrQueryRequired) {
			return c.String(http.StatusBadRequest, "Query is required")
		}
		h.logger.Error().Err(err).Msg("error fetching Google result")
		return c.String(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(http.StatusOK, resultResponse{Link: link})
}

// bodyTooLarge reports whether a bind failure came from the body limit.
// Bind may return the reader's 413 as is or wrapped in a 400.
func bodyTooLarge(err error) bool {
	for err != nil {
		var he *echo.HTTPError
		if !errors.As(err, &he) {
			return false
		}
		if he.Code == http.StatusRequestEntityTooLarge {
			return true
		}
		err = he.Internal
	}
	return false
}
