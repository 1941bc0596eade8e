package mapview

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type Handler struct {
	sel    *Selector
	logger zerolog.Logger
}

func NewHandler(sel *Selector, logger zerolog.Logger) *Handler {
	return &Handler{sel: sel, logger: logger}
}

// RegisterRoutes mounts the map endpoints on g (/api/v1/map). Extra
// middleware, such as a response cache, wraps the topology route only.
func (h *Handler) RegisterRoutes(g *echo.Group, topology ...echo.MiddlewareFunc) {
	g.GET("/states", h.ListStates)
	g.POST("/select", h.SelectState)
	g.GET("/tooltip/:fips", h.GetTooltip)
	g.GET("/topology", h.GetTopology, topology...)
}

func (h *Handler) ListStates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"width":  Width,
		"height": Height,
		"states": h.sel.Paths(c.QueryParam("selected")),
	})
}

type selectRequest struct {
	FIPS string `json:"fips"`
}

func (h *Handler) SelectState(c echo.Context) error {
	var req selectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FIPS == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "fips is required")
	}
	return c.JSON(http.StatusOK, map[string]string{"state": h.sel.Select(req.FIPS)})
}

func (h *Handler) GetTooltip(c echo.Context) error {
	x, err := strconv.Atoi(c.QueryParam("x"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "x must be an integer")
	}
	y, err := strconv.Atoi(c.QueryParam("y"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "y must be an integer")
	}
	return c.JSON(http.StatusOK, h.sel.Tooltip(c.Param("fips"), x, y))
}

func (h *Handler) GetTopology(c echo.Context) error {
	data, err := h.sel.Topology(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load map topology")
		return echo.NewHTTPError(http.StatusBadGateway, "map topology unavailable")
	}
	return c.JSONBlob(http.StatusOK, data)
}
