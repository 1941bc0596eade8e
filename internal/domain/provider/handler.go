package provider

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/oncofinder/oncofinder/pkg/pagination"
)

type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// RegisterRoutes mounts the dataset proxy on api (/api) and the finder on
// v1 (/api/v1).
func (h *Handler) RegisterRoutes(api *echo.Group, v1 *echo.Group) {
	api.GET("/fetchDoctorsData", h.FetchDoctorsData)

	v1.GET("/doctors", h.ListDoctors)
	v1.GET("/doctors/:npi/link", h.GetDoctorLink)
	v1.GET("/states", h.ListStates)
	v1.GET("/states/:state/counties", h.ListCounties)
	v1.GET("/specialties", h.ListSpecialties)
}

// RegisterAdminRoutes mounts maintenance endpoints; the caller guards admin.
func (h *Handler) RegisterAdminRoutes(admin *echo.Group) {
	admin.POST("/reload", h.Reload)
}

// FetchDoctorsData returns the upstream dataset verbatim.
func (h *Handler) FetchDoctorsData(c echo.Context) error {
	data, err := h.svc.Raw(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("error fetching doctors data")
		return c.String(http.StatusInternalServerError, "Internal server error")
	}
	return c.JSONBlob(http.StatusOK, data)
}

// DoctorPage is the finder response: one page plus the reconciled selection
// the client should render next.
type DoctorPage struct {
	*pagination.Response
	Selection Selection `json:"selection"`
}

func (h *Handler) ListDoctors(c echo.Context) error {
	sel := Selection{
		State:     c.QueryParam("state"),
		Specialty: c.QueryParam("specialty"),
		County:    c.QueryParam("county"),
		Query:     c.QueryParam("q"),
		Page:      pagination.FromContext(c).Page,
	}
	if !IsKnownSpecialty(sel.Specialty) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown specialty")
	}
	if v := c.QueryParam("last_total"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid last_total")
		}
		sel.LastTotal = n
		sel.Observed = true
	}

	res, next := h.svc.Browse(c.Request().Context(), sel)
	return c.JSON(http.StatusOK, DoctorPage{
		Response:  pagination.NewResponse(res.Doctors, res.Total, res.Page),
		Selection: next,
	})
}

func (h *Handler) GetDoctorLink(c echo.Context) error {
	link, err := h.svc.Link(c.Request().Context(), c.Param("npi"))
	if errors.Is(err, ErrDoctorNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "doctor not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if link == "" {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, map[string]string{"url": link})
}

func (h *Handler) ListStates(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"states": h.svc.States(c.Request().Context()),
	})
}

func (h *Handler) ListCounties(c echo.Context) error {
	state, err := url.PathUnescape(c.Param("state"))
	if err != nil {
		state = c.Param("state")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"state":    state,
		"counties": h.svc.Counties(c.Request().Context(), state),
	})
}

func (h *Handler) ListSpecialties(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"specialties": Specialties(),
	})
}

func (h *Handler) Reload(c echo.Context) error {
	cat, err := h.svc.Reload(c.Request().Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("reload failed")
		return echo.NewHTTPError(http.StatusBadGateway, "dataset reload failed")
	}
	return c.JSON(http.StatusOK, map[string]int{
		"doctors": cat.Len(),
		"states":  len(cat.Keys()),
	})
}
