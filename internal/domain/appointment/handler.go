package appointment

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dentflow/dentflow/internal/platform/httperr"
)

const (
	codeAppointmentNotFound = "APPOINTMENT_NOT_FOUND"
	codePatientNotFound     = "PATIENT_NOT_FOUND"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Create)
	api.GET("/appointments", h.List)
	api.GET("/appointments/:id", h.Show)
	api.PUT("/appointments/:id", h.Update)
	api.PATCH("/appointments/:id", h.Patch)
	api.DELETE("/appointments/:id", h.Remove)
}

// toHTTP maps service errors onto the status and message the client sees.
func toHTTP(err error) error {
	var he *httperr.Error
	switch {
	case errors.As(err, &he):
		return he
	case errors.Is(err, ErrNotFound):
		return httperr.NotFound(codeAppointmentNotFound)
	case errors.Is(err, ErrPatientNotFound):
		return httperr.NotFound(codePatientNotFound)
	default:
		return httperr.Internal(err)
	}
}

// bindError keeps client errors the binder or the body limit raised with a
// specific status (413, 415) and reports anything else as a malformed body.
func bindError(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		he, ok := e.(*echo.HTTPError)
		if !ok {
			continue
		}
		if he.Code >= 400 && he.Code < 500 && he.Code != http.StatusBadRequest {
			return he
		}
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	a, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": a})
}

func (h *Handler) Update(c echo.Context) error {
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if _, err := h.svc.Update(c.Request().Context(), c.Param("id"), req); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *Handler) Patch(c echo.Context) error {
	var req PatchRequest
	if err := c.Bind(&req); err != nil {
		return bindError(err)
	}
	if _, err := h.svc.Patch(c.Request().Context(), c.Param("id"), req); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}

func (h *Handler) Remove(c echo.Context) error {
	if err := h.svc.Remove(c.Request().Context(), c.Param("id")); err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

func (h *Handler) Show(c echo.Context) error {
	a, err := h.svc.Show(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": a})
}

func (h *Handler) List(c echo.Context) error {
	groups, err := h.svc.List(c.Request().Context())
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "data": groups})
}
