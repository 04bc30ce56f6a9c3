package clinicalnotes

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/apperrors"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the note routes behind the clinical role gate.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.ClinicalRoles...))
	g.GET("/appointments/:id/notes", h.ListByAppointment)
	g.POST("/appointments/:id/notes", h.CreateNote)
	g.PUT("/appointments/:id/note", h.UpsertNote)
	g.GET("/notes/:id", h.GetNote)
	g.PUT("/notes/:id", h.UpdateNote)
	g.GET("/notes/:id/versions", h.ListVersions)
}

func (h *Handler) CreateNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in NoteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.CreateNote(c.Request().Context(), id, in)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) UpsertNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in NoteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, created, err := h.svc.UpsertForAppointment(c.Request().Context(), id, in)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if created {
		return c.JSON(http.StatusCreated, n)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListByAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListByAppointment(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if items == nil {
		items = []*Note{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	n, err := h.svc.GetNote(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) UpdateNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var in NoteInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	n, err := h.svc.UpdateNote(c.Request().Context(), id, in)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) ListVersions(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListVersions(c.Request().Context(), id)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if items == nil {
		items = []*Version{}
	}
	return c.JSON(http.StatusOK, items)
}
