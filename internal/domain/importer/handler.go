package importer

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/apperrors"
)

// maxImportSize bounds an uploaded spreadsheet.
const maxImportSize = 10 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("", auth.RequireRole(auth.AdminRoles...))
	admin.POST("/clients/import", h.ImportClients)
	admin.POST("/appointments/import", h.ImportAppointments)
}

func (h *Handler) ImportClients(c echo.Context) error {
	return h.run(c, h.svc.ImportClients)
}

func (h *Handler) ImportAppointments(c echo.Context) error {
	return h.run(c, h.svc.ImportAppointments)
}

func (h *Handler) run(c echo.Context, do func(ctx context.Context, t *Table) (*Result, error)) error {
	file, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if file.Size > maxImportSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file is too large")
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to open uploaded file")
	}
	defer src.Close()

	t, err := ReadTable(file.Filename, src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := do(c.Request().Context(), t)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, res)
}
