package calendar

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/civil"
)

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/calendar/daily", h.Daily)
	api.GET("/calendar/weekly", h.Weekly)
}

// date reads ?date=YYYY-MM-DD, defaulting to today in the clinic zone.
func (h *Handler) date(c echo.Context) (civil.Date, error) {
	v := c.QueryParam("date")
	if v == "" {
		return civil.DateOf(h.now().In(h.svc.Location())), nil
	}
	d, err := civil.ParseDate(v)
	if err != nil {
		return civil.Date{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return d, nil
}

func (h *Handler) Daily(c echo.Context) error {
	d, err := h.date(c)
	if err != nil {
		return err
	}
	day, err := h.svc.Daily(c.Request().Context(), d)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) Weekly(c echo.Context) error {
	d, err := h.date(c)
	if err != nil {
		return err
	}
	week, err := h.svc.Weekly(c.Request().Context(), d)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, week)
}
