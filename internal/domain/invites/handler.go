package invites

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/pkg/apperrors"
	"github.com/clinic/clinic/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the admin routes and the two public token routes.
// The token routes are listed in the auth skipper.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/invites/lookup/:token", h.Lookup)
	api.POST("/invites/redeem/:token", h.Redeem)

	adminGroup := api.Group("", auth.RequireRole(auth.AdminRoles...))
	adminGroup.GET("/invites", h.ListInvites)
	adminGroup.POST("/invites", h.IssueInvite)
	adminGroup.DELETE("/invites/:id", h.RevokeInvite)
}

func (h *Handler) IssueInvite(c echo.Context) error {
	var req IssueRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Issue(c.Request().Context(), req)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Handler) ListInvites(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("status"), pg.Limit, pg.Offset)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	if items == nil {
		items = []*Invite{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) RevokeInvite(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Revoke(c.Request().Context(), id); err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Lookup(c echo.Context) error {
	out, err := h.svc.Lookup(c.Request().Context(), c.Param("token"))
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Redeem(c echo.Context) error {
	var req RedeemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := h.svc.Redeem(c.Request().Context(), c.Param("token"), req)
	if err != nil {
		return apperrors.ToHTTP(err)
	}
	return c.JSON(http.StatusCreated, out)
}
