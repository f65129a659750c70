package presign

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/responda/responda/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleMember, auth.RoleTeamLead))
	g.POST("/presign", h.Presign)
}

func (h *Handler) Presign(c echo.Context) error {
	var req Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.FileB64 == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "file_b64 missing")
	}
	resp, err := h.svc.Presign(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}
