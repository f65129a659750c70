package nacherfassung

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/platform/auth"
	"github.com/responda/responda/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Capture – every member of the organization
	writeGroup := api.Group("", auth.RequireRole(auth.RoleMember, auth.RoleTeamLead))
	writeGroup.POST("/nacherfassungen", h.Create)

	// Review – team leads
	reviewGroup := api.Group("", auth.RequireRole(auth.RoleTeamLead))
	reviewGroup.GET("/nacherfassungen", h.List)
	reviewGroup.GET("/nacherfassungen/:id", h.Get)
	reviewGroup.GET("/nacherfassungen/:id/pdf", h.PDF)
	reviewGroup.POST("/nacherfassungen/:id/archive", h.Archive)
}

func (h *Handler) Create(c echo.Context) error {
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.svc.CreateFromSnapshot(c.Request().Context(), formsnapshot.Snapshot(body).Normalize())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Search(c.Request().Context(), c.QueryParam("q"), Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type archiveRequest struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req archiveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	rec, err := h.svc.Archive(c.Request().Context(), id, req.Name, req.Signature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) PDF(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	doc, name, err := h.svc.RenderPDF(c.Request().Context(), id)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "application/pdf", doc.Data)
}
