package patientdoc

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/responda/responda/internal/platform/auth"
	"github.com/responda/responda/pkg/pagination"
)

// IdempotencyKeyHeader carries the client generated key that makes a
// submission safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

type Handler struct {
	svc   *Service
	incid IncidentService
}

func NewHandler(svc *Service, incidents IncidentService) *Handler {
	return &Handler{svc: svc, incid: incidents}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	// Submit – every member
	submitGroup := api.Group("", auth.RequireRole(auth.RoleMember, auth.RoleTeamLead))
	submitGroup.POST("/patient-docs", h.Submit)

	// Review – team leads
	reviewGroup := api.Group("", auth.RequireRole(auth.RoleTeamLead))
	reviewGroup.GET("/patient-docs", h.List)
	reviewGroup.GET("/patient-docs/:id", h.Get)
	reviewGroup.GET("/patient-docs/:id/pdf", h.PDF)
	reviewGroup.POST("/patient-docs/:id/approve", h.Approve)
	reviewGroup.POST("/patient-docs/:id/archive", h.Archive)
	reviewGroup.POST("/patient-docs-admin", h.Admin)
}

type submitResponse struct {
	Success  bool            `json:"success"`
	Document submittedDocRef `json:"document"`
}

type submittedDocRef struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) Submit(c echo.Context) error {
	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req.IdempotencyKey = c.Request().Header.Get(IdempotencyKeyHeader)
	d, err := h.svc.Submit(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, submitResponse{
		Success:  true,
		Document: submittedDocRef{ID: d.ID, Title: d.Title, CreatedAt: d.CreatedAt},
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), c.QueryParam("q"), Status(c.QueryParam("status")), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

type reviewRequest struct {
	Name      string `json:"name"`
	Signature string `json:"signature"`
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.Approve(c.Request().Context(), id, req.Name, req.Signature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Archive(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := h.svc.Archive(c.Request().Context(), id, req.Name, req.Signature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
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
