package draft

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/responda/responda/internal/platform/auth"
	"github.com/responda/responda/internal/platform/db"
)

// Handler exposes the draft store over HTTP for clients without local storage.
// Each caller only sees the drafts of its own tenant and user.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/drafts/:form_type", h.Get)
	g.PUT("/drafts/:form_type", h.Put)
	g.DELETE("/drafts/:form_type", h.Delete)
}

func ownerOf(c echo.Context) (Owner, error) {
	ctx := c.Request().Context()
	o := Owner{TenantID: db.TenantFromContext(ctx), UserID: auth.UserIDFromContext(ctx)}
	if o.TenantID == "" || o.UserID == "" {
		return Owner{}, echo.NewHTTPError(http.StatusUnauthorized, "drafts require an authenticated tenant user")
	}
	return o, nil
}

func (h *Handler) Get(c echo.Context) error {
	owner, err := ownerOf(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Load(c.Request().Context(), owner, c.Param("form_type"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Put(c echo.Context) error {
	owner, err := ownerOf(c)
	if err != nil {
		return err
	}
	var d Draft
	if err := c.Bind(&d); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d.FormType = c.Param("form_type")
	if err := h.svc.Save(c.Request().Context(), owner, &d); err != nil {
		return err
	}
	v, err := h.svc.Load(c.Request().Context(), owner, d.FormType)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) Delete(c echo.Context) error {
	owner, err := ownerOf(c)
	if err != nil {
		return err
	}
	if err := h.svc.Discard(c.Request().Context(), owner, c.Param("form_type")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
