package patientdoc

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/nacherfassung"
	"github.com/responda/responda/pkg/pagination"
)

// IncidentService is the part of the incident record service the admin
// dispatcher drives through its n_* actions.
type IncidentService interface {
	CreateFromSnapshot(ctx context.Context, snap formsnapshot.Snapshot) (*nacherfassung.Record, error)
	Get(ctx context.Context, id uuid.UUID) (*nacherfassung.Record, error)
	Search(ctx context.Context, query string, status nacherfassung.Status, limit, offset int) ([]*nacherfassung.Record, int, error)
	Archive(ctx context.Context, id uuid.UUID, name, signature string) (*nacherfassung.Record, error)
}

// adminRequest is the body of POST /patient-docs-admin. Field names follow
// the review console's wire format.
type adminRequest struct {
	Action          string         `json:"action"`
	ID              string         `json:"id"`
	Search          string         `json:"search"`
	Status          string         `json:"status"`
	Limit           int            `json:"limit"`
	Offset          int            `json:"offset"`
	Name            string         `json:"name"`
	Signature       string         `json:"signature"`
	Payload         map[string]any `json:"payload"`
	SubmitterName   string         `json:"submitterName"`
	AuthorSignature string         `json:"authorSignature"`
}

type itemsResponse struct {
	Items any `json:"items"`
	Total int `json:"total"`
}

type itemResponse struct {
	Item any `json:"item"`
}

type idResponse struct {
	ID uuid.UUID `json:"id"`
}

type adminAction func(c echo.Context, req adminRequest) error

func (h *Handler) adminActions() map[string]adminAction {
	return map[string]adminAction{
		"list":          h.adminList,
		"get":           h.adminGet,
		"approve":       h.adminApprove,
		"archive":       h.adminArchive,
		"insert_manual": h.adminInsertManual,
		"n_list":        h.adminIncidentList,
		"n_get":         h.adminIncidentGet,
		"n_insert":      h.adminIncidentInsert,
		"n_archive":     h.adminIncidentArchive,
	}
}

// Admin dispatches the review console's actions for patient protocols and,
// with the n_ prefix, incident records.
func (h *Handler) Admin(c echo.Context) error {
	var req adminRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Action == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing action")
	}
	action, ok := h.adminActions()[req.Action]
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "Unknown action: "+req.Action)
	}
	return action(c, req)
}

func (req adminRequest) page() pagination.Params {
	return pagination.Clamp(req.Limit, req.Offset, pagination.AdminDefaultLimit, pagination.AdminMaxLimit)
}

func (req adminRequest) id() (uuid.UUID, error) {
	if req.ID == "" {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "id missing")
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) adminList(c echo.Context, req adminRequest) error {
	pg := req.page()
	items, total, err := h.svc.List(c.Request().Context(), req.Search, Status(req.Status), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Document{}
	}
	return c.JSON(http.StatusOK, itemsResponse{Items: items, Total: total})
}

func (h *Handler) adminGet(c echo.Context, req adminRequest) error {
	id, err := req.id()
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, itemResponse{Item: d})
}

func (h *Handler) adminApprove(c echo.Context, req adminRequest) error {
	id, err := req.id()
	if err != nil {
		return err
	}
	d, err := h.svc.Approve(c.Request().Context(), id, req.Name, req.Signature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idResponse{ID: d.ID})
}

func (h *Handler) adminArchive(c echo.Context, req adminRequest) error {
	id, err := req.id()
	if err != nil {
		return err
	}
	d, err := h.svc.Archive(c.Request().Context(), id, req.Name, req.Signature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idResponse{ID: d.ID})
}

func (h *Handler) adminInsertManual(c echo.Context, req adminRequest) error {
	d, err := h.svc.InsertManual(c.Request().Context(), req.Payload, req.SubmitterName, req.AuthorSignature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idResponse{ID: d.ID})
}

func (h *Handler) adminIncidentList(c echo.Context, req adminRequest) error {
	pg := req.page()
	items, total, err := h.incid.Search(c.Request().Context(), req.Search, nacherfassung.Status(req.Status), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*nacherfassung.Record{}
	}
	return c.JSON(http.StatusOK, itemsResponse{Items: items, Total: total})
}

func (h *Handler) adminIncidentGet(c echo.Context, req adminRequest) error {
	id, err := req.id()
	if err != nil {
		return err
	}
	r, err := h.incid.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, itemResponse{Item: r})
}

func (h *Handler) adminIncidentInsert(c echo.Context, req adminRequest) error {
	if len(req.Payload) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "payload missing")
	}
	r, err := h.incid.CreateFromSnapshot(c.Request().Context(), formsnapshot.Snapshot(req.Payload).Normalize())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idResponse{ID: r.ID})
}

func (h *Handler) adminIncidentArchive(c echo.Context, req adminRequest) error {
	id, err := req.id()
	if err != nil {
		return err
	}
	r, err := h.incid.Archive(c.Request().Context(), id, req.Name, req.Signature)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, idResponse{ID: r.ID})
}
