package patientdoc

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/responda/responda/internal/domain/pdfreport"
	"github.com/responda/responda/internal/domain/photo"
	"github.com/responda/responda/internal/domain/signature"
	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/auth"
	"github.com/responda/responda/internal/platform/db"
)

// SubmitRequest is a patient protocol sent by the capture form.
type SubmitRequest struct {
	Title           string         `json:"title"`
	Payload         map[string]any `json:"payload"`
	Status          Status         `json:"status"`
	SubmitterName   string         `json:"submitter_name,omitempty"`
	AuthorSignature string         `json:"author_signature,omitempty"`
	IdempotencyKey  string         `json:"-"`
}

type Service struct {
	repo      Repository
	renderer  *pdfreport.Renderer
	org       string
	retention time.Duration
	now       func() time.Time
}

func NewService(repo Repository, renderer *pdfreport.Renderer) *Service {
	return &Service{repo: repo, renderer: renderer, now: time.Now}
}

// SetOrganizationName sets the name printed on rendered protocols.
func (s *Service) SetOrganizationName(name string) {
	s.org = name
}

// SetRetention sets how long reviewed documents are kept after submission.
// Zero keeps them forever.
func (s *Service) SetRetention(d time.Duration) {
	s.retention = d
}

// Submit stores a protocol. A repeated idempotency key returns the document
// created by the first request.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Document, error) {
	if req.Title == "" || len(req.Payload) == 0 || req.Status == "" {
		return nil, apperr.Validation("missing required fields: title, payload, status")
	}
	if payloadString(req.Payload, "name") == "" || payloadString(req.Payload, "vorname") == "" {
		return nil, apperr.Validation("Name und Vorname des Patienten sind Pflichtfelder")
	}
	if req.Status != StatusOffen && req.Status != StatusSubmitted {
		return nil, apperr.Validation("invalid initial status %q", req.Status)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("lookup idempotency key: %w", err)
		}
	}

	if err := s.normalizeMedia(ctx, &req); err != nil {
		return nil, err
	}

	d := &Document{
		Status:  req.Status,
		Title:   req.Title,
		Payload: req.Payload,
	}
	if req.SubmitterName != "" {
		d.SubmitterName = &req.SubmitterName
	} else if name := auth.UserNameFromContext(ctx); name != "" {
		d.SubmitterName = &name
	}
	if req.AuthorSignature != "" {
		d.AuthorSignature = &req.AuthorSignature
	}
	if req.IdempotencyKey != "" {
		d.IdempotencyKey = &req.IdempotencyKey
	}
	if err := s.create(ctx, d); err != nil {
		if errors.Is(err, ErrDuplicateKey) && req.IdempotencyKey != "" {
			// A concurrent request with the same key won the insert.
			return s.repo.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		}
		return nil, err
	}
	return d, nil
}

// InsertManual stores a protocol entered by an administrator, for example
// from a paper form. It starts in the submitted state awaiting approval.
func (s *Service) InsertManual(ctx context.Context, payload map[string]any, submitterName, authorSignature string) (*Document, error) {
	if len(payload) == 0 {
		return nil, apperr.Validation("payload missing")
	}
	title := payloadString(payload, "title")
	if title == "" {
		title = DefaultTitle
	}
	d := &Document{Status: StatusSubmitted, Title: title, Payload: payload}
	if submitterName != "" {
		d.SubmitterName = &submitterName
	}
	if authorSignature != "" {
		d.AuthorSignature = &authorSignature
	}
	if err := s.create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// photoWorkers bounds concurrent photo compression per submission.
const photoWorkers = 4

// normalizeMedia recompresses attached photos into the stored bounding box
// and redraws signatures at the stored raster size. The caller's payload
// map is not modified.
func (s *Service) normalizeMedia(ctx context.Context, req *SubmitRequest) error {
	payload := maps.Clone(req.Payload)

	if uris := (&Document{Payload: payload}).Photos(); len(uris) > 0 {
		compressed, err := photo.CompressDataURIs(ctx, uris, photo.DefaultOptions(), photoWorkers)
		if err != nil {
			return apperr.Wrap(apperr.ValidationFailed, err, "photos could not be processed")
		}
		list := make([]any, len(compressed))
		for i, u := range compressed {
			list[i] = u
		}
		payload[payloadPhotos] = list
	}

	if sig, _ := payload[payloadSignature].(string); sig != "" {
		n, err := signature.Normalize(sig, signature.StoredWidth, signature.StoredHeight)
		if err != nil {
			return apperr.Wrap(apperr.ValidationFailed, err, "signature could not be read")
		}
		payload[payloadSignature] = n
	}
	if req.AuthorSignature != "" {
		n, err := signature.Normalize(req.AuthorSignature, signature.StoredWidth, signature.StoredHeight)
		if err != nil {
			return apperr.Wrap(apperr.ValidationFailed, err, "author signature could not be read")
		}
		req.AuthorSignature = n
	}

	req.Payload = payload
	return nil
}

func (s *Service) create(ctx context.Context, d *Document) error {
	if s.retention > 0 {
		exp := s.now().Add(s.retention)
		d.ExpiresAt = &exp
	}
	if d.OrganizationID == "" {
		d.OrganizationID = db.TenantFromContext(ctx)
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return fmt.Errorf("create patient document: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, err, "patient document not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get patient document: %w", err)
	}
	return d, nil
}

func (s *Service) List(ctx context.Context, query string, status Status, limit, offset int) ([]*Document, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validation("unknown status %q", status)
	}
	params := map[string]string{}
	if query != "" {
		params["q"] = query
	}
	if status != "" {
		params["status"] = string(status)
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// Approve records the team lead's sign-off on a submitted protocol.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, name, signature string) (*Document, error) {
	return s.transition(ctx, id, StatusApproved, name, signature, func(d *Document, at time.Time) {
		d.TeamLeadName = &name
		d.TeamLeadSignature = &signature
		d.ApprovedAt = &at
	})
}

// Archive closes an open protocol with an administrator's signature.
func (s *Service) Archive(ctx context.Context, id uuid.UUID, name, signature string) (*Document, error) {
	return s.transition(ctx, id, StatusArchived, name, signature, func(d *Document, at time.Time) {
		d.AdminName = &name
		d.AdminSignature = &signature
		d.AdminDatum = &at
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, name, signature string, apply func(*Document, time.Time)) (*Document, error) {
	if name == "" || signature == "" {
		return nil, apperr.Validation("id/name/signature missing")
	}
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(d.Status, to) {
		return nil, apperr.Wrap(apperr.ValidationFailed, ErrInvalidTransition,
			fmt.Sprintf("cannot move a document from %q to %q", d.Status, to))
	}
	d.Status = to
	apply(d, s.now())
	if err := s.repo.Update(ctx, d); err != nil {
		return nil, fmt.Errorf("update patient document: %w", err)
	}
	return d, nil
}

// RenderPDF renders a stored protocol and returns the document and its file name.
func (s *Service) RenderPDF(ctx context.Context, id uuid.UUID) (*pdfreport.Document, string, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	doc, err := s.renderer.Patient(d.Report(s.org))
	if err != nil {
		return nil, "", fmt.Errorf("render patient document: %w", err)
	}
	return doc, pdfreport.FileName(payloadString(d.Payload, "einsatz_nr"), s.now()), nil
}

// PurgeExpired deletes reviewed documents whose retention has ended.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("purge patient documents: %w", err)
	}
	return n, nil
}
