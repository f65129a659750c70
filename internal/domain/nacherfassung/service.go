package nacherfassung

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/pdfreport"
	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/db"
)

type Service struct {
	repo     Repository
	renderer *pdfreport.Renderer
	org      string
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, renderer *pdfreport.Renderer) *Service {
	return &Service{repo: repo, renderer: renderer, loc: time.UTC, now: time.Now}
}

// SetOrganizationName sets the name printed on rendered records.
func (s *Service) SetOrganizationName(name string) {
	s.org = name
}

// SetLocation sets the zone in which form timestamps without an offset are read.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// CreateFromSnapshot validates and stores a retro form.
func (s *Service) CreateFromSnapshot(ctx context.Context, snap formsnapshot.Snapshot) (*Record, error) {
	rec := FromSnapshot(snap, s.loc)
	if err := s.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Create(ctx context.Context, r *Record) error {
	if r.Stichwort == "" {
		return apperr.Validation("stichwort is required")
	}
	if r.DatumAlarmzeit == nil {
		return apperr.Validation("datum_alarmzeit is required")
	}
	if r.NacherfasstVonName == "" {
		return apperr.Validation("nacherfasst_von_name is required")
	}
	if r.PatientenDatenErhoben && r.PatientName == "" {
		return apperr.Validation("patient_name is required when patient data was collected")
	}
	if r.Protokollpflichtig && r.ProtokollpflichtigBegruendung == "" {
		return apperr.Validation("protokollpflichtig_begruendung is required")
	}
	if r.NacherfasstDatum == nil {
		now := s.now()
		r.NacherfasstDatum = &now
	}
	r.Status = StatusOffen
	if r.OrganizationID == "" {
		r.OrganizationID = db.TenantFromContext(ctx)
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return fmt.Errorf("create nacherfassung: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	r, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, err, "nacherfassung not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get nacherfassung: %w", err)
	}
	return r, nil
}

func (s *Service) Search(ctx context.Context, query string, status Status, limit, offset int) ([]*Record, int, error) {
	params := map[string]string{}
	if query != "" {
		params["q"] = query
	}
	if status != "" {
		params["status"] = string(status)
	}
	return s.repo.Search(ctx, params, limit, offset)
}

// Archive closes an open record with the reviewer's name and signature.
func (s *Service) Archive(ctx context.Context, id uuid.UUID, name, signature string) (*Record, error) {
	if name == "" || signature == "" {
		return nil, apperr.Validation("name and signature are required")
	}
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusArchived) {
		return nil, apperr.Wrap(apperr.ValidationFailed, ErrInvalidTransition,
			fmt.Sprintf("cannot archive a record in status %q", r.Status))
	}
	now := s.now()
	r.Status = StatusArchived
	r.AdminName = &name
	r.AdminDatum = &now
	r.AdminUnterschrift = &signature
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("archive nacherfassung: %w", err)
	}
	return r, nil
}

// RenderPDF renders a stored record and returns the document and its file name.
func (s *Service) RenderPDF(ctx context.Context, id uuid.UUID) (*pdfreport.Document, string, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	doc, err := s.renderer.Incident(r.Report(s.org))
	if err != nil {
		return nil, "", fmt.Errorf("render nacherfassung: %w", err)
	}
	return doc, pdfreport.IncidentFileName(r.Stichwort, s.now()), nil
}
