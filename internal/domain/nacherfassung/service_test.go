package nacherfassung

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/pdfreport"
	"github.com/responda/responda/internal/platform/apperr"
)

type mockRecordRepo struct {
	store map[uuid.UUID]*Record
	seq   int
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{store: make(map[uuid.UUID]*Record)}
}

func (m *mockRecordRepo) Create(_ context.Context, r *Record) error {
	r.ID = uuid.New()
	m.seq++
	r.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	r, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRecordRepo) Update(_ context.Context, r *Record) error {
	if _, ok := m.store[r.ID]; !ok {
		return ErrNotFound
	}
	cp := *r
	m.store[r.ID] = &cp
	return nil
}

func (m *mockRecordRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Record, int, error) {
	q := strings.ToLower(params["q"])
	var all []*Record
	for _, r := range m.store {
		if s := params["status"]; s != "" && string(r.Status) != s {
			continue
		}
		if q != "" {
			hay := strings.ToLower(strings.Join([]string{r.ID.String(), r.PatientName, r.Stichwort, r.Adresse, r.NacherfasstVonName}, " "))
			if !strings.Contains(hay, q) {
				continue
			}
		}
		cp := *r
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func testRenderer() *pdfreport.Renderer {
	return &pdfreport.Renderer{
		Now:      func() time.Time { return time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC) },
		Location: time.UTC,
	}
}

func newTestService() *Service {
	return NewService(newMockRecordRepo(), testRenderer())
}

func validSnapshot() formsnapshot.Snapshot {
	return formsnapshot.Snapshot{
		"datum_alarmzeit":         "2026-05-03T21:40",
		"datum_einsatzende":       "2026-05-03T22:55",
		"stichwort":               "RD 2",
		"kategorie":               "Rettungsdienst",
		"adresse":                 "Hauptstraße 12, Musterstadt",
		"patienten_daten_erhoben": true,
		"patient_name":            "Max Mustermann",
		"sachverhalt":             "Sturz im Treppenhaus, Patient ansprechbar.",
		"nacherfasst_von_name":    "Erika Muster",
		"nacherfasst_datum":       "2026-05-04T08:00",
	}
}

func TestService_CreateFromSnapshot(t *testing.T) {
	svc := newTestService()
	rec, err := svc.CreateFromSnapshot(context.Background(), validSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Error("expected ID to be set")
	}
	if rec.Status != StatusOffen {
		t.Errorf("expected status offen, got %s", rec.Status)
	}
	if rec.DatumAlarmzeit == nil || rec.DatumAlarmzeit.Hour() != 21 {
		t.Errorf("expected alarm time 21:40, got %v", rec.DatumAlarmzeit)
	}
	if rec.OrganizationID != "" {
		t.Errorf("expected no organization without tenant context, got %q", rec.OrganizationID)
	}
}

func TestService_CreateFromSnapshot_Location(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	svc := newTestService()
	svc.SetLocation(loc)

	rec, err := svc.CreateFromSnapshot(context.Background(), validSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.DatumAlarmzeit.UTC().Hour(); got != 19 {
		t.Errorf("expected 19:40 UTC, got hour %d", got)
	}
}

func TestService_Create_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(formsnapshot.Snapshot)
	}{
		{"missing stichwort", func(s formsnapshot.Snapshot) { delete(s, "stichwort") }},
		{"missing alarm time", func(s formsnapshot.Snapshot) { s["datum_alarmzeit"] = "gestern" }},
		{"missing author", func(s formsnapshot.Snapshot) { s["nacherfasst_von_name"] = "  " }},
		{"patient name when collected", func(s formsnapshot.Snapshot) { delete(s, "patient_name") }},
		{"reason when protocol required", func(s formsnapshot.Snapshot) { s["protokollpflichtig"] = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := validSnapshot()
			tt.mutate(snap)
			_, err := newTestService().CreateFromSnapshot(context.Background(), snap)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !apperr.Is(err, apperr.ValidationFailed) {
				t.Errorf("expected ValidationFailed, got %v", err)
			}
		})
	}
}

func TestService_Create_DefaultsCaptureDate(t *testing.T) {
	svc := newTestService()
	fixed := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	snap := validSnapshot()
	delete(snap, "nacherfasst_datum")
	rec, err := svc.CreateFromSnapshot(context.Background(), snap)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.NacherfasstDatum == nil || !rec.NacherfasstDatum.Equal(fixed) {
		t.Errorf("expected capture date %v, got %v", fixed, rec.NacherfasstDatum)
	}
}

func TestService_Get_NotFound(t *testing.T) {
	_, err := newTestService().Get(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected ErrNotFound in chain")
	}
}

func TestService_Search(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first := validSnapshot()
	if _, err := svc.CreateFromSnapshot(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := validSnapshot()
	second["stichwort"] = "THL 1"
	second["patient_name"] = "Anna Beispiel"
	created, err := svc.CreateFromSnapshot(ctx, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Archive(ctx, created.ID, "Admin", "data:image/png;base64,AA=="); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, total, err := svc.Search(ctx, "beispiel", "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || items[0].PatientName != "Anna Beispiel" {
		t.Errorf("expected one match for beispiel, got %d", total)
	}

	_, total, err = svc.Search(ctx, "", StatusOffen, 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected one open record, got %d", total)
	}
}

func TestService_Archive(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	rec, err := svc.CreateFromSnapshot(ctx, validSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	archived, err := svc.Archive(ctx, rec.ID, "Hans Leiter", "data:image/png;base64,AA==")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if archived.Status != StatusArchived {
		t.Errorf("expected archiviert, got %s", archived.Status)
	}
	if archived.AdminName == nil || *archived.AdminName != "Hans Leiter" {
		t.Errorf("expected admin name to be set, got %v", archived.AdminName)
	}
	if archived.AdminDatum == nil {
		t.Error("expected admin date to be set")
	}

	_, err = svc.Archive(ctx, rec.ID, "Hans Leiter", "data:image/png;base64,AA==")
	if !apperr.Is(err, apperr.ValidationFailed) || !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected invalid transition on second archive, got %v", err)
	}
}

func TestService_Archive_RequiresSignature(t *testing.T) {
	svc := newTestService()
	rec, err := svc.CreateFromSnapshot(context.Background(), validSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Archive(context.Background(), rec.ID, "Hans Leiter", ""); !apperr.Is(err, apperr.ValidationFailed) {
		t.Errorf("expected ValidationFailed, got %v", err)
	}
}

func TestService_RenderPDF(t *testing.T) {
	svc := newTestService()
	svc.SetOrganizationName("FF Musterstadt")
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC) }
	rec, err := svc.CreateFromSnapshot(context.Background(), validSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, name, err := svc.RenderPDF(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(doc.Data, []byte("%PDF-")) {
		t.Error("expected PDF header")
	}
	if !bytes.Contains(doc.Data, []byte("FF Musterstadt")) {
		t.Error("expected organization in document")
	}
	if name != "Nacherfassung_RD_2_2026-05-04.pdf" {
		t.Errorf("unexpected file name %q", name)
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StatusOffen, StatusArchived) {
		t.Error("expected offen -> archiviert to be allowed")
	}
	if CanTransition(StatusArchived, StatusOffen) {
		t.Error("expected archiviert to be final")
	}
	if CanTransition(StatusArchived, StatusArchived) {
		t.Error("expected archiviert -> archiviert to be rejected")
	}
}
