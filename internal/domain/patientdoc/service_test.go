package patientdoc

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/responda/responda/internal/domain/pdfreport"
	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/auth"
)

type mockDocRepo struct {
	store map[uuid.UUID]*Document
	seq   int
}

func newMockDocRepo() *mockDocRepo {
	return &mockDocRepo{store: make(map[uuid.UUID]*Document)}
}

func (m *mockDocRepo) Create(_ context.Context, d *Document) error {
	if d.IdempotencyKey != nil {
		for _, existing := range m.store {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *d.IdempotencyKey {
				return ErrDuplicateKey
			}
		}
	}
	d.ID = uuid.New()
	m.seq++
	d.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.seq, 0, time.UTC)
	d.UpdatedAt = d.CreatedAt
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *mockDocRepo) GetByID(_ context.Context, id uuid.UUID) (*Document, error) {
	d, ok := m.store[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDocRepo) GetByIdempotencyKey(_ context.Context, key string) (*Document, error) {
	for _, d := range m.store {
		if d.IdempotencyKey != nil && *d.IdempotencyKey == key {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDocRepo) Update(_ context.Context, d *Document) error {
	if _, ok := m.store[d.ID]; !ok {
		return ErrNotFound
	}
	cp := *d
	m.store[d.ID] = &cp
	return nil
}

func (m *mockDocRepo) Search(_ context.Context, params map[string]string, limit, offset int) ([]*Document, int, error) {
	q := strings.ToLower(params["q"])
	var all []*Document
	for _, d := range m.store {
		if s := params["status"]; s != "" && string(d.Status) != s {
			continue
		}
		if q != "" {
			hay := strings.ToLower(strings.Join([]string{
				d.ID.String(), deref(d.SubmitterName), deref(d.TeamLeadName),
				payloadString(d.Payload, "name"), payloadString(d.Payload, "vorname"), payloadString(d.Payload, "einsatz_nr"),
			}, " "))
			if !strings.Contains(hay, q) {
				continue
			}
		}
		cp := *d
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

func (m *mockDocRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	var n int64
	for id, d := range m.store {
		if d.ExpiresAt != nil && d.ExpiresAt.Before(before) && (d.Status == StatusApproved || d.Status == StatusArchived) {
			delete(m.store, id)
			n++
		}
	}
	return n, nil
}

var fixedNow = time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)

func newTestService() (*Service, *mockDocRepo) {
	repo := newMockDocRepo()
	svc := NewService(repo, &pdfreport.Renderer{
		Now:      func() time.Time { return fixedNow },
		Location: time.UTC,
	})
	svc.now = func() time.Time { return fixedNow }
	return svc, repo
}

func validRequest() SubmitRequest {
	return SubmitRequest{
		Title:  "Notfallprotokoll Mustermann",
		Status: StatusSubmitted,
		Payload: map[string]any{
			"name":             "Mustermann",
			"vorname":          "Max",
			"einsatz_nr":       "2026-0815",
			"notfallgeschehen": "Sturz von Leiter",
			"gcs_augen":        "4",
			"gcs_verbal":       "5",
			"gcs_motorik":      "6",
			"medications": []any{
				map[string]any{"name": "Paracetamol", "dose": "1", "unit": "g", "route": "i.v.", "time": "10:05"},
				map[string]any{"name": ""},
			},
			"signature": "",
		},
	}
}

func TestService_Submit(t *testing.T) {
	svc, _ := newTestService()

	d, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, d.ID)
	assert.Equal(t, StatusSubmitted, d.Status)
	assert.Nil(t, d.ExpiresAt)
}

func TestService_Submit_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*SubmitRequest)
	}{
		{"missing title", func(r *SubmitRequest) { r.Title = "" }},
		{"missing payload", func(r *SubmitRequest) { r.Payload = nil }},
		{"missing status", func(r *SubmitRequest) { r.Status = "" }},
		{"missing name", func(r *SubmitRequest) { r.Payload["name"] = "  " }},
		{"missing vorname", func(r *SubmitRequest) { delete(r.Payload, "vorname") }},
		{"approved on submit", func(r *SubmitRequest) { r.Status = StatusApproved }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Submit(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.ValidationFailed), "got %v", err)
			assert.Empty(t, repo.store)
		})
	}
}

func TestService_Submit_Idempotent(t *testing.T) {
	svc, repo := newTestService()
	req := validRequest()
	req.IdempotencyKey = "7d1c2f9a-key"

	first, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.store, 1)
}

func TestService_Submit_RetentionAndOwner(t *testing.T) {
	svc, _ := newTestService()
	svc.SetRetention(30 * 24 * time.Hour)
	ctx := context.WithValue(context.Background(), auth.UserNameKey, "Erika Muster")

	d, err := svc.Submit(ctx, validRequest())
	require.NoError(t, err)
	require.NotNil(t, d.ExpiresAt)
	assert.Equal(t, fixedNow.Add(30*24*time.Hour), *d.ExpiresAt)
	require.NotNil(t, d.SubmitterName)
	assert.Equal(t, "Erika Muster", *d.SubmitterName)
}

func TestService_ApproveLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	d, err := svc.Submit(ctx, validRequest())
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, d.ID, "Hans Leiter", "data:image/png;base64,AA==")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)
	assert.Equal(t, fixedNow, *approved.ApprovedAt)

	_, err = svc.Approve(ctx, d.ID, "Hans Leiter", "data:image/png;base64,AA==")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Archive(ctx, d.ID, "Admin", "data:image/png;base64,AA==")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestService_ArchiveOpen(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	req := validRequest()
	req.Status = StatusOffen
	d, err := svc.Submit(ctx, req)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, d.ID, "Hans Leiter", "sig")
	assert.ErrorIs(t, err, ErrInvalidTransition, "open documents are archived, not approved")

	archived, err := svc.Archive(ctx, d.ID, "Admin", "sig")
	require.NoError(t, err)
	assert.Equal(t, StatusArchived, archived.Status)
	assert.Equal(t, "Admin", *archived.AdminName)
}

func TestService_Transition_RequiresNameAndSignature(t *testing.T) {
	svc, _ := newTestService()
	d, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), d.ID, "", "sig")
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))
}

func TestService_Get_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Get(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.NotFound))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_InsertManual(t *testing.T) {
	svc, _ := newTestService()
	d, err := svc.InsertManual(context.Background(), map[string]any{"name": "Beispiel"}, "Papierprotokoll", "")
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, d.Status)
	assert.Equal(t, DefaultTitle, d.Title)
	assert.Nil(t, d.AuthorSignature)

	_, err = svc.InsertManual(context.Background(), nil, "", "")
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))
}

func TestService_List(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Submit(ctx, validRequest())
	require.NoError(t, err)
	other := validRequest()
	other.Payload = map[string]any{"name": "Beispiel", "vorname": "Anna", "einsatz_nr": "2026-0999"}
	other.Status = StatusOffen
	_, err = svc.Submit(ctx, other)
	require.NoError(t, err)

	items, total, err := svc.List(ctx, "0999", "", 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Anna", items[0].Payload["vorname"])

	_, total, err = svc.List(ctx, "", StatusSubmitted, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, _, err = svc.List(ctx, "", "rejected", 20, 0)
	assert.True(t, apperr.Is(err, apperr.ValidationFailed))
}

func TestService_RenderPDF(t *testing.T) {
	svc, _ := newTestService()
	svc.SetOrganizationName("FF Musterstadt")
	d, err := svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	doc, name, err := svc.RenderPDF(context.Background(), d.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc.Data, []byte("%PDF-")))
	assert.Contains(t, string(doc.Data), "Paracetamol")
	assert.Contains(t, string(doc.Data), "FF Musterstadt")
	assert.Equal(t, "Notfallprotokoll_2026-0815_20260504.pdf", name)
}

func TestService_PurgeExpired(t *testing.T) {
	svc, repo := newTestService()
	svc.SetRetention(time.Hour)
	ctx := context.Background()

	reviewed, err := svc.Submit(ctx, validRequest())
	require.NoError(t, err)
	_, err = svc.Approve(ctx, reviewed.ID, "Hans Leiter", "sig")
	require.NoError(t, err)
	_, err = svc.Submit(ctx, validRequest())
	require.NoError(t, err)

	svc.now = func() time.Time { return fixedNow.Add(2 * time.Hour) }
	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, repo.store, 1, "unreviewed documents are kept")
}

func TestDocument_Report(t *testing.T) {
	lead := "Hans Leiter"
	leadSig := "data:image/png;base64,AA=="
	author := "data:image/png;base64,BB=="
	d := &Document{
		Payload: map[string]any{
			"name":       "Mustermann",
			"med_name_2": "Heparin",
			"med_dose_2": 5000,
			"med_name_1": "ASS",
			"photos":     []any{"data:image/jpeg;base64,CC==", 42, ""},
		},
		AuthorSignature:   &author,
		TeamLeadName:      &lead,
		TeamLeadSignature: &leadSig,
		ApprovedAt:        &fixedNow,
	}

	r := d.Report("FF Musterstadt")
	assert.Equal(t, "Mustermann", r.Payload.String("name"))
	_, hasPhotos := r.Payload["photos"]
	assert.False(t, hasPhotos)
	require.Len(t, r.Medications, 2)
	assert.Equal(t, "ASS", r.Medications[0].Name)
	assert.Equal(t, "5000", r.Medications[1].Dose)
	assert.Equal(t, []string{"data:image/jpeg;base64,CC=="}, r.Photos)
	assert.Equal(t, author, r.Signature)
	assert.Equal(t, lead, r.Approver.Name)
	assert.Equal(t, fixedNow, r.Approver.At)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusOffen, StatusArchived))
	assert.True(t, CanTransition(StatusSubmitted, StatusApproved))
	assert.False(t, CanTransition(StatusSubmitted, StatusArchived))
	assert.False(t, CanTransition(StatusOffen, StatusApproved))
	assert.False(t, CanTransition(StatusApproved, StatusArchived))
	assert.False(t, CanTransition(StatusArchived, StatusOffen))
}
