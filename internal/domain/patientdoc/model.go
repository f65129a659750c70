package patientdoc

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/medication"
	"github.com/responda/responda/internal/domain/pdfreport"
)

type Status string

const (
	StatusOffen     Status = "offen"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusArchived  Status = "archiviert"
)

// DefaultTitle is used for documents entered by hand without a title.
const DefaultTitle = "Notfallprotokoll"

var (
	ErrNotFound          = errors.New("patient document not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrDuplicateKey      = errors.New("idempotency key already used")
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOffen, StatusSubmitted, StatusApproved, StatusArchived:
		return true
	}
	return false
}

// CanTransition reports whether a document may move between statuses.
// Approved and archived documents are final.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusOffen:
		return to == StatusArchived
	case StatusSubmitted:
		return to == StatusApproved
	}
	return false
}

// Payload keys that are not part of the form snapshot proper.
const (
	payloadMedications = "medications"
	payloadPhotos      = "photos"
	payloadSignature   = "signature"
)

// Document maps to the patient_docs table: one submitted patient protocol.
type Document struct {
	ID                uuid.UUID      `db:"id" json:"id"`
	Status            Status         `db:"status" json:"status"`
	Title             string         `db:"title" json:"title"`
	Payload           map[string]any `db:"payload" json:"payload"`
	SubmitterName     *string        `db:"submitter_name" json:"submitter_name,omitempty"`
	AuthorSignature   *string        `db:"author_signature" json:"author_signature,omitempty"`
	TeamLeadName      *string        `db:"team_lead_name" json:"team_lead_name,omitempty"`
	TeamLeadSignature *string        `db:"team_lead_signature" json:"team_lead_signature,omitempty"`
	ApprovedAt        *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	AdminName         *string        `db:"admin_name" json:"admin_name,omitempty"`
	AdminDatum        *time.Time     `db:"admin_datum" json:"admin_datum,omitempty"`
	AdminSignature    *string        `db:"admin_signature" json:"admin_signature,omitempty"`
	ExpiresAt         *time.Time     `db:"expires_at" json:"expires_at,omitempty"`
	IdempotencyKey    *string        `db:"idempotency_key" json:"-"`
	OrganizationID    string         `db:"organization_id" json:"organization_id"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Snapshot returns the form fields of the payload without the attached
// medications, photos and signature.
func (d *Document) Snapshot() formsnapshot.Snapshot {
	return formsnapshot.Snapshot(d.Payload).
		Without(payloadMedications, payloadPhotos, payloadSignature).
		Normalize()
}

// Medications decodes the medication rows of the payload. Payloads written
// before rows were stored as a list carry positional med_* fields instead.
func (d *Document) Medications() []medication.Row {
	if raw, ok := d.Payload[payloadMedications]; ok && raw != nil {
		var rows []medication.Row
		if b, err := json.Marshal(raw); err == nil && json.Unmarshal(b, &rows) == nil {
			out := rows[:0]
			for _, r := range rows {
				if !r.Empty() {
					out = append(out, r)
				}
			}
			return out
		}
	}
	return medication.FromSnapshot(formsnapshot.Snapshot(d.Payload)).SerializeRows()
}

// Photos returns the photo data URIs attached to the payload.
func (d *Document) Photos() []string {
	list, _ := d.Payload[payloadPhotos].([]any)
	var out []string
	for _, v := range list {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Signature returns the author signature, preferring the one drawn on the form.
func (d *Document) Signature() string {
	if s, _ := d.Payload[payloadSignature].(string); s != "" {
		return s
	}
	return deref(d.AuthorSignature)
}

// Report converts the document into the input of the patient protocol PDF.
// The reviewer block shows the team lead who approved it, or the
// administrator who archived it.
func (d *Document) Report(org string) pdfreport.PatientReport {
	r := pdfreport.PatientReport{
		Organization: org,
		Payload:      d.Snapshot(),
		Medications:  d.Medications(),
		Photos:       d.Photos(),
		Signature:    d.Signature(),
	}
	switch {
	case d.TeamLeadName != nil:
		r.Approver = pdfreport.Approval{Name: *d.TeamLeadName, Signature: deref(d.TeamLeadSignature)}
		if d.ApprovedAt != nil {
			r.Approver.At = *d.ApprovedAt
		}
	case d.AdminName != nil:
		r.Approver = pdfreport.Approval{Name: *d.AdminName, Signature: deref(d.AdminSignature)}
		if d.AdminDatum != nil {
			r.Approver.At = *d.AdminDatum
		}
	}
	return r
}

func payloadString(p map[string]any, key string) string {
	return strings.TrimSpace(formsnapshot.Snapshot(p).String(key))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
