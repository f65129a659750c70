package draft

import (
	"time"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/medication"
	"github.com/responda/responda/internal/domain/scores"
)

// Form types with their own draft slot.
const (
	FormPatientProtocol = "patient_protocol"
	FormNacherfassung   = "nacherfassung"
)

// Owner scopes a draft to one user of one tenant. The zero Owner is the
// local device when the store runs without authentication.
type Owner struct {
	TenantID string
	UserID   string
}

// Draft is the auto-saved state of one form. Only raw inputs are stored;
// derived scores are recomputed on load.
type Draft struct {
	FormType    string                `json:"form_type"`
	Snapshot    formsnapshot.Snapshot `json:"snapshot"`
	Medications []medication.Row      `json:"medications"`
	Photos      []string              `json:"photos"`
	Signature   string                `json:"signature"`
	SavedAt     time.Time             `json:"saved_at"`
}

// View is a loaded draft with its derived scores bound to every display key.
type View struct {
	Draft
	Scores  scores.Derived    `json:"scores"`
	Display map[string]string `json:"display"`
}

func newView(d *Draft) *View {
	derived := scores.Compute(d.Snapshot.String)
	return &View{Draft: *d, Scores: derived, Display: derived.Bind()}
}
