package patientdoc

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*Document, error)
	// Update persists status and review fields.
	Update(ctx context.Context, d *Document) error
	// Search filters by "q" (case-insensitive substring over id,
	// submitter_name, team_lead_name and the payload's name, vorname and
	// einsatz_nr) and "status".
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Document, int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
