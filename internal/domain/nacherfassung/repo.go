package nacherfassung

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	Update(ctx context.Context, r *Record) error
	// Search filters by "q" (case-insensitive substring over id, patient_name,
	// stichwort, adresse and nacherfasst_von_name) and "status".
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Record, int, error)
}
