package patientdoc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/responda/responda/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const docCols = `id, status, title, payload, submitter_name, author_signature, team_lead_name,
	team_lead_signature, approved_at, admin_name, admin_datum, admin_signature, expires_at,
	idempotency_key, organization_id, created_at, updated_at`

func (r *repoPG) scanDoc(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Status, &d.Title, &d.Payload, &d.SubmitterName, &d.AuthorSignature, &d.TeamLeadName,
		&d.TeamLeadSignature, &d.ApprovedAt, &d.AdminName, &d.AdminDatum, &d.AdminSignature, &d.ExpiresAt,
		&d.IdempotencyKey, &d.OrganizationID, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

const uniqueViolation = "23505"

func (r *repoPG) Create(ctx context.Context, d *Document) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient_docs (id, status, title, payload, submitter_name, author_signature,
			expires_at, idempotency_key, organization_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		d.ID, d.Status, d.Title, d.Payload, d.SubmitterName, d.AuthorSignature,
		d.ExpiresAt, d.IdempotencyKey, d.OrganizationID,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	return r.scanDoc(r.conn(ctx).QueryRow(ctx, `SELECT `+docCols+` FROM patient_docs WHERE id = $1`, id))
}

func (r *repoPG) GetByIdempotencyKey(ctx context.Context, key string) (*Document, error) {
	return r.scanDoc(r.conn(ctx).QueryRow(ctx, `SELECT `+docCols+` FROM patient_docs WHERE idempotency_key = $1`, key))
}

func (r *repoPG) Update(ctx context.Context, d *Document) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_docs SET status=$2, team_lead_name=$3, team_lead_signature=$4, approved_at=$5,
			admin_name=$6, admin_datum=$7, admin_signature=$8, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Status, d.TeamLeadName, d.TeamLeadSignature, d.ApprovedAt,
		d.AdminName, d.AdminDatum, d.AdminSignature)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Document, int, error) {
	query := `SELECT ` + docCols + ` FROM patient_docs WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patient_docs WHERE 1=1`
	var args []interface{}
	idx := 1

	if q, ok := params["q"]; ok && q != "" {
		clause := fmt.Sprintf(` AND (id::text ILIKE $%[1]d OR submitter_name ILIKE $%[1]d OR team_lead_name ILIKE $%[1]d
			OR payload->>'name' ILIKE $%[1]d OR payload->>'vorname' ILIKE $%[1]d OR payload->>'einsatz_nr' ILIKE $%[1]d)`, idx)
		query += clause
		countQuery += clause
		args = append(args, db.ContainsPattern(q))
		idx++
	}
	if p, ok := params["status"]; ok && p != "" {
		query += fmt.Sprintf(` AND status = $%d`, idx)
		countQuery += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, p)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Document
	for rows.Next() {
		d, err := r.scanDoc(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// DeleteExpired removes reviewed documents whose retention ended before the cutoff.
func (r *repoPG) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM patient_docs
		WHERE expires_at IS NOT NULL AND expires_at < $1 AND status IN ('approved', 'archiviert')`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
