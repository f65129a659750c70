package presign

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/responda/responda/internal/platform/db"
)

type queryable interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const uniqueViolation = "23505"

func (r *repoPG) Create(ctx context.Context, u *UploadRequest) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO upload_requests (id, request_token, object_id, file_name, mime_type, size, backend)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		u.ID, u.RequestToken, u.ObjectID, u.FileName, u.MimeType, u.Size, u.Backend,
	).Scan(&u.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateKey
	}
	return err
}

func (r *repoPG) GetByToken(ctx context.Context, token string) (*UploadRequest, error) {
	var u UploadRequest
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, request_token, object_id, file_name, mime_type, size, backend, created_at
		FROM upload_requests WHERE request_token = $1`, token,
	).Scan(&u.ID, &u.RequestToken, &u.ObjectID, &u.FileName, &u.MimeType, &u.Size, &u.Backend, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
