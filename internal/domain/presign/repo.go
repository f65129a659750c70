package presign

import "context"

type Repository interface {
	// Create returns ErrDuplicateKey when the request token is already stored.
	Create(ctx context.Context, u *UploadRequest) error
	GetByToken(ctx context.Context, token string) (*UploadRequest, error)
}
