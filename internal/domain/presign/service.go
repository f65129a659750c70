package presign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/blobstore"
	"github.com/responda/responda/internal/platform/datauri"
	"github.com/responda/responda/internal/platform/metrics"
)

// Service uploads a base64 encoded document and returns a time-limited link
// to it.
type Service struct {
	store   blobstore.Store
	repo    Repository
	backend string
	retry   apperr.RetryPolicy
	logger  zerolog.Logger
	now     func() time.Time
}

func NewService(store blobstore.Store, repo Repository, backend string, logger zerolog.Logger) *Service {
	return &Service{
		store:   store,
		repo:    repo,
		backend: backend,
		retry:   apperr.DefaultRetryPolicy(),
		logger:  logger.With().Str("component", "presign").Logger(),
		now:     time.Now,
	}
}

func (s *Service) Presign(ctx context.Context, req Request) (resp *Response, err error) {
	defer func() {
		metrics.PresignRequests.WithLabelValues(s.backend, metrics.Result(err)).Inc()
	}()

	if req.FileB64 == "" {
		return nil, apperr.Validation("file_b64 missing")
	}
	data, err := datauri.DecodeBase64(req.FileB64)
	if err != nil || len(data) == 0 {
		return nil, apperr.Validation("file_b64 is not valid base64")
	}
	if len(data) > blobstore.MaxFileSize {
		return nil, apperr.New(apperr.StorageFull, "file exceeds maximum allowed size")
	}

	now := s.now()
	name := req.Filename
	if name == "" {
		name = fmt.Sprintf("patient-doc-%d.pdf", now.UnixMilli())
	}
	name = SanitizeFilename(name, now)
	mime := req.MimeType
	if mime == "" {
		mime = DefaultMimeType
	}
	expires := ClampExpiry(int(req.ExpiresIn))

	var objectID string
	if req.RequestToken != "" {
		prev, err := s.repo.GetByToken(ctx, req.RequestToken)
		switch {
		case err == nil:
			objectID = prev.ObjectID
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("lookup request token: %w", err)
		}
	}

	if objectID == "" {
		objectID, err = s.upload(ctx, req.RequestToken, name, mime, data)
		if err != nil {
			return nil, err
		}
	}

	var signed string
	err = apperr.Retry(ctx, s.retry, func(ctx context.Context) error {
		var perr error
		signed, perr = s.store.PresignGet(ctx, objectID, time.Duration(expires)*time.Second)
		return perr
	})
	if err != nil {
		return nil, s.upstream(err, "presign failed")
	}

	return &Response{OK: true, URL: signed, ID: objectID, ExpiresIn: expires}, nil
}

// upload stores the object and, when a request token is given, records it.
// Losing a race on the same token keeps the winner's object.
func (s *Service) upload(ctx context.Context, token, name, mime string, data []byte) (string, error) {
	obj, err := s.store.Put(ctx, s.objectKey(name), mime, data)
	if err != nil {
		return "", s.upstream(err, "upload failed")
	}
	if token == "" {
		return obj.Key, nil
	}

	rec := &UploadRequest{
		RequestToken: token,
		ObjectID:     obj.Key,
		FileName:     name,
		MimeType:     mime,
		Size:         obj.Size,
		Backend:      s.backend,
	}
	err = s.repo.Create(ctx, rec)
	if errors.Is(err, ErrDuplicateKey) {
		winner, gerr := s.repo.GetByToken(ctx, token)
		if gerr != nil {
			return "", fmt.Errorf("refetch request token: %w", gerr)
		}
		if derr := s.store.Delete(ctx, obj.Key); derr != nil {
			s.logger.Warn().Err(derr).Str("object_id", obj.Key).Msg("orphaned upload not removed")
		}
		return winner.ObjectID, nil
	}
	if err != nil {
		return "", fmt.Errorf("record upload request: %w", err)
	}
	return obj.Key, nil
}

// objectKey gives S3 uploads a unique prefix. Nhost assigns its own ids and
// uses the key as the display file name.
func (s *Service) objectKey(name string) string {
	if s.backend == BackendNhost {
		return name
	}
	return fmt.Sprintf("uploads/%s/%s/%s", s.now().UTC().Format("2006/01"), uuid.NewString(), name)
}

func (s *Service) upstream(err error, message string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		s.logger.Error().Err(err).Str("detail", ae.Detail).Msg(message)
		return err
	}
	s.logger.Error().Err(err).Msg(message)
	return apperr.Upstream(err, message)
}
