// Package nhost talks to the Nhost auth and storage services with a
// service account. Storage implements blobstore.Store so the presign relay
// can run against Nhost instead of S3.
package nhost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/blobstore"
)

const (
	maxBodyDetail = 300
	tokenLifetime = 10 * time.Minute
)

type Config struct {
	StorageURL string
	AuthURL    string
	Email      string
	Password   string
	Bucket     string
}

// Storage uploads files into a bucket and issues presigned download URLs.
// The access token of the service account is cached until it nears expiry.
type Storage struct {
	storageBase string
	authBase    string
	email       string
	password    string
	bucket      string
	http        *http.Client
	logger      zerolog.Logger
	now         func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

var _ blobstore.Store = (*Storage)(nil)

// NewStorage validates cfg and returns a Storage. Base URLs may be given with
// or without the trailing /v1.
func NewStorage(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if cfg.StorageURL == "" || cfg.AuthURL == "" {
		return nil, fmt.Errorf("nhost storage and auth urls are required")
	}
	if cfg.Email == "" || cfg.Password == "" {
		return nil, fmt.Errorf("nhost service credentials are required")
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "default"
	}
	return &Storage{
		storageBase: baseURL(cfg.StorageURL),
		authBase:    baseURL(cfg.AuthURL),
		email:       cfg.Email,
		password:    cfg.Password,
		bucket:      bucket,
		http:        &http.Client{Timeout: 30 * time.Second},
		logger:      logger.With().Str("component", "nhost").Logger(),
		now:         time.Now,
	}, nil
}

func baseURL(raw string) string {
	s := strings.TrimRight(strings.TrimSpace(raw), "/")
	s = strings.TrimSuffix(s, "/v1")
	return strings.TrimRight(s, "/")
}

// accessToken returns the cached token or signs in again.
func (s *Storage) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != "" && s.now().Before(s.tokenExp) {
		return s.token, nil
	}

	payload, _ := json.Marshal(map[string]string{"email": s.email, "password": s.password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.authBase+"/v1/signin/email-password", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := s.do(req)
	if err != nil {
		return "", apperr.Upstream(err, "storage sign-in failed")
	}
	if status < 200 || status > 299 {
		return "", s.upstreamError("storage sign-in failed", status, body)
	}

	var resp struct {
		Session *struct {
			AccessToken          string `json:"accessToken"`
			AccessTokenExpiresIn int    `json:"accessTokenExpiresIn"`
		} `json:"session"`
		AccessToken string `json:"accessToken"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", s.upstreamError("storage sign-in returned an invalid response", status, body)
	}
	token := resp.AccessToken
	lifetime := tokenLifetime
	if resp.Session != nil && resp.Session.AccessToken != "" {
		token = resp.Session.AccessToken
		if exp := time.Duration(resp.Session.AccessTokenExpiresIn) * time.Second; exp > time.Minute {
			lifetime = exp - 30*time.Second
		}
	}
	if token == "" {
		return "", s.upstreamError("storage sign-in returned no access token", status, body)
	}

	s.token = token
	s.tokenExp = s.now().Add(lifetime)
	return token, nil
}

func (s *Storage) invalidateToken() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}

// Put uploads data as a multipart form. The returned Object's Key is the
// file id assigned by Nhost, not the requested name.
func (s *Storage) Put(ctx context.Context, name, contentType string, data []byte) (*blobstore.Object, error) {
	if name == "" {
		return nil, blobstore.ErrMissingKey
	}
	if len(data) > blobstore.MaxFileSize {
		return nil, blobstore.ErrFileTooLarge
	}
	token, err := s.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}
	if err := mw.WriteField("bucketId", s.bucket); err != nil {
		return nil, fmt.Errorf("write bucket field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.storageBase+"/v1/files", &buf)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	body, status, err := s.do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "upload failed")
	}
	if status == http.StatusUnauthorized {
		s.invalidateToken()
	}
	if status == http.StatusRequestEntityTooLarge || status == http.StatusInsufficientStorage {
		return nil, apperr.New(apperr.StorageFull, "storage rejected the upload").WithDetail(truncate(body))
	}
	if status < 200 || status > 299 {
		return nil, s.upstreamError("upload failed", status, body)
	}

	id := fileID(body)
	if id == "" {
		return nil, s.upstreamError("upload returned no file id", status, body)
	}
	return &blobstore.Object{
		Key:         id,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   s.now().UTC(),
	}, nil
}

// fileID accepts the response shapes the storage API has used over time.
func fileID(body []byte) string {
	var list []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &list); err == nil {
		if len(list) > 0 {
			return list[0].ID
		}
		return ""
	}

	type idOnly struct {
		ID string `json:"id"`
	}
	var obj struct {
		ID             string   `json:"id"`
		FileMetadata   []idOnly `json:"fileMetadata"`
		ProcessedFiles []idOnly `json:"processedFiles"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	switch {
	case obj.ID != "":
		return obj.ID
	case len(obj.FileMetadata) > 0 && obj.FileMetadata[0].ID != "":
		return obj.FileMetadata[0].ID
	case len(obj.ProcessedFiles) > 0:
		return obj.ProcessedFiles[0].ID
	}
	return ""
}

func (s *Storage) PresignGet(ctx context.Context, id string, expires time.Duration) (string, error) {
	if id == "" {
		return "", blobstore.ErrMissingKey
	}
	token, err := s.accessToken(ctx)
	if err != nil {
		return "", err
	}

	u := fmt.Sprintf("%s/v1/files/%s/presignedurl?expiresIn=%s",
		s.storageBase, url.PathEscape(id), strconv.Itoa(int(expires.Seconds())))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build presign request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, status, err := s.do(req)
	if err != nil {
		return "", apperr.Upstream(err, "presign failed")
	}
	if status == http.StatusNotFound {
		return "", blobstore.ErrBlobNotFound
	}
	if status < 200 || status > 299 {
		if status == http.StatusUnauthorized {
			s.invalidateToken()
		}
		return "", s.upstreamError("presign failed", status, body)
	}

	signed := presignedURL(body)
	if signed == "" {
		return "", s.upstreamError("presign returned no url", status, body)
	}
	return signed, nil
}

func presignedURL(body []byte) string {
	var obj struct {
		URL          string `json:"url"`
		PresignedURL string `json:"presignedUrl"`
		SignedURL    string `json:"signedUrl"`
	}
	if err := json.Unmarshal(body, &obj); err == nil {
		for _, u := range []string{obj.URL, obj.PresignedURL, obj.SignedURL} {
			if u != "" {
				return u
			}
		}
		return ""
	}
	raw := strings.TrimSpace(string(body))
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return ""
}

func (s *Storage) Delete(ctx context.Context, id string) error {
	token, err := s.accessToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.storageBase+"/v1/files/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	body, status, err := s.do(req)
	if err != nil {
		return apperr.Upstream(err, "delete failed")
	}
	switch {
	case status == http.StatusNotFound:
		return blobstore.ErrBlobNotFound
	case status < 200 || status > 299:
		return s.upstreamError("delete failed", status, body)
	}
	return nil
}

func (s *Storage) do(req *http.Request) ([]byte, int, error) {
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// upstreamError keeps the provider body out of the user-facing message.
func (s *Storage) upstreamError(message string, status int, body []byte) error {
	detail := truncate(body)
	s.logger.Warn().Int("status", status).Str("body", detail).Msg(message)
	return apperr.Upstream(errors.New(http.StatusText(status)), message).
		WithDetail(fmt.Sprintf("status %d: %s", status, detail))
}

func truncate(body []byte) string {
	if len(body) > maxBodyDetail {
		return string(body[:maxBodyDetail])
	}
	return string(body)
}
