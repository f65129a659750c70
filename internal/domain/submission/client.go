// Package submission sends a captured patient protocol to the server. It
// is the client half of POST /api/v1/patient-docs and is used by the CLI and
// by field devices that sync queued protocols.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/responda/responda/internal/domain/formsnapshot"
	"github.com/responda/responda/internal/domain/medication"
	"github.com/responda/responda/internal/platform/apperr"
)

const (
	DefaultTitle   = "Notfallprotokoll"
	StatusSubmit   = "submitted"
	submitPath     = "/api/v1/patient-docs"
	maxBodyDetail  = 300
	idempotencyHdr = "Idempotency-Key"
)

// Protocol is everything the capture form hands over for submission.
type Protocol struct {
	Snapshot        formsnapshot.Snapshot
	Medications     []medication.Row
	Photos          []string
	Signature       string
	SubmitterName   string
	AuthorSignature string
}

// Payload assembles the JSON payload stored with the document.
func (p Protocol) Payload() map[string]any {
	out := map[string]any(p.Snapshot.Clone())
	if len(p.Medications) > 0 {
		out["medications"] = p.Medications
	}
	if len(p.Photos) > 0 {
		out["photos"] = p.Photos
	}
	if p.Signature != "" {
		out["signature"] = p.Signature
	}
	return out
}

type Result struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   apperr.RetryPolicy
	logger  zerolog.Logger
}

func NewClient(baseURL, token string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		retry:   apperr.DefaultRetryPolicy(),
		logger:  logger.With().Str("component", "submission").Logger(),
	}
}

type submitBody struct {
	Title           string         `json:"title"`
	Payload         map[string]any `json:"payload"`
	Status          string         `json:"status"`
	SubmitterName   string         `json:"submitter_name,omitempty"`
	AuthorSignature string         `json:"author_signature,omitempty"`
}

type submitReply struct {
	Success  bool   `json:"success"`
	Document Result `json:"document"`
}

// Submit posts p. All attempts share one idempotency key so a retry after a
// lost response cannot create a second document.
func (c *Client) Submit(ctx context.Context, p Protocol) (*Result, error) {
	if strings.TrimSpace(p.Snapshot.String("name")) == "" || strings.TrimSpace(p.Snapshot.String("vorname")) == "" {
		return nil, apperr.Validation("Name und Vorname des Patienten sind Pflichtfelder")
	}
	body, err := json.Marshal(submitBody{
		Title:           DefaultTitle,
		Payload:         p.Payload(),
		Status:          StatusSubmit,
		SubmitterName:   p.SubmitterName,
		AuthorSignature: p.AuthorSignature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	key := uuid.NewString()
	var res *Result
	err = apperr.Retry(ctx, c.retry, func(ctx context.Context) error {
		var serr error
		res, serr = c.post(ctx, key, body)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) post(ctx context.Context, key string, body []byte) (*Result, error) {
	url := c.baseURL + submitPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(idempotencyHdr, key)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperr.Upstream(err, fmt.Sprintf("submission to %s failed", url))
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Upstream(err, fmt.Sprintf("submission to %s failed", url))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e := apperr.New(kindForStatus(resp.StatusCode), "submission failed: HTTP %d from %s", resp.StatusCode, url).
			WithDetail(truncate(raw))
		c.logger.Warn().Int("status", resp.StatusCode).Str("body", e.Detail).Msg("submission rejected")
		return nil, e
	}

	var reply submitReply
	if err := json.Unmarshal(raw, &reply); err != nil || reply.Document.ID == uuid.Nil {
		return nil, apperr.New(apperr.UpstreamUnavailable, "submission failed: invalid response (HTTP %d) from %s", resp.StatusCode, url).
			WithDetail(truncate(raw))
	}
	return &reply.Document, nil
}

func kindForStatus(status int) apperr.Kind {
	switch {
	case status == http.StatusUnauthorized:
		return apperr.Unauthorized
	case status == http.StatusForbidden:
		return apperr.Forbidden
	case status == http.StatusInsufficientStorage || status == http.StatusRequestEntityTooLarge:
		return apperr.StorageFull
	case status == http.StatusNotFound:
		return apperr.NotFound
	case status >= 500 || status == http.StatusTooManyRequests:
		return apperr.UpstreamUnavailable
	default:
		return apperr.ValidationFailed
	}
}

func truncate(b []byte) string {
	if len(b) > maxBodyDetail {
		return string(b[:maxBodyDetail])
	}
	return string(b)
}
