// Package graphql relays GraphQL requests from authenticated clients to the
// Hasura upstream. The admin secret stays on the server; the caller's role
// is forwarded so upstream permissions still apply.
package graphql

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/auth"
)

const (
	HeaderAdminSecret = "x-hasura-admin-secret"
	HeaderRole        = "x-hasura-role"
	HeaderUserID      = "x-hasura-user-id"

	maxRequestBody = 1 << 20
)

type Config struct {
	Endpoint    string
	AdminSecret string
	DefaultRole string
}

type Proxy struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

func NewProxy(cfg Config, logger zerolog.Logger) (*Proxy, error) {
	if cfg.Endpoint == "" || cfg.AdminSecret == "" {
		return nil, fmt.Errorf("graphql endpoint and admin secret are required")
	}
	if cfg.DefaultRole == "" {
		cfg.DefaultRole = auth.RoleMember
	}
	return &Proxy{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger.With().Str("component", "graphql").Logger(),
	}, nil
}

// RegisterRoutes mounts the relay. CORS preflight is answered by the
// server-wide CORS middleware before requests reach the group.
func (p *Proxy) RegisterRoutes(api *echo.Group) {
	api.POST("/graphql", p.Forward)
}

type request struct {
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	OperationName string          `json:"operationName,omitempty"`
}

func (p *Proxy) Forward(c echo.Context) error {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRequestBody+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(raw) > maxRequestBody {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query missing")
	}

	ctx := c.Request().Context()
	upstream, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	upstream.Header.Set("Content-Type", "application/json")
	upstream.Header.Set(HeaderAdminSecret, p.cfg.AdminSecret)
	upstream.Header.Set(HeaderRole, auth.PrimaryRole(ctx, p.cfg.DefaultRole))
	if uid := auth.UserIDFromContext(ctx); uid != "" {
		upstream.Header.Set(HeaderUserID, uid)
	}

	resp, err := p.http.Do(upstream)
	if err != nil {
		return apperr.Upstream(err, "graphql upstream unavailable")
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Upstream(err, "graphql upstream unavailable")
	}
	if resp.StatusCode >= 500 {
		p.logger.Warn().Int("status", resp.StatusCode).Msg("graphql upstream error")
	}

	return c.Blob(resp.StatusCode, echo.MIMEApplicationJSON, body)
}
