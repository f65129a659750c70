package apperr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_HTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		Unauthorized:        http.StatusUnauthorized,
		Forbidden:           http.StatusForbidden,
		UpstreamUnavailable: http.StatusBadGateway,
		ValidationFailed:    http.StatusUnprocessableEntity,
		StorageFull:         http.StatusInsufficientStorage,
		NotFound:            http.StatusNotFound,
		Internal:            http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.HTTPStatus(), kind.String())
	}
}

func TestKind_OnlyUpstreamIsRetryable(t *testing.T) {
	for _, k := range []Kind{Internal, Unauthorized, Forbidden, ValidationFailed, StorageFull, NotFound} {
		assert.False(t, k.Retryable(), k.String())
	}
	assert.True(t, UpstreamUnavailable.Retryable())
}

func TestKindOf_WrappedChain(t *testing.T) {
	base := Validation("name is required")
	wrapped := fmt.Errorf("submit: %w", base)

	assert.Equal(t, ValidationFailed, KindOf(wrapped))
	assert.True(t, Is(wrapped, ValidationFailed))
	assert.Equal(t, Internal, KindOf(errors.New("plain")))
	assert.False(t, Is(nil, Internal))
}

func TestMessage_HidesPlainErrors(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("pq: relation does not exist")))
	assert.Equal(t, "storage unavailable", Message(Upstream(errors.New("dial tcp"), "storage unavailable")))
}

func TestRetry_RetriesOnlyUpstream(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Backoff: time.Millisecond}

	calls := 0
	err := Retry(context.Background(), p, func(context.Context) error {
		calls++
		return Upstream(errors.New("503"), "storage unavailable")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), p, func(context.Context) error {
		calls++
		return Validation("bad input")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_SucceedsAfterTransientFailure(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryPolicy{Attempts: 3, Backoff: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 2 {
			return Upstream(errors.New("timeout"), "upstream unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, RetryPolicy{Attempts: 5, Backoff: time.Second}, func(context.Context) error {
		return Upstream(errors.New("timeout"), "upstream unavailable")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPErrorHandler_AppError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := HTTPErrorHandler(zerolog.New(io.Discard))
	h(Upstream(errors.New("secret provider body"), "storage unavailable").WithDetail("raw body"), c)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "upstream_unavailable", body.Error)
	assert.Equal(t, "storage unavailable", body.Message)
	assert.NotContains(t, rec.Body.String(), "secret provider body")
	assert.NotContains(t, rec.Body.String(), "raw body")
}

func TestHTTPErrorHandler_EchoError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.New(io.Discard))(echo.NewHTTPError(http.StatusNotFound, "document not found"), c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "document not found")
}

func TestHTTPErrorHandler_PlainError(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(zerolog.New(io.Discard))(errors.New("connection reset by peer"), c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}
