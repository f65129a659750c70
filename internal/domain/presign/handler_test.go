package presign

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/responda/responda/internal/platform/apperr"
	"github.com/responda/responda/internal/platform/blobstore"
)

func doPresign(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	req := httptest.NewRequest(http.MethodPost, "/presign", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Presign(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestHandler_Presign(t *testing.T) {
	svc, _ := newTestService(blobstore.NewInMemoryStore("docs"), BackendS3)
	h := NewHandler(svc)

	rec := doPresign(t, h, `{"file_b64":"`+b64("%PDF")+`","filename":"bericht.pdf","expires_in":"600"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Equal(t, 600, resp.ExpiresIn)
	assert.True(t, strings.HasSuffix(resp.ID, "/bericht.pdf"))
	assert.NotEmpty(t, resp.URL)
}

func TestHandler_Presign_MissingFile(t *testing.T) {
	svc, _ := newTestService(blobstore.NewInMemoryStore("docs"), BackendS3)
	rec := doPresign(t, NewHandler(svc), `{"filename":"x.pdf"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "file_b64 missing")
}

func TestHandler_Presign_UpstreamError(t *testing.T) {
	store := &flakyStore{InMemoryStore: blobstore.NewInMemoryStore("b"), failPresign: 10}
	svc, _ := newTestService(store, BackendS3)

	rec := doPresign(t, NewHandler(svc), `{"file_b64":"`+b64("x")+`"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream_unavailable")
}
