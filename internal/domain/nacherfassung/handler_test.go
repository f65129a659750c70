package nacherfassung

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/responda/responda/internal/platform/apperr"
)

const createBody = `{
	"datum_alarmzeit": "2026-05-03T21:40",
	"stichwort": "RD 2",
	"adresse": "Hauptstraße 12",
	"patienten_daten_erhoben": false,
	"nacherfasst_von_name": "Erika Muster",
	"nacherfasst_datum": "2026-05-04T08:00"
}`

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	return e
}

func TestHandler_Create(t *testing.T) {
	e := newTestEcho()
	h := NewHandler(newTestService())

	req := httptest.NewRequest(http.MethodPost, "/nacherfassungen", strings.NewReader(createBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Stichwort != "RD 2" || got.Status != StatusOffen {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestHandler_Create_ValidationError(t *testing.T) {
	e := newTestEcho()
	h := NewHandler(newTestService())

	req := httptest.NewRequest(http.MethodPost, "/nacherfassungen", strings.NewReader(`{"stichwort":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Create(c)
	if err == nil {
		t.Fatal("expected error")
	}
	e.HTTPErrorHandler(err, c)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestHandler_Get_InvalidID(t *testing.T) {
	e := newTestEcho()
	h := NewHandler(newTestService())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.Get(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Get_NotFound(t *testing.T) {
	e := newTestEcho()
	h := NewHandler(newTestService())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("6f1f7a4e-3b1c-4b8e-9f5e-1d2c3b4a5f60")

	err := h.Get(c)
	if err == nil {
		t.Fatal("expected error")
	}
	e.HTTPErrorHandler(err, c)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_ListArchivePDF(t *testing.T) {
	e := newTestEcho()
	svc := newTestService()
	h := NewHandler(svc)

	created, err := svc.CreateFromSnapshot(t.Context(), validSnapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/nacherfassungen?q=muster&status=offen", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var list struct {
		Data  []Record `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 1 || len(list.Data) != 1 {
		t.Fatalf("expected one record, got %d", list.Total)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Hans Leiter","signature":"data:image/png;base64,AA=="}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.Archive(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(created.ID.String())
	if err := h.PDF(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", ct)
	}
	if cd := rec.Header().Get(echo.HeaderContentDisposition); !strings.Contains(cd, "Nacherfassung_RD_2_") {
		t.Errorf("unexpected content disposition %q", cd)
	}
}
