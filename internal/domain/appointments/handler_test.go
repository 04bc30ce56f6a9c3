package appointments

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/pkg/pagination"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc, time.UTC), f, echo.New()
}

func TestHandler_CreateAppointment(t *testing.T) {
	h, f, e := newTestHandler()
	body := `{"client_id":"` + f.clientID.String() + `","doctor_id":"` + f.doctorID.String() + `","date":"2026-03-02T09:30:00Z","duration_min":45}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"scheduled"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_CreateAppointment_PendingDoctor(t *testing.T) {
	h, f, e := newTestHandler()
	body := `{"client_id":"` + f.clientID.String() + `","doctor_id":"` + f.pendingDoctorID.String() + `","date":"2026-03-02T09:30:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.CreateAppointment(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_SearchAppointments_DateOnlyRange(t *testing.T) {
	h, f, e := newTestHandler()
	f.book(t, monday)
	f.book(t, monday.Add(10*time.Hour))
	f.book(t, monday.AddDate(0, 0, 1))

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments?from=2026-03-02&to=2026-03-02", nil), rec)
	if err := h.SearchAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 {
		t.Errorf("expected 2 appointments on the day, got %d", resp.Total)
	}
}

func TestHandler_SearchAppointments_BadParams(t *testing.T) {
	h, _, e := newTestHandler()
	for _, q := range []string{"from=yesterday", "doctor_id=abc", "status=postponed"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/appointments?"+q, nil), httptest.NewRecorder())
		err := h.SearchAppointments(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %v", q, err)
		}
	}
}

func TestHandler_Start(t *testing.T) {
	h, f, e := newTestHandler()
	a := f.book(t, monday)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())

	if err := h.Start(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"status":"in_progress"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestHandler_Cancel_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("6f1c2a9e-8f53-4c1e-9a53-0d7b1f2b9e11")

	err := h.Cancel(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
