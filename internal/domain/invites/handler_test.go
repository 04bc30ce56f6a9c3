package invites

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler() (*Handler, *fixture, *echo.Echo) {
	f := newFixture()
	return NewHandler(f.svc), f, echo.New()
}

func TestHandler_IssueInvite(t *testing.T) {
	h, f, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"novo@clinica.pt","role":"doctor"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = req.WithContext(f.adminCtx())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.IssueInvite(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["token"] == "" || out["link"] == "" {
		t.Errorf("expected token and link, got %v", out)
	}
	if strings.Contains(rec.Body.String(), "token_hash") {
		t.Error("token hash must not be serialised")
	}
}

func TestHandler_IssueInvite_Pending(t *testing.T) {
	h, f, e := newTestHandler()
	f.issue(t, "novo@clinica.pt", auth.RoleDoctor)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"novo@clinica.pt","role":"doctor"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req.WithContext(f.adminCtx()), httptest.NewRecorder())

	err := h.IssueInvite(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict || he.Message != "pending invite" {
		t.Fatalf("expected 409 pending invite, got %v", err)
	}
}

func TestHandler_LookupAndRedeem(t *testing.T) {
	h, f, e := newTestHandler()
	out := f.issue(t, "novo@clinica.pt", auth.RoleAdminDoctor)

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("token")
	c.SetParamValues(out.Token)
	if err := h.Lookup(c); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"role":"admin_doctor"`) {
		t.Errorf("unexpected lookup body %s", rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Dr. Novo","password":"segredo1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.SetParamNames("token")
	c.SetParamValues(out.Token)
	if err := h.Redeem(c); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), "doctor_id") {
		t.Errorf("unexpected redeem response %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_Lookup_Unknown(t *testing.T) {
	h, _, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("token")
	c.SetParamValues("nope")

	err := h.Lookup(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}
