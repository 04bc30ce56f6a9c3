package accounts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/clinic/clinic/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func TestHandler_Login(t *testing.T) {
	h, e := newTestHandler()
	mustMember(t, h.svc, "doc@example.com", auth.RoleDoctor)

	body := `{"email":"doc@example.com","password":"secret1"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var res LoginResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Token == "" || res.Profile == nil {
		t.Error("expected token and profile")
	}
}

func TestHandler_Login_WrongPassword(t *testing.T) {
	h, e := newTestHandler()
	mustMember(t, h.svc, "doc@example.com", auth.RoleDoctor)

	body := `{"email":"doc@example.com","password":"nope-nope"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Login(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	h, e := newTestHandler()
	p := mustMember(t, h.svc, "admin@example.com", auth.RoleAdmin)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(context.Background(), p.UserID.String(), auth.RoleAdmin))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"can_access_clinical_notes":false`) {
		t.Errorf("expected admin without clinical access, got %s", rec.Body.String())
	}
}

func TestHandler_ListUsers(t *testing.T) {
	h, e := newTestHandler()
	mustMember(t, h.svc, "a@example.com", auth.RoleAdmin)
	mustMember(t, h.svc, "b@example.com", auth.RoleDoctor)

	req := httptest.NewRequest(http.MethodGet, "/?role=doctor", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListUsers(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"total":1`) {
		t.Errorf("expected one doctor, got %s", rec.Body.String())
	}
}

func TestHandler_UpdateRole(t *testing.T) {
	h, e := newTestHandler()
	mustMember(t, h.svc, "a@example.com", auth.RoleAdmin)
	doc := mustMember(t, h.svc, "b@example.com", auth.RoleDoctor)

	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"admin_doctor"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(doc.UserID.String())

	if err := h.UpdateRole(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_UpdateRole_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"admin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	if err := h.UpdateRole(c); err == nil {
		t.Error("expected error for invalid id")
	}
}
