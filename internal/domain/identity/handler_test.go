package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/healthrisk/healthrisk/internal/domain/access"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService()
	h := NewHandler(svc, access.NewGuard(access.Default(), nil))
	return h, svc, echo.New()
}

func newCtx(e *echo.Echo, method, body string, actor *access.Actor) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, "/", strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, "/", nil)
	}
	if actor != nil {
		req = req.WithContext(access.WithActor(context.Background(), actor))
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func statusOf(err error) int {
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return 0
}

func TestHandler_GetPatient_Owner(t *testing.T) {
	h, svc, e := newTestHandler()
	reg := registerPatient(t, svc)
	actor, _ := svc.ResolveActor(context.Background(), reg.User.ID.String())

	c, rec := newCtx(e, http.MethodGet, "", actor)
	c.SetParamNames("id")
	c.SetParamValues(reg.Patient.ID.String())
	if err := h.GetPatient(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_GetPatient_OtherPatientDenied(t *testing.T) {
	h, svc, e := newTestHandler()
	reg := registerPatient(t, svc)
	otherProfile := uuid.New()
	other := &access.Actor{UserID: uuid.New(), Role: access.RolePatient, PatientProfileID: &otherProfile}

	c, _ := newCtx(e, http.MethodGet, "", other)
	c.SetParamNames("id")
	c.SetParamValues(reg.Patient.ID.String())
	if code := statusOf(h.GetPatient(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	admin := &access.Actor{UserID: uuid.New(), Role: access.RoleAdmin}

	c, _ := newCtx(e, http.MethodGet, "", admin)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if code := statusOf(h.GetPatient(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_UpdatePatient_ProfessionalDenied(t *testing.T) {
	h, svc, e := newTestHandler()
	reg := registerPatient(t, svc)
	pro := registerProfessional(t, svc, "house@example.com")
	actor, _ := svc.ResolveActor(context.Background(), pro.User.ID.String())

	c, _ := newCtx(e, http.MethodPatch, `{"height":180}`, actor)
	c.SetParamNames("id")
	c.SetParamValues(reg.Patient.ID.String())
	if code := statusOf(h.UpdatePatient(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_Register(t *testing.T) {
	h, _, e := newTestHandler()
	body := `{"user":{"email":"new@example.com","role":"professional","first_name":"A","last_name":"B"},` +
		`"professional":{"specialty":"Neurology","license_number":"N-9"}}`
	c, rec := newCtx(e, http.MethodPost, body, &access.Actor{UserID: uuid.New(), Role: access.RoleAdmin})
	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got Registration
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Professional == nil || got.Professional.UserID != got.User.ID {
		t.Errorf("expected linked professional profile, got %+v", got)
	}
}

func TestHandler_UpdateProfessional_OwnerOnly(t *testing.T) {
	h, svc, e := newTestHandler()
	owner := registerProfessional(t, svc, "a@example.com")
	other := registerProfessional(t, svc, "b@example.com")
	otherActor, _ := svc.ResolveActor(context.Background(), other.User.ID.String())
	ownerActor, _ := svc.ResolveActor(context.Background(), owner.User.ID.String())

	c, _ := newCtx(e, http.MethodPatch, `{"department":"ICU"}`, otherActor)
	c.SetParamNames("id")
	c.SetParamValues(owner.Professional.ID.String())
	if code := statusOf(h.UpdateProfessional(c)); code != http.StatusForbidden {
		t.Errorf("expected 403 for another professional, got %d", code)
	}

	c, rec := newCtx(e, http.MethodPatch, `{"department":"ICU"}`, ownerActor)
	c.SetParamNames("id")
	c.SetParamValues(owner.Professional.ID.String())
	if err := h.UpdateProfessional(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ListProfessionals_BadFilter(t *testing.T) {
	h, _, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/?accepting_patients=maybe", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if code := statusOf(h.ListProfessionals(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_GetMe_Unauthenticated(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newCtx(e, http.MethodGet, "", nil)
	if code := statusOf(h.GetMe(c)); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}
