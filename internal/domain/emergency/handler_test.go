package emergency

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
	return NewHandler(svc, access.NewGuard(access.Default(), nil)), svc, echo.New()
}

func newCtx(e *echo.Echo, method, body string, actor *access.Actor) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
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

func TestHandler_RaiseAlert(t *testing.T) {
	h, _, e := newTestHandler()
	pid := uuid.New()
	c, rec := newCtx(e, http.MethodPost, `{"severity":"critical","message":"cannot breathe"}`, patientActor(pid))
	c.SetParamNames("id")
	c.SetParamValues(pid.String())
	if err := h.RaiseAlert(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got Alert
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.PatientID != pid || got.Status != StatusActive {
		t.Errorf("unexpected alert %+v", got)
	}
}

func TestHandler_RaiseAlert_ForAnotherPatient(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newCtx(e, http.MethodPost, `{"message":"help"}`, patientActor(uuid.New()))
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if code := statusOf(h.RaiseAlert(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_GetAlert_OtherPatientDenied(t *testing.T) {
	h, svc, e := newTestHandler()
	a := raise(t, svc, uuid.New(), SeverityMedium)
	c, _ := newCtx(e, http.MethodGet, "", patientActor(uuid.New()))
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := statusOf(h.GetAlert(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_AcknowledgeAlert(t *testing.T) {
	h, svc, e := newTestHandler()
	a := raise(t, svc, uuid.New(), SeverityHigh)
	c, rec := newCtx(e, http.MethodPost, "", responder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.AcknowledgeAlert(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got Alert
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusAcknowledged {
		t.Errorf("expected acknowledged, got %s", got.Status)
	}

	c, _ = newCtx(e, http.MethodPost, "", responder())
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := statusOf(h.AcknowledgeAlert(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}
}

func TestHandler_ResolveAlert_NotFound(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newCtx(e, http.MethodPost, `{}`, responder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if code := statusOf(h.ResolveAlert(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}
