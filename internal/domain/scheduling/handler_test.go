package scheduling

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
	"github.com/healthrisk/healthrisk/pkg/pagination"
)

func newTestHandler() (*Handler, *Service, *echo.Echo) {
	svc, _ := newTestService()
	return NewHandler(svc, access.NewGuard(access.Default(), nil)), svc, echo.New()
}

func newCtx(e *echo.Echo, method, target, body string, actor *access.Actor) (echo.Context, *httptest.ResponseRecorder) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
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

func professional() (*access.Actor, uuid.UUID) {
	id := uuid.New()
	return &access.Actor{UserID: uuid.New(), Role: access.RoleProfessional, ProfessionalProfileID: &id}, id
}

func patient() (*access.Actor, uuid.UUID) {
	id := uuid.New()
	return &access.Actor{UserID: uuid.New(), Role: access.RolePatient, PatientProfileID: &id}, id
}

func TestHandler_CreateAppointment_PatientSelfBooking(t *testing.T) {
	h, _, e := newTestHandler()
	actor, pid := patient()
	body := `{"patient_id":"` + pid.String() + `","professional_id":"` + uuid.New().String() +
		`","start_time":"2025-03-10T09:00:00Z","end_time":"2025-03-10T09:30:00Z"}`
	c, rec := newCtx(e, http.MethodPost, "/", body, actor)
	if err := h.CreateAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_CreateAppointment_ForOtherPatientDenied(t *testing.T) {
	h, _, e := newTestHandler()
	actor, _ := patient()
	body := `{"patient_id":"` + uuid.New().String() + `","professional_id":"` + uuid.New().String() +
		`","start_time":"2025-03-10T09:00:00Z","end_time":"2025-03-10T09:30:00Z"}`
	c, _ := newCtx(e, http.MethodPost, "/", body, actor)
	if code := statusOf(h.CreateAppointment(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_GetAppointment_OwnershipScoped(t *testing.T) {
	h, svc, e := newTestHandler()
	booked, proID := professional()
	other, _ := professional()
	a := newAppt(uuid.New(), proID, base)
	_ = svc.CreateAppointment(context.Background(), a)

	c, rec := newCtx(e, http.MethodGet, "/", "", booked)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.GetAppointment(c); err != nil || rec.Code != http.StatusOK {
		t.Fatalf("expected booked professional to read, got %v / %d", err, rec.Code)
	}

	c, _ = newCtx(e, http.MethodGet, "/", "", other)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if code := statusOf(h.GetAppointment(c)); code != http.StatusForbidden {
		t.Errorf("expected 403 for unrelated professional, got %d", code)
	}
}

func TestHandler_ListAppointments_PatientPinned(t *testing.T) {
	h, svc, e := newTestHandler()
	actor, pid := patient()
	_ = svc.CreateAppointment(context.Background(), newAppt(pid, uuid.New(), base))
	_ = svc.CreateAppointment(context.Background(), newAppt(uuid.New(), uuid.New(), base))

	c, rec := newCtx(e, http.MethodGet, "/?patient_id="+uuid.New().String(), "", actor)
	if err := h.ListAppointments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var resp pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("expected only the patient's own appointment, got %d", resp.Total)
	}
}

func TestHandler_ListAppointments_BadTime(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newCtx(e, http.MethodGet, "/?from=yesterday", "", &access.Actor{UserID: uuid.New(), Role: access.RoleAdmin})
	if code := statusOf(h.ListAppointments(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestHandler_ListAppointments_UnknownRoleDenied(t *testing.T) {
	h, _, e := newTestHandler()
	c, _ := newCtx(e, http.MethodGet, "/", "", &access.Actor{UserID: uuid.New(), Role: access.Role("auditor")})
	if code := statusOf(h.ListAppointments(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_CancelAppointment(t *testing.T) {
	h, svc, e := newTestHandler()
	actor, pid := patient()
	a := newAppt(pid, uuid.New(), base)
	_ = svc.CreateAppointment(context.Background(), a)

	c, rec := newCtx(e, http.MethodPost, "/", `{"reason":"travel"}`, actor)
	c.SetParamNames("id")
	c.SetParamValues(a.ID.String())
	if err := h.CancelAppointment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
