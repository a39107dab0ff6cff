package risk

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

func newTestHandler(t *testing.T) (*Handler, *testDeps, *echo.Echo) {
	svc, d := newTestService(t)
	return NewHandler(svc, access.NewGuard(access.Default(), nil)), d, echo.New()
}

func newCtx(e *echo.Echo, method, target, body string, actor *access.Actor) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
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

func patientActor(id uuid.UUID) *access.Actor {
	return &access.Actor{UserID: uuid.New(), Role: access.RolePatient, PatientProfileID: &id}
}

func professionalActor() *access.Actor {
	id := uuid.New()
	return &access.Actor{UserID: uuid.New(), Role: access.RoleProfessional, ProfessionalProfileID: &id}
}

func TestHandler_CreatePrediction_Self(t *testing.T) {
	h, d, e := newTestHandler(t)
	pid := d.reader.profile.ID
	c, rec := newCtx(e, http.MethodPost, "/", "", patientActor(pid))
	c.SetParamNames("id")
	c.SetParamValues(pid.String())

	if err := h.CreatePrediction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var got Result
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Assessment == nil || got.Assessment.Scores[CategoryCardiovascular] != 45 {
		t.Errorf("unexpected assessment %+v", got.Assessment)
	}
	if len(got.Recommendations) != 1 {
		t.Errorf("expected one recommendation, got %d", len(got.Recommendations))
	}
}

func TestHandler_CreatePrediction_OtherPatientDenied(t *testing.T) {
	h, d, e := newTestHandler(t)
	c, _ := newCtx(e, http.MethodPost, "/", "", patientActor(uuid.New()))
	c.SetParamNames("id")
	c.SetParamValues(d.reader.profile.ID.String())

	if code := statusOf(h.CreatePrediction(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
	if d.tx.calls != 0 {
		t.Error("expected no pipeline run for a denied request")
	}
}

func TestHandler_CreatePrediction_NoActor(t *testing.T) {
	h, d, e := newTestHandler(t)
	c, _ := newCtx(e, http.MethodPost, "/", "", nil)
	c.SetParamNames("id")
	c.SetParamValues(d.reader.profile.ID.String())

	if code := statusOf(h.CreatePrediction(c)); code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", code)
	}
}

func TestHandler_GetLatestPrediction_NotFound(t *testing.T) {
	h, d, e := newTestHandler(t)
	c, _ := newCtx(e, http.MethodGet, "/", "", professionalActor())
	c.SetParamNames("id")
	c.SetParamValues(d.reader.profile.ID.String())

	if code := statusOf(h.GetLatestPrediction(c)); code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestHandler_ListPredictions_BadDays(t *testing.T) {
	h, d, e := newTestHandler(t)
	pid := d.reader.profile.ID
	for _, days := range []string{"abc", "400"} {
		c, _ := newCtx(e, http.MethodGet, "/?days="+days, "", patientActor(pid))
		c.SetParamNames("id")
		c.SetParamValues(pid.String())
		if code := statusOf(h.ListPredictions(c)); code != http.StatusBadRequest {
			t.Errorf("days=%s: expected 400, got %d", days, code)
		}
	}
}

func TestHandler_ListRecommendations(t *testing.T) {
	h, d, e := newTestHandler(t)
	pid := d.reader.profile.ID
	if _, err := h.svc.Assess(context.Background(), pid); err != nil {
		t.Fatalf("assess: %v", err)
	}

	c, rec := newCtx(e, http.MethodGet, "/?status=pending", "", professionalActor())
	c.SetParamNames("id")
	c.SetParamValues(pid.String())
	if err := h.ListRecommendations(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got pagination.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Total != 1 {
		t.Errorf("expected 1 pending recommendation, got %d", got.Total)
	}
}

func TestHandler_UpdateRecommendationStatus(t *testing.T) {
	h, d, e := newTestHandler(t)
	pid := d.reader.profile.ID
	res, err := h.svc.Assess(context.Background(), pid)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	id := res.Recommendations[0].ID.String()

	c, rec := newCtx(e, http.MethodPut, "/", `{"status":"completed"}`, patientActor(pid))
	c.SetParamNames("id")
	c.SetParamValues(id)
	if err := h.UpdateRecommendationStatus(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	// Completed is final.
	c, _ = newCtx(e, http.MethodPut, "/", `{"status":"pending"}`, patientActor(pid))
	c.SetParamNames("id")
	c.SetParamValues(id)
	if code := statusOf(h.UpdateRecommendationStatus(c)); code != http.StatusConflict {
		t.Errorf("expected 409, got %d", code)
	}

	// Another patient cannot touch it.
	c, _ = newCtx(e, http.MethodPut, "/", `{"status":"dismissed"}`, patientActor(uuid.New()))
	c.SetParamNames("id")
	c.SetParamValues(id)
	if code := statusOf(h.UpdateRecommendationStatus(c)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestHandler_GetRecommendation_InvalidID(t *testing.T) {
	h, _, e := newTestHandler(t)
	c, _ := newCtx(e, http.MethodGet, "/", "", professionalActor())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	if code := statusOf(h.GetRecommendation(c)); code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}
