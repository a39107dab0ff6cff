package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/healthrisk/healthrisk/internal/platform/auth"
)

func okHandler(c echo.Context) error { return c.NoContent(http.StatusOK) }

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})
	h := mw(okHandler)
	e := echo.New()

	for i := 0; i < 2; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := h(c); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	err := h(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_KeysByUser(t *testing.T) {
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(okHandler)
	e := echo.New()

	send := func(user string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, user))
		return h(e.NewContext(req, httptest.NewRecorder()))
	}

	if err := send("alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := send("bob"); err != nil {
		t.Errorf("expected a separate bucket per user, got %v", err)
	}
	if err := send("alice"); err == nil {
		t.Error("expected alice to be limited")
	}
}

func TestLimiterStore_DropsIdleClients(t *testing.T) {
	s := newLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.get("a")
	now = now.Add(2 * time.Minute)
	s.get("b")

	if _, ok := s.clients["a"]; ok {
		t.Error("expected idle client to be dropped")
	}
	if _, ok := s.clients["b"]; !ok {
		t.Error("expected active client to be kept")
	}
}
