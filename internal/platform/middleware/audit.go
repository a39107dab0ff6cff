package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/platform/auth"
)

const apiPrefix = "/api/v1/"

// AuditEntry describes one access to protected health information.
type AuditEntry struct {
	UserID       string
	Role         string
	ResourceType string
	PatientID    string
	Action       string // read, create, update, delete
	RemoteIP     string
	Path         string
	Method       string
	RequestID    string
	Status       int
	Timestamp    time.Time
}

// Audit logs a phi_access event for every request under /api/v1/. The
// handler runs first so the event carries the final status and the role
// resolved for the actor.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if !strings.HasPrefix(path, apiPrefix) {
				return next(c)
			}

			err := next(c)

			entry := buildAuditEntry(c, err)
			evt := logger.Info()
			if entry.Status == http.StatusForbidden {
				evt = logger.Warn()
			}
			evt.
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource_type", entry.ResourceType).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.RemoteIP).
				Int("status", entry.Status).
				Msg("phi_access")

			return err
		}
	}
}

func buildAuditEntry(c echo.Context, err error) AuditEntry {
	req := c.Request()
	ctx := req.Context()
	entry := AuditEntry{
		UserID:       auth.UserIDFromContext(ctx),
		ResourceType: resourceType(req.URL.Path),
		PatientID:    patientID(req.URL.Path),
		Action:       methodToAction(req.Method),
		RemoteIP:     c.RealIP(),
		Path:         req.URL.Path,
		Method:       req.Method,
		Status:       c.Response().Status,
		Timestamp:    time.Now().UTC(),
	}
	if actor := access.ActorFromContext(ctx); actor != nil {
		entry.Role = string(actor.Role)
	}
	if rid, ok := c.Get("request_id").(string); ok {
		entry.RequestID = rid
	}
	if he, ok := err.(*echo.HTTPError); ok {
		entry.Status = he.Code
	}
	return entry
}

func methodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceType names what a path touches:
//
//	/api/v1/patients/{id}                -> patients
//	/api/v1/patients/{id}/measurements   -> measurements
//	/api/v1/recommendations/{id}/status  -> recommendations
func resourceType(path string) string {
	segments := strings.Split(strings.Trim(strings.TrimPrefix(path, apiPrefix), "/"), "/")
	if segments[0] == "" {
		return "unknown"
	}
	if segments[0] == "patients" && len(segments) >= 3 && isUUID(segments[1]) {
		return segments[2]
	}
	return segments[0]
}

func patientID(path string) string {
	rest, ok := strings.CutPrefix(path, apiPrefix+"patients/")
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	if !isUUID(id) {
		return ""
	}
	return id
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
