package emergency

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

type Service struct {
	alerts AlertRepository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(alerts AlertRepository, logger zerolog.Logger) *Service {
	return &Service{alerts: alerts, logger: logger, now: time.Now}
}

// Raise opens a new active alert. Severity defaults to high.
func (s *Service) Raise(ctx context.Context, actor *access.Actor, a *Alert) error {
	if actor == nil {
		return apperr.Authentication("actor not resolved")
	}
	if a.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	a.Message = strings.TrimSpace(a.Message)
	if a.Message == "" {
		return apperr.Validation("message is required")
	}
	if a.Severity == "" {
		a.Severity = SeverityHigh
	}
	if !a.Severity.Valid() {
		return apperr.Validation("invalid severity %q", a.Severity)
	}
	now := s.now()
	if a.TriggeredAt.IsZero() || a.TriggeredAt.After(now) {
		a.TriggeredAt = now
	}
	a.Status = StatusActive
	a.ProfessionalID = nil
	a.AcknowledgedAt, a.ResolvedAt, a.ResolutionNote = nil, nil, nil
	a.CreatedBy = actor.UserID
	if err := s.alerts.Create(ctx, a); err != nil {
		return err
	}
	s.logger.Warn().
		Str("alert_id", a.ID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("severity", string(a.Severity)).
		Str("raised_by_role", string(actor.Role)).
		Msg("emergency_alert_raised")
	return nil
}

func (s *Service) GetAlert(ctx context.Context, id uuid.UUID) (*Alert, error) {
	return s.alerts.GetByID(ctx, id)
}

func (s *Service) ListAlerts(ctx context.Context, f Filter, limit, offset int) ([]*Alert, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("invalid status filter %q", f.Status)
	}
	return s.alerts.List(ctx, f, limit, offset)
}

// Acknowledge marks an active alert as being handled and records the
// responding professional.
func (s *Service) Acknowledge(ctx context.Context, actor *access.Actor, a *Alert) (*Alert, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, apperr.Forbidden("only professionals and admins acknowledge alerts")
	}
	if a.Status != StatusActive {
		return nil, apperr.Conflict("alert is already %s", a.Status)
	}
	now := s.now()
	a.Status = StatusAcknowledged
	a.AcknowledgedAt = &now
	if actor.ProfessionalProfileID != nil {
		a.ProfessionalID = actor.ProfessionalProfileID
	}
	if err := s.alerts.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Resolve closes an alert. An active alert may be resolved directly, which
// covers a patient withdrawing a false alarm.
func (s *Service) Resolve(ctx context.Context, actor *access.Actor, a *Alert, note string) (*Alert, error) {
	if actor == nil {
		return nil, apperr.Authentication("actor not resolved")
	}
	if a.Status == StatusResolved {
		return nil, apperr.Conflict("alert is already resolved")
	}
	now := s.now()
	a.Status = StatusResolved
	a.ResolvedAt = &now
	if note = strings.TrimSpace(note); note != "" {
		a.ResolutionNote = &note
	}
	if a.ProfessionalID == nil && actor.ProfessionalProfileID != nil {
		a.ProfessionalID = actor.ProfessionalProfileID
	}
	if err := s.alerts.Update(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("alert_id", a.ID.String()).
		Str("patient_id", a.PatientID.String()).
		Dur("open_for", now.Sub(a.TriggeredAt)).
		Msg("emergency_alert_resolved")
	return a, nil
}
