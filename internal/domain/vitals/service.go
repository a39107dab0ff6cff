package vitals

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
	"github.com/healthrisk/healthrisk/pkg/tags"
)

// maxClockSkew is how far in the future a reading's timestamp may be.
const maxClockSkew = 5 * time.Minute

// RiskInvalidator drops a patient's cached risk assessment.
type RiskInvalidator interface {
	Invalidate(ctx context.Context, patientID uuid.UUID) error
}

type Service struct {
	measurements MeasurementRepository
	risk         RiskInvalidator
	logger       zerolog.Logger
	now          func() time.Time
}

// NewService builds the service. risk may be nil.
func NewService(measurements MeasurementRepository, risk RiskInvalidator, logger zerolog.Logger) *Service {
	return &Service{measurements: measurements, risk: risk, logger: logger, now: time.Now}
}

// Record validates and stores a new reading and flags it against the
// normal-range table.
func (s *Service) Record(ctx context.Context, actor *access.Actor, m *Measurement) error {
	if actor == nil {
		return apperr.Authentication("actor not resolved")
	}
	if m.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if !m.Type.Valid() {
		return apperr.Validation("unknown measurement type %q", m.Type)
	}
	now := s.now()
	if m.MeasuredAt.IsZero() {
		m.MeasuredAt = now
	}
	if m.MeasuredAt.After(now.Add(maxClockSkew)) {
		return apperr.Validation("measured_at cannot be in the future")
	}
	if m.Unit = strings.TrimSpace(m.Unit); m.Unit == "" {
		m.Unit = defaultUnits[m.Type]
	}
	if m.Source == "" {
		m.Source = "manual"
	}
	if !validSources[m.Source] {
		return apperr.Validation("unknown source %q", m.Source)
	}
	m.Tags = tags.NormalizeAll(m.Tags)
	if err := checkValue(m); err != nil {
		return err
	}
	abnormal, err := m.Abnormal()
	if err != nil {
		return err
	}
	m.IsAbnormal = abnormal
	m.ValidationStatus = ValidationPending
	m.ValidatedBy, m.ValidatedAt, m.RejectionReason = nil, nil, nil
	m.CreatedBy = actor.UserID
	if actor.ProfessionalProfileID != nil {
		m.ProfessionalID = actor.ProfessionalProfileID
	}

	if err := s.measurements.Create(ctx, m); err != nil {
		return err
	}
	if s.risk != nil {
		if err := s.risk.Invalidate(ctx, m.PatientID); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", m.PatientID.String()).Msg("risk cache invalidation failed")
		}
	}
	return nil
}

// checkValue decodes the value for its type and rejects implausible
// readings. Only custom readings may omit the value.
func checkValue(m *Measurement) error {
	if m.Type == TypeBloodPressure {
		bp, present, err := m.BloodPressure()
		if err != nil {
			return err
		}
		if !present {
			return apperr.Validation("blood_pressure requires a value")
		}
		if !plausibleSystolic.Contains(bp.Systolic) || !plausibleDiastolic.Contains(bp.Diastolic) {
			return apperr.Validation("blood_pressure %g/%g is outside the plausible range", bp.Systolic, bp.Diastolic)
		}
		if bp.Diastolic >= bp.Systolic {
			return apperr.Validation("diastolic must be lower than systolic")
		}
		return nil
	}
	v, present, err := m.Scalar()
	if err != nil {
		return err
	}
	if !present {
		if m.Type == TypeCustom {
			return nil
		}
		return apperr.Validation("%s requires a value", m.Type)
	}
	if r, ok := plausible[m.Type]; ok && !r.Contains(v) {
		return apperr.Validation("%s value %g is outside the plausible range %g-%g", m.Type, v, r.Min, r.Max)
	}
	return nil
}

func (s *Service) GetMeasurement(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	return s.measurements.GetByID(ctx, id)
}

func (s *Service) ListMeasurements(ctx context.Context, f Filter, limit, offset int) ([]*Measurement, int, error) {
	if f.Type != "" && !f.Type.Valid() {
		return nil, 0, apperr.Validation("unknown measurement type %q", f.Type)
	}
	return s.measurements.List(ctx, f, limit, offset)
}

// SetValidation records a professional's review of a reading. It is the
// only mutation a measurement accepts.
func (s *Service) SetValidation(ctx context.Context, actor *access.Actor, m *Measurement, v Validation) (*Measurement, error) {
	if actor == nil || !actor.IsStaff() {
		return nil, apperr.Forbidden("only professionals and admins validate measurements")
	}
	var reason *string
	switch v.Status {
	case ValidationValidated:
	case ValidationRejected:
		r := strings.TrimSpace(v.Reason)
		if r == "" {
			return nil, apperr.Validation("a rejection requires a reason")
		}
		reason = &r
	default:
		return nil, apperr.Validation("status must be validated or rejected")
	}
	at := s.now()
	if err := s.measurements.SetValidation(ctx, m.ID, v.Status, actor.ProfessionalProfileID, at, reason); err != nil {
		return nil, err
	}
	m.ValidationStatus = v.Status
	m.ValidatedBy = actor.ProfessionalProfileID
	m.ValidatedAt = &at
	m.RejectionReason = reason
	return m, nil
}
