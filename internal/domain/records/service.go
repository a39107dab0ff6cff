package records

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
	"github.com/healthrisk/healthrisk/pkg/tags"
)

// icdPattern accepts ICD-10 codes such as E11 or E11.65.
var icdPattern = regexp.MustCompile(`^[A-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)

// RiskInvalidator drops a patient's cached risk assessment. New symptoms
// and checkups change the features it was computed from.
type RiskInvalidator interface {
	Invalidate(ctx context.Context, patientID uuid.UUID) error
}

type Service struct {
	records MedicalRecordRepository
	risk    RiskInvalidator
	logger  zerolog.Logger
}

// NewService builds the service. risk may be nil.
func NewService(records MedicalRecordRepository, risk RiskInvalidator, logger zerolog.Logger) *Service {
	return &Service{records: records, risk: risk, logger: logger}
}

func (s *Service) CreateRecord(ctx context.Context, actor *access.Actor, r *MedicalRecord) error {
	if actor == nil {
		return apperr.Authentication("actor not resolved")
	}
	if r.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if r.RecordType == "" {
		r.RecordType = "general"
	}
	if err := validate(r); err != nil {
		return err
	}
	r.CreatedBy = actor.UserID
	if r.ProfessionalID == nil && actor.ProfessionalProfileID != nil {
		r.ProfessionalID = actor.ProfessionalProfileID
	}
	if err := s.records.Create(ctx, r); err != nil {
		return err
	}
	s.invalidate(ctx, r.PatientID)
	return nil
}

func validate(r *MedicalRecord) error {
	if !validRecordTypes[r.RecordType] {
		return apperr.Validation("invalid record_type %q", r.RecordType)
	}
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return apperr.Validation("title is required")
	}
	if r.RecordDate.IsZero() {
		return apperr.Validation("record_date is required")
	}
	codes := make([]string, 0, len(r.ICDCodes))
	for _, c := range r.ICDCodes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if !icdPattern.MatchString(c) {
			return apperr.Validation("invalid ICD-10 code %q", c)
		}
		codes = append(codes, c)
	}
	r.ICDCodes = codes
	r.Symptoms = tags.NormalizeAll(r.Symptoms)
	return nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, recordType string, limit, offset int) ([]*MedicalRecord, int, error) {
	if recordType != "" && !validRecordTypes[recordType] {
		return nil, 0, apperr.Validation("invalid record_type %q", recordType)
	}
	return s.records.ListByPatient(ctx, patientID, recordType, limit, offset)
}

func (s *Service) UpdateRecord(ctx context.Context, id uuid.UUID, upd MedicalRecordUpdate) (*MedicalRecord, error) {
	r, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.apply(r)
	if err := validate(r); err != nil {
		return nil, err
	}
	if err := s.records.Update(ctx, r); err != nil {
		return nil, err
	}
	s.invalidate(ctx, r.PatientID)
	return r, nil
}

func (s *Service) DeleteRecord(ctx context.Context, r *MedicalRecord) error {
	if err := s.records.Delete(ctx, r.ID); err != nil {
		return err
	}
	s.invalidate(ctx, r.PatientID)
	return nil
}

// invalidate is best effort: a stale cache entry expires on its own TTL.
func (s *Service) invalidate(ctx context.Context, patientID uuid.UUID) {
	if s.risk == nil {
		return
	}
	if err := s.risk.Invalidate(ctx, patientID); err != nil {
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("risk cache invalidation failed")
	}
}
