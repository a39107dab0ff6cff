package medication

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

type Service struct {
	prescriptions PrescriptionRepository
	now           func() time.Time
}

func NewService(prescriptions PrescriptionRepository) *Service {
	return &Service{prescriptions: prescriptions, now: time.Now}
}

func (s *Service) CreatePrescription(ctx context.Context, p *Prescription) error {
	if p.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if p.ProfessionalID == uuid.Nil {
		return apperr.Validation("professional_id is required")
	}
	p.MedicationName = strings.TrimSpace(p.MedicationName)
	if p.MedicationName == "" {
		return apperr.Validation("medication_name is required")
	}
	if strings.TrimSpace(p.Dosage) == "" || strings.TrimSpace(p.Frequency) == "" {
		return apperr.Validation("dosage and frequency are required")
	}
	if p.StartDate.IsZero() {
		p.StartDate = s.now().UTC().Truncate(24 * time.Hour)
	}
	if p.RefillsAllowed < 0 {
		return apperr.Validation("refills_allowed cannot be negative")
	}
	if err := validateDates(p); err != nil {
		return err
	}
	p.RefillsRemaining = p.RefillsAllowed
	p.Status = StatusActive
	p.CancelledAt = nil
	p.CancellationReason = nil
	return s.prescriptions.Create(ctx, p)
}

func validateDates(p *Prescription) error {
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return apperr.Validation("end_date cannot be before start_date")
	}
	return nil
}

func (s *Service) GetPrescription(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	return s.prescriptions.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error) {
	switch status {
	case "", StatusActive, StatusOnHold, StatusCompleted, StatusCancelled:
	default:
		return nil, 0, apperr.Validation("invalid status filter %q", status)
	}
	return s.prescriptions.ListByPatient(ctx, patientID, status, limit, offset)
}

func (s *Service) UpdatePrescription(ctx context.Context, id uuid.UUID, upd PrescriptionUpdate) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if upd.Status != nil && *upd.Status != p.Status {
		if *upd.Status == StatusCancelled {
			return nil, apperr.Validation("use the cancel operation to cancel a prescription")
		}
		if !p.Status.CanBecome(*upd.Status) {
			return nil, apperr.Conflict("prescription cannot move from %s to %s", p.Status, *upd.Status)
		}
	} else if p.Status == StatusCompleted || p.Status == StatusCancelled {
		return nil, apperr.Conflict("prescription is %s and can no longer change", p.Status)
	}
	upd.apply(p)
	if err := validateDates(p); err != nil {
		return nil, err
	}
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) CancelPrescription(ctx context.Context, id uuid.UUID, reason string) (*Prescription, error) {
	p, err := s.prescriptions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanBecome(StatusCancelled) {
		return nil, apperr.Conflict("prescription is already %s", p.Status)
	}
	now := s.now()
	p.Status = StatusCancelled
	p.CancelledAt = &now
	if reason = strings.TrimSpace(reason); reason != "" {
		p.CancellationReason = &reason
	}
	if err := s.prescriptions.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Refill consumes one refill of an active prescription.
func (s *Service) Refill(ctx context.Context, p *Prescription) (*Prescription, error) {
	if p.Status != StatusActive {
		return nil, apperr.Conflict("only active prescriptions can be refilled")
	}
	remaining, err := s.prescriptions.DecrementRefill(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.RefillsRemaining = remaining
	return p, nil
}
