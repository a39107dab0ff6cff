package scheduling

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

type Service struct {
	appointments AppointmentRepository
}

func NewService(appts AppointmentRepository) *Service {
	return &Service{appointments: appts}
}

func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if a.ProfessionalID == uuid.Nil {
		return apperr.Validation("professional_id is required")
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return apperr.Validation("start_time and end_time are required")
	}
	if !a.EndTime.After(a.StartTime) {
		return apperr.Validation("end_time must be after start_time")
	}
	if a.AppointmentType == "" {
		a.AppointmentType = "consultation"
	}
	if a.ConsultationType == "" {
		a.ConsultationType = "in-person"
	}
	a.ConsultationType = strings.ToLower(a.ConsultationType)
	if !validConsultationTypes[a.ConsultationType] {
		return apperr.Validation("consultation_type must be in-person, video or phone")
	}
	a.Status = StatusScheduled
	a.CancellationReason = nil
	if err := s.checkConflict(ctx, a); err != nil {
		return err
	}
	return s.appointments.Create(ctx, a)
}

func (s *Service) checkConflict(ctx context.Context, a *Appointment) error {
	clash, err := s.appointments.HasConflict(ctx, a.ProfessionalID, a.StartTime, a.EndTime, a.ID)
	if err != nil {
		return err
	}
	if clash {
		return apperr.Conflict("professional already has an appointment in that window")
	}
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status filter %q", f.Status)
	}
	return s.appointments.List(ctx, f, limit, offset)
}

// UpdateAppointment applies upd to the stored appointment. Terminal
// appointments are read-only; rescheduling re-runs the conflict check.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, upd AppointmentUpdate) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, apperr.Conflict("appointment is %s and can no longer change", a.Status)
	}
	if upd.Status != nil {
		if !validStatuses[*upd.Status] {
			return nil, apperr.Validation("invalid status %q", *upd.Status)
		}
		if *upd.Status == StatusCancelled {
			return nil, apperr.Validation("use the cancel operation to cancel an appointment")
		}
	}
	upd.apply(a)
	if !a.EndTime.After(a.StartTime) {
		return nil, apperr.Validation("end_time must be after start_time")
	}
	if upd.reschedules() {
		if err := s.checkConflict(ctx, a); err != nil {
			return nil, err
		}
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) CancelAppointment(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status.Terminal() {
		return nil, apperr.Conflict("appointment is already %s", a.Status)
	}
	a.Status = StatusCancelled
	if reason = strings.TrimSpace(reason); reason != "" {
		a.CancellationReason = &reason
	}
	if err := s.appointments.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
