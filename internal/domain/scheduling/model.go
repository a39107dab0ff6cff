package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

var validStatuses = map[Status]bool{
	StatusScheduled: true,
	StatusConfirmed: true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

// Terminal statuses cannot be left once reached.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

var validConsultationTypes = map[string]bool{"in-person": true, "video": true, "phone": true}

// Appointment links one patient and one professional for a time window.
type Appointment struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	ProfessionalID     uuid.UUID `db:"professional_id" json:"professional_id"`
	StartTime          time.Time `db:"start_time" json:"start_time"`
	EndTime            time.Time `db:"end_time" json:"end_time"`
	AppointmentType    string    `db:"appointment_type" json:"appointment_type"`
	ConsultationType   string    `db:"consultation_type" json:"consultation_type"`
	Status             Status    `db:"status" json:"status"`
	Reason             *string   `db:"reason" json:"reason,omitempty"`
	Notes              *string   `db:"notes" json:"notes,omitempty"`
	CancellationReason *string   `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	FollowUpRequired   bool      `db:"follow_up_required" json:"follow_up_required"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) OwnerPatientID() uuid.UUID { return a.PatientID }

func (a *Appointment) OwnerProfessionalID() *uuid.UUID { return &a.ProfessionalID }

// AppointmentUpdate lists the mutable appointment fields. The patient and
// professional of an appointment never change.
type AppointmentUpdate struct {
	StartTime        *time.Time `json:"start_time"`
	EndTime          *time.Time `json:"end_time"`
	Reason           *string    `json:"reason"`
	Notes            *string    `json:"notes"`
	Status           *Status    `json:"status"`
	FollowUpRequired *bool      `json:"follow_up_required"`
}

func (u AppointmentUpdate) apply(a *Appointment) {
	if u.StartTime != nil {
		a.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		a.EndTime = *u.EndTime
	}
	if u.Reason != nil {
		a.Reason = u.Reason
	}
	if u.Notes != nil {
		a.Notes = u.Notes
	}
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.FollowUpRequired != nil {
		a.FollowUpRequired = *u.FollowUpRequired
	}
}

func (u AppointmentUpdate) reschedules() bool {
	return u.StartTime != nil || u.EndTime != nil
}

// Filter narrows List. Zero fields are ignored.
type Filter struct {
	PatientID      *uuid.UUID
	ProfessionalID *uuid.UUID
	Status         Status
	From           *time.Time
	To             *time.Time
}
