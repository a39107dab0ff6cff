package medication

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions lists the statuses reachable from each status. Completed and
// cancelled prescriptions are final.
var transitions = map[Status][]Status{
	StatusActive: {StatusOnHold, StatusCompleted, StatusCancelled},
	StatusOnHold: {StatusActive, StatusCancelled},
}

func (s Status) CanBecome(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Prescription is a medication order written by one professional for one
// patient.
type Prescription struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProfessionalID     uuid.UUID  `db:"professional_id" json:"professional_id"`
	MedicationName     string     `db:"medication_name" json:"medication_name"`
	Dosage             string     `db:"dosage" json:"dosage"`
	Frequency          string     `db:"frequency" json:"frequency"`
	Route              *string    `db:"route" json:"route,omitempty"`
	StartDate          time.Time  `db:"start_date" json:"start_date"`
	EndDate            *time.Time `db:"end_date" json:"end_date,omitempty"`
	RefillsAllowed     int        `db:"refills_allowed" json:"refills_allowed"`
	RefillsRemaining   int        `db:"refills_remaining" json:"refills_remaining"`
	Instructions       *string    `db:"instructions" json:"instructions,omitempty"`
	Reason             *string    `db:"reason" json:"reason,omitempty"`
	Status             Status     `db:"status" json:"status"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Prescription) OwnerPatientID() uuid.UUID { return p.PatientID }

func (p *Prescription) OwnerProfessionalID() *uuid.UUID { return &p.ProfessionalID }

// PrescriptionUpdate lists the mutable prescription fields. Cancellation
// goes through its own operation so the reason and time are recorded.
type PrescriptionUpdate struct {
	Dosage       *string    `json:"dosage"`
	Frequency    *string    `json:"frequency"`
	Route        *string    `json:"route"`
	EndDate      *time.Time `json:"end_date"`
	Instructions *string    `json:"instructions"`
	Status       *Status    `json:"status"`
}

func (u PrescriptionUpdate) apply(p *Prescription) {
	if u.Dosage != nil {
		p.Dosage = *u.Dosage
	}
	if u.Frequency != nil {
		p.Frequency = *u.Frequency
	}
	if u.Route != nil {
		p.Route = u.Route
	}
	if u.EndDate != nil {
		p.EndDate = u.EndDate
	}
	if u.Instructions != nil {
		p.Instructions = u.Instructions
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
}
