package emergency

import (
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type Status string

const (
	StatusActive       Status = "active"
	StatusAcknowledged Status = "acknowledged"
	StatusResolved     Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusAcknowledged, StatusResolved:
		return true
	}
	return false
}

// Alert is an emergency raised for one patient. ProfessionalID is the
// responder and stays empty until someone acknowledges the alert.
type Alert struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProfessionalID *uuid.UUID `db:"professional_id" json:"professional_id,omitempty"`
	Severity       Severity   `db:"severity" json:"severity"`
	Status         Status     `db:"status" json:"status"`
	Message        string     `db:"message" json:"message"`
	Location       *string    `db:"location" json:"location,omitempty"`
	TriggeredAt    time.Time  `db:"triggered_at" json:"triggered_at"`
	AcknowledgedAt *time.Time `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolutionNote *string    `db:"resolution_note" json:"resolution_note,omitempty"`
	CreatedBy      uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Alert) OwnerPatientID() uuid.UUID { return a.PatientID }

func (a *Alert) OwnerProfessionalID() *uuid.UUID { return a.ProfessionalID }

// Filter narrows List. A nil PatientID lists across patients.
type Filter struct {
	PatientID *uuid.UUID
	Status    Status
}
