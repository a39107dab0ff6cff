// Package access decides whether an actor may read or write a protected
// resource. Decisions are pure: they depend only on the actor, the resource
// kind, the operation and the resource's ownership references.
package access

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the single role an actor holds.
type Role string

const (
	RolePatient      Role = "patient"
	RoleProfessional Role = "professional"
	RoleAdmin        Role = "admin"
)

// ParseRole converts a stored or claimed role name into a Role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RolePatient, RoleProfessional, RoleAdmin:
		return r, true
	}
	return "", false
}

// Actor is an authenticated user together with the profile its role owns.
// A patient carries PatientProfileID, a professional ProfessionalProfileID;
// either may be nil when the profile could not be resolved.
type Actor struct {
	UserID                uuid.UUID  `json:"user_id"`
	Role                  Role       `json:"role"`
	PatientProfileID      *uuid.UUID `json:"patient_profile_id,omitempty"`
	ProfessionalProfileID *uuid.UUID `json:"professional_profile_id,omitempty"`
}

func (a *Actor) IsAdmin() bool { return a != nil && a.Role == RoleAdmin }

// IsStaff reports whether the actor is a professional or an admin.
func (a *Actor) IsStaff() bool {
	return a != nil && (a.Role == RoleAdmin || a.Role == RoleProfessional)
}

// Kind names a protected resource type.
type Kind string

const (
	KindAppointment    Kind = "appointment"
	KindMedicalRecord  Kind = "medical_record"
	KindPrescription   Kind = "prescription"
	KindVitalSign      Kind = "vital_sign"
	KindEmergencyAlert Kind = "emergency_alert"
	KindPatientProfile Kind = "patient_profile"
	KindRiskAssessment Kind = "risk_assessment"
	KindRecommendation Kind = "recommendation"
)

// AllKinds lists every protected resource type. A policy must cover each.
func AllKinds() []Kind {
	return []Kind{
		KindAppointment, KindMedicalRecord, KindPrescription, KindVitalSign,
		KindEmergencyAlert, KindPatientProfile, KindRiskAssessment, KindRecommendation,
	}
}

// Operation is the access mode being checked.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
)

// Resource exposes the ownership references every protected entity carries.
type Resource interface {
	OwnerPatientID() uuid.UUID
	OwnerProfessionalID() *uuid.UUID
}

// Ref is a Resource built from bare ids, used when a request targets a
// patient's collection rather than a stored entity.
type Ref struct {
	PatientID      uuid.UUID
	ProfessionalID *uuid.UUID
}

func (r Ref) OwnerPatientID() uuid.UUID { return r.PatientID }
func (r Ref) OwnerProfessionalID() *uuid.UUID { return r.ProfessionalID }

// PatientRef targets everything owned by one patient profile.
func PatientRef(patientID uuid.UUID) Ref { return Ref{PatientID: patientID} }
