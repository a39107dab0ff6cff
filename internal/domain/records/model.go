package records

import (
	"time"

	"github.com/google/uuid"
)

var validRecordTypes = map[string]bool{
	"general":      true,
	"diagnosis":    true,
	"lab_result":   true,
	"imaging":      true,
	"procedure":    true,
	"vaccination":  true,
	"allergy":      true,
	"surgery":      true,
	"consultation": true,
}

// MedicalRecord is a clinical entry for one patient. Its symptoms feed the
// risk normalizer and its RecordDate drives days_since_last_checkup.
type MedicalRecord struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProfessionalID   *uuid.UUID `db:"professional_id" json:"professional_id,omitempty"`
	RecordType       string     `db:"record_type" json:"record_type"`
	Title            string     `db:"title" json:"title"`
	Diagnosis        *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	ICDCodes         []string   `db:"icd_codes" json:"icd_codes"`
	Symptoms         []string   `db:"symptoms" json:"symptoms"`
	Treatment        *string    `db:"treatment" json:"treatment,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	FollowUpRequired bool       `db:"follow_up_required" json:"follow_up_required"`
	RecordDate       time.Time  `db:"record_date" json:"record_date"`
	CreatedBy        uuid.UUID  `db:"created_by" json:"created_by"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

func (r *MedicalRecord) OwnerPatientID() uuid.UUID { return r.PatientID }

func (r *MedicalRecord) OwnerProfessionalID() *uuid.UUID { return r.ProfessionalID }

// MedicalRecordUpdate lists the mutable record fields.
type MedicalRecordUpdate struct {
	Title            *string    `json:"title"`
	Diagnosis        *string    `json:"diagnosis"`
	ICDCodes         *[]string  `json:"icd_codes"`
	Symptoms         *[]string  `json:"symptoms"`
	Treatment        *string    `json:"treatment"`
	Notes            *string    `json:"notes"`
	FollowUpRequired *bool      `json:"follow_up_required"`
	RecordDate       *time.Time `json:"record_date"`
}

func (u MedicalRecordUpdate) apply(r *MedicalRecord) {
	if u.Title != nil {
		r.Title = *u.Title
	}
	if u.Diagnosis != nil {
		r.Diagnosis = u.Diagnosis
	}
	if u.ICDCodes != nil {
		r.ICDCodes = *u.ICDCodes
	}
	if u.Symptoms != nil {
		r.Symptoms = *u.Symptoms
	}
	if u.Treatment != nil {
		r.Treatment = u.Treatment
	}
	if u.Notes != nil {
		r.Notes = u.Notes
	}
	if u.FollowUpRequired != nil {
		r.FollowUpRequired = *u.FollowUpRequired
	}
	if u.RecordDate != nil {
		r.RecordDate = *u.RecordDate
	}
}
