package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/healthrisk/healthrisk/internal/domain/access"
)

// User is an authenticated identity. Its role never changes after creation.
type User struct {
	ID          uuid.UUID   `db:"id" json:"id"`
	Email       string      `db:"email" json:"email"`
	Role        access.Role `db:"role" json:"role"`
	FirstName   string      `db:"first_name" json:"first_name"`
	LastName    string      `db:"last_name" json:"last_name"`
	DateOfBirth *string     `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      *string     `db:"gender" json:"gender,omitempty"`
	Phone       *string     `db:"phone" json:"phone,omitempty"`
	IsActive    bool        `db:"is_active" json:"is_active"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// PatientProfile is owned by exactly one patient user. DateOfBirth and
// Gender are read through from the owning user.
type PatientProfile struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	UserID                uuid.UUID  `db:"user_id" json:"user_id"`
	BloodType             *string    `db:"blood_type" json:"blood_type,omitempty"`
	HeightCM              *float64   `db:"height" json:"height,omitempty"`
	WeightKG              *float64   `db:"weight" json:"weight,omitempty"`
	Conditions            []string   `db:"medical_conditions" json:"medical_conditions"`
	PrimaryPhysicianID    *uuid.UUID `db:"primary_physician_id" json:"primary_physician_id,omitempty"`
	EmergencyContactName  *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	InsuranceProvider     *string    `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsuranceID           *string    `db:"insurance_id" json:"insurance_id,omitempty"`
	DateOfBirth           *string    `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender                *string    `db:"gender" json:"gender,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *PatientProfile) OwnerPatientID() uuid.UUID { return p.ID }

func (p *PatientProfile) OwnerProfessionalID() *uuid.UUID { return p.PrimaryPhysicianID }

// ProfessionalProfile is owned by exactly one professional user.
type ProfessionalProfile struct {
	ID                uuid.UUID `db:"id" json:"id"`
	UserID            uuid.UUID `db:"user_id" json:"user_id"`
	Specialty         string    `db:"specialty" json:"specialty"`
	LicenseNumber     string    `db:"license_number" json:"license_number"`
	YearsOfExperience *int      `db:"years_of_experience" json:"years_of_experience,omitempty"`
	Department        *string   `db:"department" json:"department,omitempty"`
	AcceptingPatients bool      `db:"accepting_patients" json:"accepting_patients"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// PatientUpdate lists the patient profile fields a client may change.
// Nil fields are left untouched.
type PatientUpdate struct {
	BloodType             *string    `json:"blood_type"`
	HeightCM              *float64   `json:"height"`
	WeightKG              *float64   `json:"weight"`
	Conditions            *[]string  `json:"medical_conditions"`
	PrimaryPhysicianID    *uuid.UUID `json:"primary_physician_id"`
	EmergencyContactName  *string    `json:"emergency_contact_name"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone"`
	InsuranceProvider     *string    `json:"insurance_provider"`
	InsuranceID           *string    `json:"insurance_id"`
}

func (u PatientUpdate) apply(p *PatientProfile) {
	if u.BloodType != nil {
		p.BloodType = u.BloodType
	}
	if u.HeightCM != nil {
		p.HeightCM = u.HeightCM
	}
	if u.WeightKG != nil {
		p.WeightKG = u.WeightKG
	}
	if u.Conditions != nil {
		p.Conditions = normalizeConditions(*u.Conditions)
	}
	if u.PrimaryPhysicianID != nil {
		p.PrimaryPhysicianID = u.PrimaryPhysicianID
	}
	if u.EmergencyContactName != nil {
		p.EmergencyContactName = u.EmergencyContactName
	}
	if u.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = u.EmergencyContactPhone
	}
	if u.InsuranceProvider != nil {
		p.InsuranceProvider = u.InsuranceProvider
	}
	if u.InsuranceID != nil {
		p.InsuranceID = u.InsuranceID
	}
}

// ProfessionalUpdate lists the professional profile fields a client may
// change. The license number is fixed at registration.
type ProfessionalUpdate struct {
	Specialty         *string `json:"specialty"`
	YearsOfExperience *int    `json:"years_of_experience"`
	Department        *string `json:"department"`
	AcceptingPatients *bool   `json:"accepting_patients"`
}

func (u ProfessionalUpdate) apply(p *ProfessionalProfile) {
	if u.Specialty != nil {
		p.Specialty = *u.Specialty
	}
	if u.YearsOfExperience != nil {
		p.YearsOfExperience = u.YearsOfExperience
	}
	if u.Department != nil {
		p.Department = u.Department
	}
	if u.AcceptingPatients != nil {
		p.AcceptingPatients = *u.AcceptingPatients
	}
}

// Registration creates a user and the one profile its role owns.
type Registration struct {
	User         User                 `json:"user"`
	Patient      *PatientProfile      `json:"patient,omitempty"`
	Professional *ProfessionalProfile `json:"professional,omitempty"`
}

// ProfessionalFilter narrows ListProfessionals.
type ProfessionalFilter struct {
	Specialty         string
	AcceptingPatients *bool
}

// Me is the response for the current actor.
type Me struct {
	Actor        *access.Actor        `json:"actor"`
	User         *User                `json:"user"`
	Patient      *PatientProfile      `json:"patient,omitempty"`
	Professional *ProfessionalProfile `json:"professional,omitempty"`
}
