package vitals

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeBloodGlucose     Type = "blood_glucose"
	TypeBloodPressure    Type = "blood_pressure"
	TypeHeartRate        Type = "heart_rate"
	TypeTemperature      Type = "temperature"
	TypeWeight           Type = "weight"
	TypeBMI              Type = "bmi"
	TypeBodyFat          Type = "body_fat"
	TypeSleep            Type = "sleep"
	TypeSteps            Type = "steps"
	TypeExercise         Type = "exercise"
	TypeCalories         Type = "calories"
	TypeOxygenSaturation Type = "oxygen_saturation"
	TypeRespiratoryRate  Type = "respiratory_rate"
	TypeStressLevel      Type = "stress_level"
	TypeMood             Type = "mood"
	TypePainLevel        Type = "pain_level"
	TypeCholesterolLDL   Type = "cholesterol_ldl"
	TypeCholesterolHDL   Type = "cholesterol_hdl"
	TypeTriglycerides    Type = "triglycerides"
	TypeCustom           Type = "custom"
)

// defaultUnits doubles as the set of known measurement types.
var defaultUnits = map[Type]string{
	TypeBloodGlucose:     "mg/dL",
	TypeBloodPressure:    "mmHg",
	TypeHeartRate:        "bpm",
	TypeTemperature:      "C",
	TypeWeight:           "kg",
	TypeBMI:              "kg/m2",
	TypeBodyFat:          "%",
	TypeSleep:            "hours",
	TypeSteps:            "steps",
	TypeExercise:         "minutes",
	TypeCalories:         "kcal",
	TypeOxygenSaturation: "%",
	TypeRespiratoryRate:  "breaths/min",
	TypeStressLevel:      "score",
	TypeMood:             "score",
	TypePainLevel:        "score",
	TypeCholesterolLDL:   "mg/dL",
	TypeCholesterolHDL:   "mg/dL",
	TypeTriglycerides:    "mg/dL",
	TypeCustom:           "",
}

func (t Type) Valid() bool {
	_, ok := defaultUnits[t]
	return ok
}

type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationValidated ValidationStatus = "validated"
	ValidationRejected  ValidationStatus = "rejected"
)

var validSources = map[string]bool{
	"manual": true, "device": true, "wearable": true, "app": true,
	"professional": true, "lab": true, "calculated": true, "other": true,
}

// Measurement is one reading. Value is a JSON number, a
// {"systolic","diastolic"} object for blood pressure, or null when the
// reading carries only tags. Only the validation fields change after
// creation.
type Measurement struct {
	ID               uuid.UUID        `db:"id" json:"id"`
	PatientID        uuid.UUID        `db:"patient_id" json:"patient_id"`
	ProfessionalID   *uuid.UUID       `db:"professional_id" json:"professional_id,omitempty"`
	Type             Type             `db:"type" json:"type"`
	Value            json.RawMessage  `db:"value" json:"value"`
	Unit             string           `db:"unit" json:"unit"`
	MeasuredAt       time.Time        `db:"measured_at" json:"measured_at"`
	Source           string           `db:"source" json:"source"`
	Tags             []string         `db:"tags" json:"tags"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	IsAbnormal       bool             `db:"is_abnormal" json:"is_abnormal"`
	ValidationStatus ValidationStatus `db:"validation_status" json:"validation_status"`
	ValidatedBy      *uuid.UUID       `db:"validated_by" json:"validated_by,omitempty"`
	ValidatedAt      *time.Time       `db:"validated_at" json:"validated_at,omitempty"`
	RejectionReason  *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedBy        uuid.UUID        `db:"created_by" json:"created_by"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

func (m *Measurement) OwnerPatientID() uuid.UUID { return m.PatientID }

func (m *Measurement) OwnerProfessionalID() *uuid.UUID { return m.ProfessionalID }

// Validation is the body of a validation status change.
type Validation struct {
	Status ValidationStatus `json:"status"`
	Reason string           `json:"reason"`
}

// Filter narrows List. Results are always newest first.
type Filter struct {
	PatientID       uuid.UUID
	Type            Type
	Since           *time.Time
	ExcludeRejected bool
}
