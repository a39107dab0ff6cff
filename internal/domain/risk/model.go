// Package risk derives a patient's risk assessment and recommendations
// from stored measurements, medical records and the patient profile.
//
// Normalize, Scorer.Score and Recommend are pure over their inputs and
// safe for concurrent use. Service runs them as one pipeline and persists
// the result atomically.
package risk

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryCardiovascular Category = "cardiovascular"
	CategoryDiabetes       Category = "diabetes"
	CategoryMentalHealth   Category = "mental_health"
	CategoryLifestyle      Category = "lifestyle"
	CategoryWeight         Category = "weight"
)

// categoryOrder breaks priority ties in recommendation output.
var categoryOrder = map[Category]int{
	CategoryCardiovascular: 0,
	CategoryDiabetes:       1,
	CategoryMentalHealth:   2,
	CategoryLifestyle:      3,
	CategoryWeight:         4,
}

// Scores maps each scored category to a value in [0, 100].
type Scores map[Category]float64

type Source string

const (
	SourceRules Source = "rules"
	SourceML    Source = "ml"
)

// Assessment is an immutable snapshot of a patient's risk. A new
// measurement never alters an existing assessment.
type Assessment struct {
	ID              uuid.UUID   `db:"id" json:"id"`
	PatientID       uuid.UUID   `db:"patient_id" json:"patient_id"`
	Scores          Scores      `db:"scores" json:"scores"`
	Overall         float64     `db:"overall" json:"overall"`
	Confidence      float64     `db:"confidence" json:"confidence"`
	Source          Source      `db:"source" json:"source"`
	FeatureSnapshot *FeatureSet `db:"feature_snapshot" json:"feature_snapshot,omitempty"`
	ComputedAt      time.Time   `db:"computed_at" json:"computed_at"`
}

func (a *Assessment) OwnerPatientID() uuid.UUID { return a.PatientID }

func (a *Assessment) OwnerProfessionalID() *uuid.UUID { return nil }

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDismissed  Status = "dismissed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusDismissed:
		return true
	}
	return false
}

// statusTransitions lists where each status may move. Completed is final;
// a dismissed recommendation can be reopened.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusInProgress, StatusCompleted, StatusDismissed},
	StatusInProgress: {StatusPending, StatusCompleted, StatusDismissed},
	StatusDismissed:  {StatusPending},
}

func (s Status) CanBecome(next Status) bool {
	for _, t := range statusTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Recommendation is produced from an assessment. Status is the only field
// that changes after creation.
type Recommendation struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	AssessmentID uuid.UUID `db:"assessment_id" json:"assessment_id"`
	Category     Category  `db:"category" json:"category"`
	Band         Band      `db:"band" json:"band"`
	Priority     Priority  `db:"priority" json:"priority"`
	Title        string    `db:"title" json:"title"`
	Description  string    `db:"description" json:"description"`
	Actions      []string  `db:"actions" json:"actions"`
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

func (r *Recommendation) OwnerPatientID() uuid.UUID { return r.PatientID }

func (r *Recommendation) OwnerProfessionalID() *uuid.UUID { return nil }

// Result is the output of one pipeline run.
type Result struct {
	Assessment      *Assessment       `json:"assessment"`
	Recommendations []*Recommendation `json:"recommendations"`
}
