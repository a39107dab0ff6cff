package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AssessmentRepository interface {
	Create(ctx context.Context, a *Assessment) error
	// GetLatest returns the most recently computed assessment or NotFound.
	GetLatest(ctx context.Context, patientID uuid.UUID) (*Assessment, error)
	// ListSince returns assessments computed at or after since, newest first.
	ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Assessment, error)
}

type RecommendationRepository interface {
	// CreateBatch stores all recommendations or none.
	CreateBatch(ctx context.Context, recs []*Recommendation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Recommendation, error)
	UpdateStatus(ctx context.Context, r *Recommendation) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Recommendation, int, error)
}
