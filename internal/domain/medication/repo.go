package medication

import (
	"context"

	"github.com/google/uuid"
)

type PrescriptionRepository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	Update(ctx context.Context, p *Prescription) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error)
	// DecrementRefill atomically consumes one refill and returns the
	// remaining count. It fails when none are left.
	DecrementRefill(ctx context.Context, id uuid.UUID) (int, error)
}
