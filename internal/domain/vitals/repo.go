package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type MeasurementRepository interface {
	Create(ctx context.Context, m *Measurement) error
	GetByID(ctx context.Context, id uuid.UUID) (*Measurement, error)
	List(ctx context.Context, f Filter, limit, offset int) ([]*Measurement, int, error)
	SetValidation(ctx context.Context, id uuid.UUID, status ValidationStatus, by *uuid.UUID, at time.Time, reason *string) error
}
