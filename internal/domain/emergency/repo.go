package emergency

import (
	"context"

	"github.com/google/uuid"
)

type AlertRepository interface {
	Create(ctx context.Context, a *Alert) error
	GetByID(ctx context.Context, id uuid.UUID) (*Alert, error)
	Update(ctx context.Context, a *Alert) error
	// List orders by severity, most severe first, then newest first.
	List(ctx context.Context, f Filter, limit, offset int) ([]*Alert, int, error)
}
