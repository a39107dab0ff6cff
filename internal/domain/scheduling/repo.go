package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Appointment, int, error)
	// HasConflict reports whether the professional has a live appointment
	// overlapping [start, end), ignoring exclude.
	HasConflict(ctx context.Context, professionalID uuid.UUID, start, end time.Time, exclude uuid.UUID) (bool, error)
}
