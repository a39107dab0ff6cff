package identity

import (
	"context"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *PatientProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*PatientProfile, error)
	Update(ctx context.Context, p *PatientProfile) error
}

type ProfessionalRepository interface {
	Create(ctx context.Context, p *ProfessionalProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*ProfessionalProfile, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*ProfessionalProfile, error)
	Update(ctx context.Context, p *ProfessionalProfile) error
	List(ctx context.Context, filter ProfessionalFilter, limit, offset int) ([]*ProfessionalProfile, int, error)
}
