package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthrisk/healthrisk/internal/domain/access"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
	"github.com/healthrisk/healthrisk/internal/platform/db"
)

var validBloodTypes = map[string]bool{
	"A+": true, "A-": true, "B+": true, "B-": true,
	"AB+": true, "AB-": true, "O+": true, "O-": true,
}

var validGenders = map[string]bool{"male": true, "female": true, "other": true}

type Service struct {
	users         UserRepository
	patients      PatientRepository
	professionals ProfessionalRepository
	tx            db.Transactor
	now           func() time.Time
}

func NewService(users UserRepository, patients PatientRepository, professionals ProfessionalRepository, tx db.Transactor) *Service {
	return &Service{
		users:         users,
		patients:      patients,
		professionals: professionals,
		tx:            tx,
		now:           time.Now,
	}
}

// ResolveActor maps an authenticated user id to an Actor. Unknown, malformed
// and inactive users are authentication failures. A user whose profile is
// missing still resolves, with a nil profile id, so the policy engine denies
// it instead of treating it as unrestricted.
func (s *Service) ResolveActor(ctx context.Context, userID string) (*access.Actor, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperr.Authentication("malformed user id")
	}
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Authentication("unknown user")
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, apperr.Authentication("user is inactive")
	}

	actor := &access.Actor{UserID: u.ID, Role: u.Role}
	switch u.Role {
	case access.RolePatient:
		p, err := s.patients.GetByUserID(ctx, u.ID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		if p != nil {
			actor.PatientProfileID = &p.ID
		}
	case access.RoleProfessional:
		p, err := s.professionals.GetByUserID(ctx, u.ID)
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
		if p != nil {
			actor.ProfessionalProfileID = &p.ID
		}
	}
	return actor, nil
}

// Register creates a user and the profile matching its role in one
// transaction. Admins own no profile.
func (s *Service) Register(ctx context.Context, reg *Registration) error {
	if err := s.validateRegistration(reg); err != nil {
		return err
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		reg.User.IsActive = true
		if err := s.users.Create(ctx, &reg.User); err != nil {
			return err
		}
		switch reg.User.Role {
		case access.RolePatient:
			reg.Patient.UserID = reg.User.ID
			reg.Patient.Conditions = normalizeConditions(reg.Patient.Conditions)
			if err := s.patients.Create(ctx, reg.Patient); err != nil {
				return err
			}
			reg.Patient.DateOfBirth = reg.User.DateOfBirth
			reg.Patient.Gender = reg.User.Gender
		case access.RoleProfessional:
			reg.Professional.UserID = reg.User.ID
			if err := s.professionals.Create(ctx, reg.Professional); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) validateRegistration(reg *Registration) error {
	u := &reg.User
	u.Email = strings.TrimSpace(strings.ToLower(u.Email))
	if _, err := mail.ParseAddress(u.Email); err != nil || u.Email == "" {
		return apperr.Validation("a valid email is required")
	}
	role, ok := access.ParseRole(string(u.Role))
	if !ok {
		return apperr.Validation("role must be patient, professional or admin")
	}
	u.Role = role
	if u.FirstName == "" || u.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	if err := s.validateDateOfBirth(u.DateOfBirth); err != nil {
		return err
	}
	if u.Gender != nil {
		g := strings.ToLower(*u.Gender)
		if !validGenders[g] {
			return apperr.Validation("gender must be male, female or other")
		}
		u.Gender = &g
	}

	switch role {
	case access.RolePatient:
		if reg.Professional != nil {
			return apperr.Validation("a patient cannot own a professional profile")
		}
		if reg.Patient == nil {
			reg.Patient = &PatientProfile{}
		}
		return validatePatient(reg.Patient)
	case access.RoleProfessional:
		if reg.Patient != nil {
			return apperr.Validation("a professional cannot own a patient profile")
		}
		if reg.Professional == nil {
			return apperr.Validation("professional profile is required")
		}
		return validateProfessional(reg.Professional)
	default:
		if reg.Patient != nil || reg.Professional != nil {
			return apperr.Validation("admins do not own a profile")
		}
	}
	return nil
}

func (s *Service) validateDateOfBirth(dob *string) error {
	if dob == nil || *dob == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, *dob)
	if err != nil {
		return apperr.Validation("date_of_birth must be YYYY-MM-DD")
	}
	if t.After(s.now()) {
		return apperr.Validation("date_of_birth cannot be in the future")
	}
	return nil
}

func validatePatient(p *PatientProfile) error {
	if p.BloodType != nil {
		bt := strings.ToUpper(strings.TrimSpace(*p.BloodType))
		if !validBloodTypes[bt] {
			return apperr.Validation("blood_type %q is not recognised", *p.BloodType)
		}
		p.BloodType = &bt
	}
	if p.HeightCM != nil && (*p.HeightCM <= 0 || *p.HeightCM > 300) {
		return apperr.Validation("height must be between 0 and 300 cm")
	}
	if p.WeightKG != nil && (*p.WeightKG <= 0 || *p.WeightKG > 700) {
		return apperr.Validation("weight must be between 0 and 700 kg")
	}
	return nil
}

func validateProfessional(p *ProfessionalProfile) error {
	p.LicenseNumber = strings.TrimSpace(p.LicenseNumber)
	if p.LicenseNumber == "" {
		return apperr.Validation("license_number is required")
	}
	if strings.TrimSpace(p.Specialty) == "" {
		return apperr.Validation("specialty is required")
	}
	if p.YearsOfExperience != nil && *p.YearsOfExperience < 0 {
		return apperr.Validation("years_of_experience cannot be negative")
	}
	return nil
}

// normalizeConditions lowercases, trims and de-duplicates condition names
// while keeping first-seen order.
func normalizeConditions(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*PatientProfile, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*PatientProfile, error) {
	p, err := s.patients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.apply(p)
	if err := validatePatient(p); err != nil {
		return nil, err
	}
	if p.PrimaryPhysicianID != nil {
		if _, err := s.professionals.GetByID(ctx, *p.PrimaryPhysicianID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return nil, apperr.Validation("primary_physician_id does not reference a professional")
			}
			return nil, err
		}
	}
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetProfessional(ctx context.Context, id uuid.UUID) (*ProfessionalProfile, error) {
	return s.professionals.GetByID(ctx, id)
}

func (s *Service) UpdateProfessional(ctx context.Context, id uuid.UUID, upd ProfessionalUpdate) (*ProfessionalProfile, error) {
	p, err := s.professionals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.apply(p)
	if err := validateProfessional(p); err != nil {
		return nil, err
	}
	if err := s.professionals.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListProfessionals(ctx context.Context, filter ProfessionalFilter, limit, offset int) ([]*ProfessionalProfile, int, error) {
	return s.professionals.List(ctx, filter, limit, offset)
}

// Me loads the user and profile behind an actor.
func (s *Service) Me(ctx context.Context, actor *access.Actor) (*Me, error) {
	if actor == nil {
		return nil, apperr.Authentication("actor not resolved")
	}
	u, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	me := &Me{Actor: actor, User: u}
	if actor.PatientProfileID != nil {
		if me.Patient, err = s.patients.GetByID(ctx, *actor.PatientProfileID); err != nil {
			return nil, err
		}
	}
	if actor.ProfessionalProfileID != nil {
		if me.Professional, err = s.professionals.GetByID(ctx, *actor.ProfessionalProfileID); err != nil {
			return nil, err
		}
	}
	return me, nil
}
