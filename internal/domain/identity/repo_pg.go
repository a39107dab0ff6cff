package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/healthrisk/healthrisk/internal/platform/apperr"
	"github.com/healthrisk/healthrisk/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

const dateLayout = "2006-01-02"

func dateParam(s *string) (interface{}, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, apperr.Validation("date_of_birth must be YYYY-MM-DD")
	}
	return t, nil
}

func dateString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(dateLayout)
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =========== User Repository ===========

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository { return &userRepoPG{pool: pool} }

const userCols = `id, email, role, first_name, last_name, date_of_birth, gender, phone,
	is_active, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var dob *time.Time
	err := row.Scan(&u.ID, &u.Email, &u.Role, &u.FirstName, &u.LastName, &dob, &u.Gender, &u.Phone,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.DateOfBirth = dateString(dob)
	return &u, nil
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	dob, err := dateParam(u.DateOfBirth)
	if err != nil {
		return err
	}
	u.ID = uuid.New()
	err = connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO users (id, email, role, first_name, last_name, date_of_birth, gender, phone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		u.ID, u.Email, u.Role, u.FirstName, u.LastName, dob, u.Gender, u.Phone, u.IsActive,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Validation("email %s is already registered", u.Email)
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", id)
	}
	return u, err
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := scanUser(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user", email)
	}
	return u, err
}

// =========== Patient Profile Repository ===========

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository { return &patientRepoPG{pool: pool} }

const patientCols = `p.id, p.user_id, p.blood_type, p.height, p.weight, p.medical_conditions,
	p.primary_physician_id, p.emergency_contact_name, p.emergency_contact_phone,
	p.insurance_provider, p.insurance_id, u.date_of_birth, u.gender, p.created_at, p.updated_at`

const patientFrom = ` FROM patient_profiles p JOIN users u ON u.id = p.user_id`

func scanPatient(row pgx.Row) (*PatientProfile, error) {
	var p PatientProfile
	var dob *time.Time
	err := row.Scan(&p.ID, &p.UserID, &p.BloodType, &p.HeightCM, &p.WeightKG, &p.Conditions,
		&p.PrimaryPhysicianID, &p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.InsuranceProvider, &p.InsuranceID, &dob, &p.Gender, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DateOfBirth = dateString(dob)
	return &p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *PatientProfile) error {
	p.ID = uuid.New()
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient_profiles (id, user_id, blood_type, height, weight, medical_conditions,
			primary_physician_id, emergency_contact_name, emergency_contact_phone,
			insurance_provider, insurance_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.BloodType, p.HeightCM, p.WeightKG, p.Conditions,
		p.PrimaryPhysicianID, p.EmergencyContactName, p.EmergencyContactPhone,
		p.InsuranceProvider, p.InsuranceID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Validation("user %s already owns a patient profile", p.UserID)
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientProfile, error) {
	p, err := scanPatient(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient profile", id)
	}
	return p, err
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*PatientProfile, error) {
	p, err := scanPatient(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+patientFrom+` WHERE p.user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient profile for user", userID)
	}
	return p, err
}

func (r *patientRepoPG) Update(ctx context.Context, p *PatientProfile) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE patient_profiles SET blood_type=$2, height=$3, weight=$4, medical_conditions=$5,
			primary_physician_id=$6, emergency_contact_name=$7, emergency_contact_phone=$8,
			insurance_provider=$9, insurance_id=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.BloodType, p.HeightCM, p.WeightKG, p.Conditions,
		p.PrimaryPhysicianID, p.EmergencyContactName, p.EmergencyContactPhone,
		p.InsuranceProvider, p.InsuranceID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient profile", p.ID)
	}
	return nil
}

// =========== Professional Profile Repository ===========

type professionalRepoPG struct{ pool *pgxpool.Pool }

func NewProfessionalRepoPG(pool *pgxpool.Pool) ProfessionalRepository {
	return &professionalRepoPG{pool: pool}
}

const professionalCols = `id, user_id, specialty, license_number, years_of_experience, department,
	accepting_patients, created_at, updated_at`

func scanProfessional(row pgx.Row) (*ProfessionalProfile, error) {
	var p ProfessionalProfile
	err := row.Scan(&p.ID, &p.UserID, &p.Specialty, &p.LicenseNumber, &p.YearsOfExperience, &p.Department,
		&p.AcceptingPatients, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *professionalRepoPG) Create(ctx context.Context, p *ProfessionalProfile) error {
	p.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO professional_profiles (id, user_id, specialty, license_number, years_of_experience,
			department, accepting_patients)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		p.ID, p.UserID, p.Specialty, p.LicenseNumber, p.YearsOfExperience, p.Department, p.AcceptingPatients,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Validation("license_number %s or user %s is already registered", p.LicenseNumber, p.UserID)
	}
	return err
}

func (r *professionalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ProfessionalProfile, error) {
	p, err := scanProfessional(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+professionalCols+` FROM professional_profiles WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("professional profile", id)
	}
	return p, err
}

func (r *professionalRepoPG) GetByUserID(ctx context.Context, userID uuid.UUID) (*ProfessionalProfile, error) {
	p, err := scanProfessional(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+professionalCols+` FROM professional_profiles WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("professional profile for user", userID)
	}
	return p, err
}

func (r *professionalRepoPG) Update(ctx context.Context, p *ProfessionalProfile) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `
		UPDATE professional_profiles SET specialty=$2, years_of_experience=$3, department=$4,
			accepting_patients=$5, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Specialty, p.YearsOfExperience, p.Department, p.AcceptingPatients)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("professional profile", p.ID)
	}
	return nil
}

func (r *professionalRepoPG) List(ctx context.Context, filter ProfessionalFilter, limit, offset int) ([]*ProfessionalProfile, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if filter.Specialty != "" {
		where += fmt.Sprintf(` AND specialty ILIKE $%d`, idx)
		args = append(args, filter.Specialty)
		idx++
	}
	if filter.AcceptingPatients != nil {
		where += fmt.Sprintf(` AND accepting_patients = $%d`, idx)
		args = append(args, *filter.AcceptingPatients)
		idx++
	}

	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM professional_profiles`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	rows, err := q.Query(ctx, `SELECT `+professionalCols+` FROM professional_profiles`+where+
		fmt.Sprintf(` ORDER BY specialty, created_at LIMIT $%d OFFSET $%d`, idx, idx+1), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ProfessionalProfile
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}
