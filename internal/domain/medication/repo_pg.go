package medication

import (
	"context"
	"errors"

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

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const rxCols = `id, patient_id, professional_id, medication_name, dosage, frequency, route,
	start_date, end_date, refills_allowed, refills_remaining, instructions, reason, status,
	cancelled_at, cancellation_reason, created_at, updated_at`

func (r *prescriptionRepoPG) scan(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.PatientID, &p.ProfessionalID, &p.MedicationName, &p.Dosage, &p.Frequency, &p.Route,
		&p.StartDate, &p.EndDate, &p.RefillsAllowed, &p.RefillsRemaining, &p.Instructions, &p.Reason, &p.Status,
		&p.CancelledAt, &p.CancellationReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, patient_id, professional_id, medication_name, dosage, frequency, route,
			start_date, end_date, refills_allowed, refills_remaining, instructions, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`,
		p.ID, p.PatientID, p.ProfessionalID, p.MedicationName, p.Dosage, p.Frequency, p.Route,
		p.StartDate, p.EndDate, p.RefillsAllowed, p.RefillsRemaining, p.Instructions, p.Reason, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.Validation("patient or professional does not exist")
	}
	return err
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	p, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+rxCols+` FROM prescriptions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("prescription", id)
	}
	return p, err
}

func (r *prescriptionRepoPG) Update(ctx context.Context, p *Prescription) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET dosage = $2, frequency = $3, route = $4, end_date = $5, instructions = $6,
			status = $7, cancelled_at = $8, cancellation_reason = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		p.ID, p.Dosage, p.Frequency, p.Route, p.EndDate, p.Instructions,
		p.Status, p.CancelledAt, p.CancellationReason,
	).Scan(&p.UpdatedAt)
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM prescriptions WHERE patient_id = $1 AND ($2 = '' OR status = $2)`,
		patientID, status).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+rxCols+` FROM prescriptions
		WHERE patient_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY start_date DESC LIMIT $3 OFFSET $4`, patientID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *prescriptionRepoPG) DecrementRefill(ctx context.Context, id uuid.UUID) (int, error) {
	var remaining int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE prescriptions SET refills_remaining = refills_remaining - 1, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND refills_remaining > 0
		RETURNING refills_remaining`, id).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.Conflict("prescription %s has no refills remaining", id)
	}
	return remaining, err
}
