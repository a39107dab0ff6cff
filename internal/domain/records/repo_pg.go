package records

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

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewMedicalRecordRepoPG(pool *pgxpool.Pool) MedicalRecordRepository {
	return &recordRepoPG{pool: pool}
}

func (r *recordRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const recordCols = `id, patient_id, professional_id, record_type, title, diagnosis, icd_codes, symptoms,
	treatment, notes, follow_up_required, record_date, created_by, created_at, updated_at`

func (r *recordRepoPG) scan(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.ProfessionalID, &m.RecordType, &m.Title, &m.Diagnosis, &m.ICDCodes, &m.Symptoms,
		&m.Treatment, &m.Notes, &m.FollowUpRequired, &m.RecordDate, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *recordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, professional_id, record_type, title, diagnosis, icd_codes,
			symptoms, treatment, notes, follow_up_required, record_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`,
		m.ID, m.PatientID, m.ProfessionalID, m.RecordType, m.Title, m.Diagnosis, m.ICDCodes,
		m.Symptoms, m.Treatment, m.Notes, m.FollowUpRequired, m.RecordDate, m.CreatedBy,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.Validation("patient_id does not reference a patient profile")
	}
	return err
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	m, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM medical_records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("medical record", id)
	}
	return m, err
}

func (r *recordRepoPG) Update(ctx context.Context, m *MedicalRecord) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records SET title = $2, diagnosis = $3, icd_codes = $4, symptoms = $5, treatment = $6,
			notes = $7, follow_up_required = $8, record_date = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		m.ID, m.Title, m.Diagnosis, m.ICDCodes, m.Symptoms, m.Treatment,
		m.Notes, m.FollowUpRequired, m.RecordDate,
	).Scan(&m.UpdatedAt)
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM medical_records WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("medical record", id)
	}
	return nil
}

func (r *recordRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, recordType string, limit, offset int) ([]*MedicalRecord, int, error) {
	var total int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM medical_records
		WHERE patient_id = $1 AND ($2 = '' OR record_type = $2)`, patientID, recordType).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	items, err := r.list(ctx, `SELECT `+recordCols+` FROM medical_records
		WHERE patient_id = $1 AND ($2 = '' OR record_type = $2)
		ORDER BY record_date DESC LIMIT $3 OFFSET $4`, patientID, recordType, limit, offset)
	return items, total, err
}

// ListForPatient returns every record of the patient, newest first.
func (r *recordRepoPG) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*MedicalRecord, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM medical_records
		WHERE patient_id = $1 ORDER BY record_date DESC`, patientID)
}

func (r *recordRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*MedicalRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
