package vitals

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

type measurementRepoPG struct{ pool *pgxpool.Pool }

func NewMeasurementRepoPG(pool *pgxpool.Pool) MeasurementRepository {
	return &measurementRepoPG{pool: pool}
}

func (r *measurementRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const measurementCols = `id, patient_id, professional_id, type, value, unit, measured_at, source, tags, notes,
	is_abnormal, validation_status, validated_by, validated_at, rejection_reason, created_by, created_at`

func (r *measurementRepoPG) scan(row pgx.Row) (*Measurement, error) {
	var m Measurement
	var value []byte
	err := row.Scan(&m.ID, &m.PatientID, &m.ProfessionalID, &m.Type, &value, &m.Unit, &m.MeasuredAt, &m.Source, &m.Tags, &m.Notes,
		&m.IsAbnormal, &m.ValidationStatus, &m.ValidatedBy, &m.ValidatedAt, &m.RejectionReason, &m.CreatedBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if value != nil {
		m.Value = value
	}
	return &m, nil
}

func jsonParam(raw []byte) interface{} {
	if isNull(raw) {
		return nil
	}
	return string(raw)
}

func (r *measurementRepoPG) Create(ctx context.Context, m *Measurement) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO measurements (id, patient_id, professional_id, type, value, unit, measured_at, source, tags,
			notes, is_abnormal, validation_status, created_by)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at`,
		m.ID, m.PatientID, m.ProfessionalID, m.Type, jsonParam(m.Value), m.Unit, m.MeasuredAt, m.Source, m.Tags,
		m.Notes, m.IsAbnormal, m.ValidationStatus, m.CreatedBy,
	).Scan(&m.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.Validation("patient_id does not reference a patient profile")
	}
	return err
}

func (r *measurementRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Measurement, error) {
	m, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+measurementCols+` FROM measurements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("measurement", id)
	}
	return m, err
}

func (r *measurementRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Measurement, int, error) {
	where := []string{"patient_id = $1"}
	args := []interface{}{f.PatientID}
	if f.Type != "" {
		args = append(args, f.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		where = append(where, fmt.Sprintf("measured_at >= $%d", len(args)))
	}
	if f.ExcludeRejected {
		args = append(args, ValidationRejected)
		where = append(where, fmt.Sprintf("validation_status <> $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM measurements WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM measurements WHERE %s ORDER BY measured_at DESC, id LIMIT $%d OFFSET $%d`,
		measurementCols, cond, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Measurement
	for rows.Next() {
		m, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *measurementRepoPG) SetValidation(ctx context.Context, id uuid.UUID, status ValidationStatus, by *uuid.UUID, at time.Time, reason *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE measurements SET validation_status = $2, validated_by = $3, validated_at = $4, rejection_reason = $5
		WHERE id = $1`, id, status, by, at, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("measurement", id)
	}
	return nil
}
