package emergency

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

type alertRepoPG struct{ pool *pgxpool.Pool }

func NewAlertRepoPG(pool *pgxpool.Pool) AlertRepository {
	return &alertRepoPG{pool: pool}
}

func (r *alertRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const alertCols = `id, patient_id, professional_id, severity, status, message, location, triggered_at,
	acknowledged_at, resolved_at, resolution_note, created_by, created_at, updated_at`

func (r *alertRepoPG) scan(row pgx.Row) (*Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.PatientID, &a.ProfessionalID, &a.Severity, &a.Status, &a.Message, &a.Location, &a.TriggeredAt,
		&a.AcknowledgedAt, &a.ResolvedAt, &a.ResolutionNote, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *alertRepoPG) Create(ctx context.Context, a *Alert) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO emergency_alerts (id, patient_id, severity, status, message, location, triggered_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.Severity, a.Status, a.Message, a.Location, a.TriggeredAt, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.Validation("patient_id does not reference a patient profile")
	}
	return err
}

func (r *alertRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Alert, error) {
	a, err := r.scan(r.conn(ctx).QueryRow(ctx, `SELECT `+alertCols+` FROM emergency_alerts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("emergency alert", id)
	}
	return a, err
}

func (r *alertRepoPG) Update(ctx context.Context, a *Alert) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE emergency_alerts SET professional_id = $2, status = $3, acknowledged_at = $4, resolved_at = $5,
			resolution_note = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.ProfessionalID, a.Status, a.AcknowledgedAt, a.ResolvedAt, a.ResolutionNote,
	).Scan(&a.UpdatedAt)
}

func (r *alertRepoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Alert, int, error) {
	where := `WHERE ($1::uuid IS NULL OR patient_id = $1) AND ($2 = '' OR status = $2)`
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM emergency_alerts `+where, f.PatientID, f.Status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+alertCols+` FROM emergency_alerts `+where+`
		ORDER BY CASE severity WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			triggered_at DESC
		LIMIT $3 OFFSET $4`, f.PatientID, f.Status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Alert
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}
