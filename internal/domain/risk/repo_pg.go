package risk

import (
	"context"
	"encoding/json"
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
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return pool
}

// -- Assessments --

type assessmentRepoPG struct{ pool *pgxpool.Pool }

func NewAssessmentRepoPG(pool *pgxpool.Pool) AssessmentRepository {
	return &assessmentRepoPG{pool: pool}
}

const assessmentCols = `id, patient_id, scores, overall, confidence, source, feature_snapshot, computed_at`

func (r *assessmentRepoPG) scan(row pgx.Row) (*Assessment, error) {
	var a Assessment
	var scores, snapshot []byte
	if err := row.Scan(&a.ID, &a.PatientID, &scores, &a.Overall, &a.Confidence, &a.Source, &snapshot, &a.ComputedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(scores, &a.Scores); err != nil {
		return nil, fmt.Errorf("decode scores of assessment %s: %w", a.ID, err)
	}
	if len(snapshot) > 0 {
		a.FeatureSnapshot = &FeatureSet{}
		if err := json.Unmarshal(snapshot, a.FeatureSnapshot); err != nil {
			return nil, fmt.Errorf("decode feature snapshot of assessment %s: %w", a.ID, err)
		}
	}
	return &a, nil
}

func (r *assessmentRepoPG) Create(ctx context.Context, a *Assessment) error {
	scores, err := json.Marshal(a.Scores)
	if err != nil {
		return err
	}
	snapshot, err := json.Marshal(a.FeatureSnapshot)
	if err != nil {
		return err
	}
	a.ID = uuid.New()
	_, err = conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO risk_assessments (id, patient_id, scores, overall, confidence, source, feature_snapshot, computed_at)
		VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7::jsonb, $8)`,
		a.ID, a.PatientID, string(scores), a.Overall, a.Confidence, a.Source, string(snapshot), a.ComputedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.NotFound("patient profile", a.PatientID)
	}
	return err
}

func (r *assessmentRepoPG) GetLatest(ctx context.Context, patientID uuid.UUID) (*Assessment, error) {
	a, err := r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+assessmentCols+` FROM risk_assessments
		WHERE patient_id = $1 ORDER BY computed_at DESC LIMIT 1`, patientID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("risk assessment for patient", patientID)
	}
	return a, err
}

func (r *assessmentRepoPG) ListSince(ctx context.Context, patientID uuid.UUID, since time.Time) ([]*Assessment, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+assessmentCols+` FROM risk_assessments
		WHERE patient_id = $1 AND computed_at >= $2 ORDER BY computed_at DESC`, patientID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Assessment
	for rows.Next() {
		a, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// -- Recommendations --

type recommendationRepoPG struct{ pool *pgxpool.Pool }

func NewRecommendationRepoPG(pool *pgxpool.Pool) RecommendationRepository {
	return &recommendationRepoPG{pool: pool}
}

const recommendationCols = `id, patient_id, assessment_id, category, band, priority, title, description, actions,
	status, created_at, updated_at`

func (r *recommendationRepoPG) scan(row pgx.Row) (*Recommendation, error) {
	var rec Recommendation
	err := row.Scan(&rec.ID, &rec.PatientID, &rec.AssessmentID, &rec.Category, &rec.Band, &rec.Priority, &rec.Title,
		&rec.Description, &rec.Actions, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateBatch sends every insert in one round trip. Callers wrap it in a
// transaction together with the owning assessment.
func (r *recommendationRepoPG) CreateBatch(ctx context.Context, recs []*Recommendation) error {
	if len(recs) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for _, rec := range recs {
		rec.ID = uuid.New()
		b.Queue(`
			INSERT INTO recommendations (id, patient_id, assessment_id, category, band, priority, title, description,
				actions, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`,
			rec.ID, rec.PatientID, rec.AssessmentID, rec.Category, rec.Band, rec.Priority, rec.Title, rec.Description,
			rec.Actions, rec.Status)
	}
	br := conn(ctx, r.pool).SendBatch(ctx, b)
	for _, rec := range recs {
		if err := br.QueryRow().Scan(&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			br.Close()
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return apperr.Conflict("assessment %s already has a %s recommendation", rec.AssessmentID, rec.Category)
			}
			return fmt.Errorf("insert %s recommendation: %w", rec.Category, err)
		}
	}
	return br.Close()
}

func (r *recommendationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Recommendation, error) {
	rec, err := r.scan(conn(ctx, r.pool).QueryRow(ctx, `SELECT `+recommendationCols+` FROM recommendations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("recommendation", id)
	}
	return rec, err
}

func (r *recommendationRepoPG) UpdateStatus(ctx context.Context, rec *Recommendation) error {
	err := conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE recommendations SET status = $2, updated_at = NOW() WHERE id = $1
		RETURNING updated_at`, rec.ID, rec.Status).Scan(&rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("recommendation", rec.ID)
	}
	return err
}

func (r *recommendationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Recommendation, int, error) {
	var total int
	err := conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*) FROM recommendations WHERE patient_id = $1 AND ($2 = '' OR status = $2)`,
		patientID, status).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := conn(ctx, r.pool).Query(ctx, `SELECT `+recommendationCols+` FROM recommendations
		WHERE patient_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END
		LIMIT $3 OFFSET $4`, patientID, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Recommendation
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
