package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/healthrisk/healthrisk/internal/domain/identity"
	"github.com/healthrisk/healthrisk/internal/domain/records"
	"github.com/healthrisk/healthrisk/internal/domain/vitals"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
	"github.com/healthrisk/healthrisk/internal/platform/db"
)

const (
	defaultHistoryDays = 30
	maxHistoryDays     = 365
)

type Service struct {
	reader          StorageReader
	writer          StorageWriter
	assessments     AssessmentRepository
	recommendations RecommendationRepository
	tx              db.Transactor
	scorer          *Scorer
	logger          zerolog.Logger
	now             func() time.Time

	override MLOverride
	cache    Cache
	metrics  *Metrics
	window   time.Duration
}

func NewService(
	reader StorageReader,
	writer StorageWriter,
	assessments AssessmentRepository,
	recommendations RecommendationRepository,
	tx db.Transactor,
	scorer *Scorer,
	logger zerolog.Logger,
) *Service {
	return &Service{
		reader:          reader,
		writer:          writer,
		assessments:     assessments,
		recommendations: recommendations,
		tx:              tx,
		scorer:          scorer,
		logger:          logger,
		now:             time.Now,
	}
}

// SetOverride attaches an optional external predictor.
func (s *Service) SetOverride(o MLOverride) { s.override = o }

// SetCache attaches an optional latest-assessment cache.
func (s *Service) SetCache(c Cache) { s.cache = c }

func (s *Service) SetMetrics(m *Metrics) { s.metrics = m }

// SetWindow limits the readings considered to those measured within d of
// the assessment time. Zero means no limit beyond MaxReadings.
func (s *Service) SetWindow(d time.Duration) { s.window = d }

// Assess runs normalize, score and recommend for one patient and stores
// the assessment with its recommendations in a single transaction.
// Nothing is written when any stage fails.
func (s *Service) Assess(ctx context.Context, patientID uuid.UUID) (*Result, error) {
	start := time.Now()
	asOf := s.now().UTC()

	var since *time.Time
	if s.window > 0 {
		t := asOf.Add(-s.window)
		since = &t
	}

	var (
		profile      *identity.PatientProfile
		measurements []*vitals.Measurement
		recs         []*records.MedicalRecord
	)
	g, gctx := errgroup.WithContext(db.Detached(ctx))
	g.Go(func() error {
		var err error
		profile, err = s.reader.GetPatientProfile(gctx, patientID)
		return err
	})
	g.Go(func() error {
		var err error
		measurements, err = s.reader.ListMeasurements(gctx, patientID, MaxReadings, since)
		return err
	})
	g.Go(func() error {
		var err error
		recs, err = s.reader.ListMedicalRecords(gctx, patientID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fs, err := Normalize(profile, measurements, recs, asOf)
	if err != nil {
		return nil, err
	}
	scores, source := s.score(ctx, patientID, fs)

	result := &Result{
		Assessment: &Assessment{
			PatientID:       patientID,
			Scores:          scores,
			Overall:         s.scorer.Overall(scores),
			Confidence:      s.scorer.Confidence(fs),
			Source:          source,
			FeatureSnapshot: fs,
			ComputedAt:      asOf,
		},
		Recommendations: Recommend(scores, fs),
	}

	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.writer.SaveAssessment(ctx, result.Assessment); err != nil {
			return fmt.Errorf("save assessment: %w", err)
		}
		for _, r := range result.Recommendations {
			r.AssessmentID = result.Assessment.ID
		}
		if err := s.writer.SaveRecommendations(ctx, patientID, result.Recommendations); err != nil {
			return fmt.Errorf("save recommendations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, result.Assessment); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("risk cache write failed")
		}
	}
	s.metrics.observeAssessment(result, time.Since(start))
	s.logger.Info().
		Str("patient_id", patientID.String()).
		Str("assessment_id", result.Assessment.ID.String()).
		Str("source", string(source)).
		Float64("overall", result.Assessment.Overall).
		Float64("confidence", result.Assessment.Confidence).
		Int("recommendations", len(result.Recommendations)).
		Msg("risk_assessment_completed")
	return result, nil
}

// score applies the rules and, when an override is attached and answers,
// replaces the categories it returned.
func (s *Service) score(ctx context.Context, patientID uuid.UUID, fs *FeatureSet) (Scores, Source) {
	rules := s.scorer.Score(fs)
	if s.override == nil {
		return rules, SourceRules
	}
	predicted, err := s.override.Predict(ctx, fs)
	if err != nil || len(predicted) == 0 {
		if err == nil {
			err = ErrUnavailable
		}
		s.metrics.observeFallback()
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("ml override unavailable, using rule scores")
		return rules, SourceRules
	}
	return merge(rules, predicted), SourceML
}

// Latest returns the newest assessment, preferring the cache.
func (s *Service) Latest(ctx context.Context, patientID uuid.UUID) (*Assessment, error) {
	if s.cache != nil {
		a, err := s.cache.Get(ctx, patientID)
		if err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("risk cache read failed")
		}
		s.metrics.observeCache(a != nil)
		if a != nil {
			return a, nil
		}
	}
	a, err := s.assessments.GetLatest(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, a); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("risk cache write failed")
		}
	}
	return a, nil
}

// History lists assessments from the last days days, newest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID, days int) ([]*Assessment, error) {
	if days == 0 {
		days = defaultHistoryDays
	}
	if days < 0 || days > maxHistoryDays {
		return nil, apperr.Validation("days must be between 1 and %d", maxHistoryDays)
	}
	since := s.now().UTC().AddDate(0, 0, -days)
	return s.assessments.ListSince(ctx, patientID, since)
}

func (s *Service) ListRecommendations(ctx context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Recommendation, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validation("invalid status filter %q", status)
	}
	return s.recommendations.ListByPatient(ctx, patientID, status, limit, offset)
}

func (s *Service) GetRecommendation(ctx context.Context, id uuid.UUID) (*Recommendation, error) {
	return s.recommendations.GetByID(ctx, id)
}

// UpdateRecommendationStatus moves a recommendation to next. Setting the
// current status again is a no-op.
func (s *Service) UpdateRecommendationStatus(ctx context.Context, r *Recommendation, next Status) (*Recommendation, error) {
	if !next.Valid() {
		return nil, apperr.Validation("invalid status %q", next)
	}
	if r.Status == next {
		return r, nil
	}
	if !r.Status.CanBecome(next) {
		return nil, apperr.Conflict("recommendation cannot move from %s to %s", r.Status, next)
	}
	r.Status = next
	if err := s.recommendations.UpdateStatus(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Invalidate drops the cached assessment for a patient. It satisfies the
// invalidator that measurement and record services call after writes.
func (s *Service) Invalidate(ctx context.Context, patientID uuid.UUID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, patientID)
}
