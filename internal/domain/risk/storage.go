package risk

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/healthrisk/healthrisk/internal/domain/identity"
	"github.com/healthrisk/healthrisk/internal/domain/records"
	"github.com/healthrisk/healthrisk/internal/domain/vitals"
)

// StorageReader loads the pipeline inputs.
type StorageReader interface {
	GetPatientProfile(ctx context.Context, id uuid.UUID) (*identity.PatientProfile, error)
	// ListMeasurements returns at most limit readings, newest first.
	ListMeasurements(ctx context.Context, patientID uuid.UUID, limit int, since *time.Time) ([]*vitals.Measurement, error)
	ListMedicalRecords(ctx context.Context, patientID uuid.UUID) ([]*records.MedicalRecord, error)
}

// StorageWriter persists pipeline output. Service calls both methods in
// one transaction.
type StorageWriter interface {
	SaveAssessment(ctx context.Context, a *Assessment) error
	SaveRecommendations(ctx context.Context, patientID uuid.UUID, recs []*Recommendation) error
}

// Store adapts the domain repositories to StorageReader and StorageWriter.
type Store struct {
	patients        identity.PatientRepository
	measurements    vitals.MeasurementRepository
	records         records.MedicalRecordRepository
	assessments     AssessmentRepository
	recommendations RecommendationRepository
}

func NewStore(
	patients identity.PatientRepository,
	measurements vitals.MeasurementRepository,
	recs records.MedicalRecordRepository,
	assessments AssessmentRepository,
	recommendations RecommendationRepository,
) *Store {
	return &Store{
		patients:        patients,
		measurements:    measurements,
		records:         recs,
		assessments:     assessments,
		recommendations: recommendations,
	}
}

func (s *Store) GetPatientProfile(ctx context.Context, id uuid.UUID) (*identity.PatientProfile, error) {
	return s.patients.GetByID(ctx, id)
}

// ListMeasurements returns the newest limit readings that were not rejected,
// so rejected readings never take a place under the cap.
func (s *Store) ListMeasurements(ctx context.Context, patientID uuid.UUID, limit int, since *time.Time) ([]*vitals.Measurement, error) {
	f := vitals.Filter{PatientID: patientID, Since: since, ExcludeRejected: true}
	items, _, err := s.measurements.List(ctx, f, limit, 0)
	return items, err
}

func (s *Store) ListMedicalRecords(ctx context.Context, patientID uuid.UUID) ([]*records.MedicalRecord, error) {
	return s.records.ListForPatient(ctx, patientID)
}

func (s *Store) SaveAssessment(ctx context.Context, a *Assessment) error {
	return s.assessments.Create(ctx, a)
}

func (s *Store) SaveRecommendations(ctx context.Context, patientID uuid.UUID, recs []*Recommendation) error {
	for _, r := range recs {
		r.PatientID = patientID
	}
	return s.recommendations.CreateBatch(ctx, recs)
}
