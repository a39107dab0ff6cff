package risk

import (
	"context"
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthrisk/healthrisk/internal/domain/identity"
	"github.com/healthrisk/healthrisk/internal/domain/records"
	"github.com/healthrisk/healthrisk/internal/domain/vitals"
)

type stubPatients struct {
	identity.PatientRepository
	profile *identity.PatientProfile
}

func (s *stubPatients) GetByID(context.Context, uuid.UUID) (*identity.PatientProfile, error) {
	return s.profile, nil
}

type stubMeasurements struct {
	vitals.MeasurementRepository
	gotFilter vitals.Filter
	gotLimit  int
	gotOffset int
}

func (s *stubMeasurements) List(_ context.Context, f vitals.Filter, limit, offset int) ([]*vitals.Measurement, int, error) {
	s.gotFilter, s.gotLimit, s.gotOffset = f, limit, offset
	return []*vitals.Measurement{{ID: uuid.New()}}, 250, nil
}

type stubRecords struct {
	records.MedicalRecordRepository
	gotPatient uuid.UUID
}

func (s *stubRecords) ListForPatient(_ context.Context, patientID uuid.UUID) ([]*records.MedicalRecord, error) {
	s.gotPatient = patientID
	return []*records.MedicalRecord{{ID: uuid.New(), PatientID: patientID}}, nil
}

func TestStore_Reads(t *testing.T) {
	pid := uuid.New()
	patients := &stubPatients{profile: &identity.PatientProfile{ID: pid}}
	measurements := &stubMeasurements{}
	recs := &stubRecords{}
	s := NewStore(patients, measurements, recs, nil, nil)
	ctx := context.Background()

	p, err := s.GetPatientProfile(ctx, pid)
	if err != nil || p.ID != pid {
		t.Fatalf("expected profile %s, got %v %v", pid, p, err)
	}

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	items, err := s.ListMeasurements(ctx, pid, MaxReadings, &since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected page items only, got %d", len(items))
	}
	if measurements.gotFilter.PatientID != pid || measurements.gotFilter.Since != &since {
		t.Errorf("unexpected filter %+v", measurements.gotFilter)
	}
	if measurements.gotFilter.Type != "" {
		t.Error("expected readings of every type")
	}
	if !measurements.gotFilter.ExcludeRejected {
		t.Error("expected rejected readings to be filtered in storage")
	}
	if measurements.gotLimit != MaxReadings || measurements.gotOffset != 0 {
		t.Errorf("expected limit %d offset 0, got %d %d", MaxReadings, measurements.gotLimit, measurements.gotOffset)
	}

	if _, err := s.ListMedicalRecords(ctx, pid); err != nil || recs.gotPatient != pid {
		t.Errorf("expected records for %s, got %s %v", pid, recs.gotPatient, err)
	}
}

// newestFirstMeasurements applies the filter, ordering and limit the
// Postgres repository does.
type newestFirstMeasurements struct {
	vitals.MeasurementRepository
	items []*vitals.Measurement
}

func (r *newestFirstMeasurements) List(_ context.Context, f vitals.Filter, limit, offset int) ([]*vitals.Measurement, int, error) {
	var out []*vitals.Measurement
	for _, m := range r.items {
		if m.PatientID != f.PatientID {
			continue
		}
		if f.ExcludeRejected && m.ValidationStatus == vitals.ValidationRejected {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MeasuredAt.After(out[j].MeasuredAt) })
	total := len(out)
	out = out[min(offset, len(out)):]
	return out[:min(limit, len(out))], total, nil
}

func TestStore_RejectedReadingsDoNotUseTheCap(t *testing.T) {
	pid := uuid.New()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo := &newestFirstMeasurements{}
	for i := 0; i < 2*MaxReadings; i++ {
		status := vitals.ValidationValidated
		if i >= MaxReadings {
			status = vitals.ValidationRejected
		}
		repo.items = append(repo.items, &vitals.Measurement{
			ID:               uuid.New(),
			PatientID:        pid,
			Type:             vitals.TypeHeartRate,
			Value:            json.RawMessage(`72`),
			MeasuredAt:       start.Add(time.Duration(i) * time.Hour),
			ValidationStatus: status,
		})
	}
	s := NewStore(nil, repo, nil, nil, nil)

	items, err := s.ListMeasurements(context.Background(), pid, MaxReadings, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != MaxReadings {
		t.Fatalf("expected %d valid readings, got %d", MaxReadings, len(items))
	}

	fs, err := Normalize(&identity.PatientProfile{ID: pid}, items, nil, start.Add(1000*time.Hour))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	agg, ok := fs.Vitals[FeatureHeartRate]
	if !ok || agg.Count != MaxReadings {
		t.Errorf("expected heart_rate over %d readings, got %+v present=%v", MaxReadings, agg, ok)
	}
}

func TestStore_SaveRecommendationsStampsPatient(t *testing.T) {
	repo := newMockRecommendationRepo()
	s := NewStore(nil, nil, nil, nil, repo)
	pid := uuid.New()
	recs := Recommend(Scores{CategoryCardiovascular: 80, CategoryDiabetes: 70}, features(nil))

	if err := s.SaveRecommendations(context.Background(), pid, recs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.items) != 2 {
		t.Fatalf("expected 2 stored, got %d", len(repo.items))
	}
	for _, r := range repo.items {
		if r.PatientID != pid {
			t.Errorf("expected patient %s, got %s", pid, r.PatientID)
		}
	}
}
