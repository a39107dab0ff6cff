package risk

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/healthrisk/healthrisk/internal/domain/identity"
	"github.com/healthrisk/healthrisk/internal/domain/records"
	"github.com/healthrisk/healthrisk/internal/domain/vitals"
	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

// -- Mock readers and repositories --

type fakeReader struct {
	profile      *identity.PatientProfile
	measurements []*vitals.Measurement
	records      []*records.MedicalRecord
	profileErr   error

	gotLimit int
	gotSince *time.Time
}

func (r *fakeReader) GetPatientProfile(_ context.Context, id uuid.UUID) (*identity.PatientProfile, error) {
	if r.profileErr != nil {
		return nil, r.profileErr
	}
	if r.profile == nil || r.profile.ID != id {
		return nil, apperr.NotFound("patient profile", id)
	}
	return r.profile, nil
}

func (r *fakeReader) ListMeasurements(_ context.Context, _ uuid.UUID, limit int, since *time.Time) ([]*vitals.Measurement, error) {
	r.gotLimit, r.gotSince = limit, since
	return r.measurements, nil
}

func (r *fakeReader) ListMedicalRecords(_ context.Context, _ uuid.UUID) ([]*records.MedicalRecord, error) {
	return r.records, nil
}

type mockAssessmentRepo struct {
	items []*Assessment
}

func (m *mockAssessmentRepo) Create(_ context.Context, a *Assessment) error {
	a.ID = uuid.New()
	m.items = append(m.items, a)
	return nil
}

func (m *mockAssessmentRepo) GetLatest(_ context.Context, patientID uuid.UUID) (*Assessment, error) {
	var latest *Assessment
	for _, a := range m.items {
		if a.PatientID == patientID && (latest == nil || a.ComputedAt.After(latest.ComputedAt)) {
			latest = a
		}
	}
	if latest == nil {
		return nil, apperr.NotFound("risk assessment", patientID)
	}
	return latest, nil
}

func (m *mockAssessmentRepo) ListSince(_ context.Context, patientID uuid.UUID, since time.Time) ([]*Assessment, error) {
	var out []*Assessment
	for _, a := range m.items {
		if a.PatientID == patientID && !a.ComputedAt.Before(since) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ComputedAt.After(out[j].ComputedAt) })
	return out, nil
}

type mockRecommendationRepo struct {
	items     map[uuid.UUID]*Recommendation
	failBatch error
}

func newMockRecommendationRepo() *mockRecommendationRepo {
	return &mockRecommendationRepo{items: make(map[uuid.UUID]*Recommendation)}
}

func (m *mockRecommendationRepo) CreateBatch(_ context.Context, recs []*Recommendation) error {
	if m.failBatch != nil {
		return m.failBatch
	}
	for _, r := range recs {
		r.ID = uuid.New()
		m.items[r.ID] = r
	}
	return nil
}

func (m *mockRecommendationRepo) GetByID(_ context.Context, id uuid.UUID) (*Recommendation, error) {
	r, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("recommendation", id)
	}
	return r, nil
}

func (m *mockRecommendationRepo) UpdateStatus(_ context.Context, r *Recommendation) error {
	if _, ok := m.items[r.ID]; !ok {
		return apperr.NotFound("recommendation", r.ID)
	}
	m.items[r.ID] = r
	return nil
}

func (m *mockRecommendationRepo) ListByPatient(_ context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Recommendation, int, error) {
	var out []*Recommendation
	for _, r := range m.items {
		if r.PatientID == patientID && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// rollbackTx discards whatever fn wrote to the mock repositories when fn
// fails.
type rollbackTx struct {
	assessments     *mockAssessmentRepo
	recommendations *mockRecommendationRepo
	calls           int
}

func (tx *rollbackTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx.calls++
	n := len(tx.assessments.items)
	before := make(map[uuid.UUID]bool, len(tx.recommendations.items))
	for id := range tx.recommendations.items {
		before[id] = true
	}
	if err := fn(ctx); err != nil {
		tx.assessments.items = tx.assessments.items[:n]
		for id := range tx.recommendations.items {
			if !before[id] {
				delete(tx.recommendations.items, id)
			}
		}
		return err
	}
	return nil
}

type memCache struct {
	items  map[uuid.UUID]*Assessment
	getErr error
	sets   int
}

func newMemCache() *memCache { return &memCache{items: make(map[uuid.UUID]*Assessment)} }

func (c *memCache) Get(_ context.Context, patientID uuid.UUID) (*Assessment, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.items[patientID], nil
}

func (c *memCache) Set(_ context.Context, a *Assessment) error {
	c.sets++
	c.items[a.PatientID] = a
	return nil
}

func (c *memCache) Invalidate(_ context.Context, patientID uuid.UUID) error {
	delete(c.items, patientID)
	return nil
}

type overrideFunc func(ctx context.Context, fs *FeatureSet) (Scores, error)

func (f overrideFunc) Predict(ctx context.Context, fs *FeatureSet) (Scores, error) { return f(ctx, fs) }

// -- Helpers --

var clock = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type testDeps struct {
	reader          *fakeReader
	assessments     *mockAssessmentRepo
	recommendations *mockRecommendationRepo
	tx              *rollbackTx
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	p := profile("1970-03-01", "male")
	d := &testDeps{
		reader: &fakeReader{
			profile: p,
			measurements: []*vitals.Measurement{
				reading(vitals.TypeBloodPressure, `{"systolic":150,"diastolic":95}`, clock.Add(-time.Hour)),
				reading(vitals.TypeHeartRate, `105`, clock.Add(-2*time.Hour)),
			},
		},
		assessments:     &mockAssessmentRepo{},
		recommendations: newMockRecommendationRepo(),
	}
	d.tx = &rollbackTx{assessments: d.assessments, recommendations: d.recommendations}
	writer := NewStore(nil, nil, nil, d.assessments, d.recommendations)
	svc := NewService(d.reader, writer, d.assessments, d.recommendations, d.tx, newTestScorer(t), zerolog.Nop())
	svc.now = func() time.Time { return clock }
	return svc, d
}

// -- Tests --

func TestService_Assess(t *testing.T) {
	svc, d := newTestService(t)
	pid := d.reader.profile.ID

	res, err := svc.Assess(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := res.Assessment
	if a.ID == uuid.Nil {
		t.Error("expected assessment to be persisted with an ID")
	}
	if a.Scores[CategoryCardiovascular] != 45 {
		t.Errorf("expected cardiovascular 45, got %v", a.Scores[CategoryCardiovascular])
	}
	if a.Scores[CategoryDiabetes] != 10 {
		t.Errorf("expected diabetes 10 from age, got %v", a.Scores[CategoryDiabetes])
	}
	if a.Source != SourceRules {
		t.Errorf("expected rules source, got %s", a.Source)
	}
	if !a.ComputedAt.Equal(clock) {
		t.Errorf("expected computed_at %v, got %v", clock, a.ComputedAt)
	}
	if a.FeatureSnapshot == nil || a.FeatureSnapshot.Age == nil || *a.FeatureSnapshot.Age != 55 {
		t.Error("expected feature snapshot with age 55")
	}
	if len(res.Recommendations) != 1 {
		t.Fatalf("expected one recommendation, got %d", len(res.Recommendations))
	}
	r := res.Recommendations[0]
	if r.Category != CategoryCardiovascular || r.Band != BandMedium {
		t.Errorf("expected cardiovascular/medium, got %s/%s", r.Category, r.Band)
	}
	if r.AssessmentID != a.ID || r.PatientID != pid {
		t.Error("expected recommendation linked to assessment and patient")
	}
	if len(d.assessments.items) != 1 || len(d.recommendations.items) != 1 {
		t.Errorf("expected one stored assessment and recommendation, got %d and %d",
			len(d.assessments.items), len(d.recommendations.items))
	}
	if d.reader.gotLimit != MaxReadings || d.reader.gotSince != nil {
		t.Errorf("expected limit %d without window, got %d %v", MaxReadings, d.reader.gotLimit, d.reader.gotSince)
	}
}

func TestService_Assess_Window(t *testing.T) {
	svc, d := newTestService(t)
	svc.SetWindow(90 * 24 * time.Hour)

	if _, err := svc.Assess(context.Background(), d.reader.profile.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := clock.Add(-90 * 24 * time.Hour)
	if d.reader.gotSince == nil || !d.reader.gotSince.Equal(want) {
		t.Errorf("expected since %v, got %v", want, d.reader.gotSince)
	}
}

func TestService_Assess_UnknownPatient(t *testing.T) {
	svc, d := newTestService(t)
	_, err := svc.Assess(context.Background(), uuid.New())
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
	if d.tx.calls != 0 {
		t.Error("expected no transaction for an unknown patient")
	}
}

func TestService_Assess_DataErrorWritesNothing(t *testing.T) {
	svc, d := newTestService(t)
	d.reader.measurements = append(d.reader.measurements, reading(vitals.TypeBloodGlucose, `"high"`, clock))

	_, err := svc.Assess(context.Background(), d.reader.profile.ID)
	if !apperr.Is(err, apperr.KindData) {
		t.Fatalf("expected data error, got %v", err)
	}
	if d.tx.calls != 0 || len(d.assessments.items) != 0 {
		t.Error("expected nothing to be written")
	}
}

func TestService_Assess_AllOrNothing(t *testing.T) {
	svc, d := newTestService(t)
	cache := newMemCache()
	svc.SetCache(cache)
	d.recommendations.failBatch = errors.New("connection reset")

	if _, err := svc.Assess(context.Background(), d.reader.profile.ID); err == nil {
		t.Fatal("expected error")
	}
	if len(d.assessments.items) != 0 {
		t.Errorf("expected assessment to be rolled back, got %d", len(d.assessments.items))
	}
	if len(d.recommendations.items) != 0 {
		t.Error("expected no recommendations")
	}
	if cache.sets != 0 {
		t.Error("expected cache to be untouched after a failed write")
	}
}

func TestService_Assess_Override(t *testing.T) {
	svc, d := newTestService(t)
	m := NewMetrics(prometheus.NewRegistry())
	svc.SetMetrics(m)
	svc.SetOverride(overrideFunc(func(context.Context, *FeatureSet) (Scores, error) {
		return Scores{CategoryDiabetes: 65}, nil
	}))

	res, err := svc.Assess(context.Background(), d.reader.profile.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a := res.Assessment
	if a.Source != SourceML {
		t.Errorf("expected ml source, got %s", a.Source)
	}
	if a.Scores[CategoryDiabetes] != 65 || a.Scores[CategoryCardiovascular] != 45 {
		t.Errorf("expected override merged over rules, got %v", a.Scores)
	}
	if got := testutil.ToFloat64(m.assessments.WithLabelValues("ml")); got != 1 {
		t.Errorf("expected one ml assessment counted, got %v", got)
	}
	if got := testutil.ToFloat64(m.fallbacks); got != 0 {
		t.Errorf("expected no fallback, got %v", got)
	}
}

func TestService_Assess_OverrideFallback(t *testing.T) {
	svc, d := newTestService(t)
	m := NewMetrics(prometheus.NewRegistry())
	svc.SetMetrics(m)
	svc.SetOverride(overrideFunc(func(context.Context, *FeatureSet) (Scores, error) {
		return nil, ErrUnavailable
	}))

	res, err := svc.Assess(context.Background(), d.reader.profile.ID)
	if err != nil {
		t.Fatalf("expected fallback instead of error, got %v", err)
	}
	if res.Assessment.Source != SourceRules {
		t.Errorf("expected rules source, got %s", res.Assessment.Source)
	}
	if res.Assessment.Scores[CategoryCardiovascular] != 45 {
		t.Errorf("expected rule score 45, got %v", res.Assessment.Scores[CategoryCardiovascular])
	}
	if got := testutil.ToFloat64(m.fallbacks); got != 1 {
		t.Errorf("expected one fallback, got %v", got)
	}
	if got := testutil.ToFloat64(m.assessments.WithLabelValues("rules")); got != 1 {
		t.Errorf("expected one rules assessment counted, got %v", got)
	}
}

func TestService_Latest(t *testing.T) {
	svc, d := newTestService(t)
	pid := d.reader.profile.ID

	if _, err := svc.Latest(context.Background(), pid); !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found before any assessment, got %v", err)
	}

	res, err := svc.Assess(context.Background(), pid)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	got, err := svc.Latest(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != res.Assessment.ID {
		t.Errorf("expected latest %s, got %s", res.Assessment.ID, got.ID)
	}
}

func TestService_Latest_Cache(t *testing.T) {
	svc, d := newTestService(t)
	cache := newMemCache()
	m := NewMetrics(prometheus.NewRegistry())
	svc.SetCache(cache)
	svc.SetMetrics(m)
	pid := d.reader.profile.ID

	stored := &Assessment{ID: uuid.New(), PatientID: pid, ComputedAt: clock}
	d.assessments.items = append(d.assessments.items, stored)

	if _, err := svc.Latest(context.Background(), pid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cache.items[pid] == nil {
		t.Fatal("expected miss to populate the cache")
	}

	// Served from cache even after the store is emptied.
	d.assessments.items = nil
	got, err := svc.Latest(context.Background(), pid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != stored.ID {
		t.Errorf("expected cached assessment, got %s", got.ID)
	}
	if hits := testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")); hits != 1 {
		t.Errorf("expected one hit, got %v", hits)
	}
	if misses := testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")); misses != 1 {
		t.Errorf("expected one miss, got %v", misses)
	}

	if err := svc.Invalidate(context.Background(), pid); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := svc.Latest(context.Background(), pid); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found after invalidation, got %v", err)
	}
}

func TestService_Latest_CacheErrorFallsThrough(t *testing.T) {
	svc, d := newTestService(t)
	cache := newMemCache()
	cache.getErr = errors.New("redis: connection refused")
	svc.SetCache(cache)
	pid := d.reader.profile.ID
	d.assessments.items = append(d.assessments.items, &Assessment{ID: uuid.New(), PatientID: pid, ComputedAt: clock})

	if _, err := svc.Latest(context.Background(), pid); err != nil {
		t.Errorf("expected store fallback, got %v", err)
	}
}

func TestService_History(t *testing.T) {
	svc, d := newTestService(t)
	pid := d.reader.profile.ID
	for _, age := range []int{1, 10, 45} {
		d.assessments.items = append(d.assessments.items, &Assessment{
			ID: uuid.New(), PatientID: pid, ComputedAt: clock.AddDate(0, 0, -age),
		})
	}

	got, err := svc.History(context.Background(), pid, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 assessments in the default 30 days, got %d", len(got))
	}
	got, _ = svc.History(context.Background(), pid, 60)
	if len(got) != 3 {
		t.Errorf("expected 3 assessments in 60 days, got %d", len(got))
	}

	for _, days := range []int{-1, 366} {
		if _, err := svc.History(context.Background(), pid, days); !apperr.Is(err, apperr.KindValidation) {
			t.Errorf("days=%d: expected validation error, got %v", days, err)
		}
	}
}

func TestService_UpdateRecommendationStatus(t *testing.T) {
	tests := []struct {
		from, to Status
		wantKind apperr.Kind
	}{
		{StatusPending, StatusInProgress, ""},
		{StatusInProgress, StatusCompleted, ""},
		{StatusDismissed, StatusPending, ""},
		{StatusPending, StatusPending, ""},
		{StatusCompleted, StatusPending, apperr.KindConflict},
		{StatusDismissed, StatusCompleted, apperr.KindConflict},
		{StatusPending, Status("archived"), apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			svc, d := newTestService(t)
			r := &Recommendation{ID: uuid.New(), Status: tt.from}
			d.recommendations.items[r.ID] = r

			got, err := svc.UpdateRecommendationStatus(context.Background(), r, tt.to)
			if tt.wantKind != "" {
				if !apperr.Is(err, tt.wantKind) {
					t.Fatalf("expected %s, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Status != tt.to {
				t.Errorf("expected %s, got %s", tt.to, got.Status)
			}
		})
	}
}

func TestService_ListRecommendations_InvalidStatus(t *testing.T) {
	svc, _ := newTestService(t)
	_, _, err := svc.ListRecommendations(context.Background(), uuid.New(), Status("archived"), 20, 0)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}
