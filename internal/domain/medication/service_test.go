package medication

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/healthrisk/healthrisk/internal/platform/apperr"
)

type mockPrescriptionRepo struct {
	items map[uuid.UUID]*Prescription
}

func newMockPrescriptionRepo() *mockPrescriptionRepo {
	return &mockPrescriptionRepo{items: make(map[uuid.UUID]*Prescription)}
}

func (m *mockPrescriptionRepo) Create(_ context.Context, p *Prescription) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.items[p.ID] = p
	return nil
}

func (m *mockPrescriptionRepo) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	p, ok := m.items[id]
	if !ok {
		return nil, apperr.NotFound("prescription", id)
	}
	cp := *p
	return &cp, nil
}

func (m *mockPrescriptionRepo) Update(_ context.Context, p *Prescription) error {
	m.items[p.ID] = p
	return nil
}

func (m *mockPrescriptionRepo) ListByPatient(_ context.Context, patientID uuid.UUID, status Status, limit, offset int) ([]*Prescription, int, error) {
	var result []*Prescription
	for _, p := range m.items {
		if p.PatientID == patientID && (status == "" || p.Status == status) {
			result = append(result, p)
		}
	}
	return result, len(result), nil
}

func (m *mockPrescriptionRepo) DecrementRefill(_ context.Context, id uuid.UUID) (int, error) {
	p, ok := m.items[id]
	if !ok || p.Status != StatusActive || p.RefillsRemaining == 0 {
		return 0, apperr.Conflict("prescription %s has no refills remaining", id)
	}
	p.RefillsRemaining--
	return p.RefillsRemaining, nil
}

var today = time.Date(2025, 4, 2, 15, 30, 0, 0, time.UTC)

func newTestService() (*Service, *mockPrescriptionRepo) {
	repo := newMockPrescriptionRepo()
	svc := NewService(repo)
	svc.now = func() time.Time { return today }
	return svc, repo
}

func newRx(patient, professional uuid.UUID) *Prescription {
	return &Prescription{
		PatientID:      patient,
		ProfessionalID: professional,
		MedicationName: " Metformin ",
		Dosage:         "500mg",
		Frequency:      "twice daily",
		RefillsAllowed: 2,
	}
}

func TestService_CreatePrescription(t *testing.T) {
	svc, _ := newTestService()
	p := newRx(uuid.New(), uuid.New())
	p.Status = StatusCancelled
	if err := svc.CreatePrescription(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != StatusActive || p.RefillsRemaining != 2 || p.MedicationName != "Metformin" {
		t.Errorf("unexpected prescription %+v", p)
	}
	if !p.StartDate.Equal(time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected start date to default to today, got %v", p.StartDate)
	}
}

func TestService_CreatePrescription_Validation(t *testing.T) {
	svc, _ := newTestService()
	before := today.Add(-48 * time.Hour)
	tests := map[string]func(p *Prescription){
		"no patient":       func(p *Prescription) { p.PatientID = uuid.Nil },
		"no professional":  func(p *Prescription) { p.ProfessionalID = uuid.Nil },
		"no medication":    func(p *Prescription) { p.MedicationName = "" },
		"no dosage":        func(p *Prescription) { p.Dosage = " " },
		"negative refills": func(p *Prescription) { p.RefillsAllowed = -1 },
		"end before start": func(p *Prescription) { p.EndDate = &before },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := newRx(uuid.New(), uuid.New())
			mutate(p)
			if err := svc.CreatePrescription(context.Background(), p); !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestService_StatusTransitions(t *testing.T) {
	svc, _ := newTestService()
	p := newRx(uuid.New(), uuid.New())
	_ = svc.CreatePrescription(context.Background(), p)

	hold := StatusOnHold
	if _, err := svc.UpdatePrescription(context.Background(), p.ID, PrescriptionUpdate{Status: &hold}); err != nil {
		t.Fatalf("active -> on_hold: %v", err)
	}
	done := StatusCompleted
	if _, err := svc.UpdatePrescription(context.Background(), p.ID, PrescriptionUpdate{Status: &done}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("on_hold -> completed should conflict, got %v", err)
	}
	cancelled, err := svc.CancelPrescription(context.Background(), p.ID, "side effects")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.CancelledAt == nil || !cancelled.CancelledAt.Equal(today) || *cancelled.CancellationReason != "side effects" {
		t.Errorf("unexpected cancellation %+v", cancelled)
	}
	dosage := "1g"
	if _, err := svc.UpdatePrescription(context.Background(), p.ID, PrescriptionUpdate{Dosage: &dosage}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("cancelled prescriptions are final, got %v", err)
	}
	if _, err := svc.CancelPrescription(context.Background(), p.ID, ""); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict on second cancel, got %v", err)
	}
}

func TestService_Refill(t *testing.T) {
	svc, _ := newTestService()
	p := newRx(uuid.New(), uuid.New())
	p.RefillsAllowed = 1
	_ = svc.CreatePrescription(context.Background(), p)

	got, err := svc.Refill(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.RefillsRemaining != 0 {
		t.Errorf("expected 0 refills remaining, got %d", got.RefillsRemaining)
	}
	if _, err := svc.Refill(context.Background(), p); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict when exhausted, got %v", err)
	}
}
