package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/airwaysim/settlement-service/internal/domain"
	"github.com/airwaysim/settlement-service/internal/store"
	"github.com/google/uuid"
)

type closureRepoStub struct {
	*settleRepoStub

	plan          *domain.FlightPlan
	planErr       error
	statusErr     error
	aircraft      *domain.Aircraft
	statusUpdates int

	wearUpdated  bool
	wearPercent  float64
	wearStatus   string
	wearLocation string
}

func newClosureRepoStub(plan *domain.FlightPlan) *closureRepoStub {
	return &closureRepoStub{settleRepoStub: newSettleRepoStub(), plan: plan}
}

func (s *closureRepoStub) GetFlightPlanForSettlement(ctx context.Context, planID uuid.UUID) (*domain.FlightPlan, error) {
	if s.planErr != nil {
		return nil, s.planErr
	}
	return s.plan, nil
}

func (s *closureRepoStub) UpdatePlanStatus(ctx context.Context, planID uuid.UUID, expectedStatus, newStatus string, closedAt *time.Time) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	if s.plan.Status != expectedStatus {
		return store.ErrPlanStateConflict
	}
	s.plan.Status = newStatus
	s.statusUpdates++
	return nil
}

func (s *closureRepoStub) GetAircraft(ctx context.Context, aircraftID uuid.UUID) (*domain.Aircraft, error) {
	if s.aircraft == nil {
		return nil, store.ErrAircraftNotFound
	}
	return s.aircraft, nil
}

func (s *closureRepoStub) UpdateAircraftWear(ctx context.Context, aircraftID uuid.UUID, wearPercent float64, status, location string) error {
	s.wearUpdated = true
	s.wearPercent = wearPercent
	s.wearStatus = status
	s.wearLocation = location
	return nil
}

func closurePlan() *domain.FlightPlan {
	plan := revenuePlan()
	accepted := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	requested := accepted.Add(60 * time.Minute)
	plan.AcceptedAt = &accepted
	plan.ClosureRequestedAt = &requested
	plan.Status = domain.PlanStatusClosureRequested
	return plan
}

func TestCloseFlightPlan_SettlesCommercialFlight(t *testing.T) {
	plan := closurePlan()
	repo := newClosureRepoStub(plan)
	repo.addPilot(plan.PilotID)
	repo.addCompany(*plan.CompanyID)
	svc := NewService(repo, nil, nil, Options{})

	result, err := svc.CloseFlightPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Closed || result.AlreadyClosed {
		t.Fatalf("expected a fresh closure, got %+v", result)
	}
	if result.ActualDurationMin != 60 {
		t.Fatalf("expected 60 elapsed minutes, got %d", result.ActualDurationMin)
	}
	if result.Settlement == nil || result.SettlementErr != nil {
		t.Fatalf("expected a clean settlement, got settlement=%v err=%v", result.Settlement, result.SettlementErr)
	}
	if plan.Status != domain.PlanStatusClosed {
		t.Fatalf("expected plan status closed, got %s", plan.Status)
	}
}

func TestCloseFlightPlan_SecondCloseIsNoOp(t *testing.T) {
	plan := closurePlan()
	plan.Status = domain.PlanStatusClosed
	repo := newClosureRepoStub(plan)
	repo.addPilot(plan.PilotID)
	repo.addCompany(*plan.CompanyID)
	svc := NewService(repo, nil, nil, Options{})

	result, err := svc.CloseFlightPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("a repeated closure must not error, got %v", err)
	}
	if !result.AlreadyClosed || result.Closed {
		t.Fatalf("expected AlreadyClosed, got %+v", result)
	}
	if len(repo.messages) != 0 || len(repo.credits) != 0 || len(repo.debits) != 0 {
		t.Fatal("a losing closure must have no monetary side effect")
	}
}

func TestCloseFlightPlan_PlanNotFound(t *testing.T) {
	plan := closurePlan()
	repo := newClosureRepoStub(plan)
	repo.planErr = store.ErrPlanNotFound
	svc := NewService(repo, nil, nil, Options{})

	if _, err := svc.CloseFlightPlan(context.Background(), plan.ID); !errors.Is(err, store.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestCloseFlightPlan_MissingTimestampFallsBackToSchedule(t *testing.T) {
	plan := closurePlan()
	plan.AcceptedAt = nil
	repo := newClosureRepoStub(plan)
	repo.addPilot(plan.PilotID)
	repo.addCompany(*plan.CompanyID)
	svc := NewService(repo, nil, nil, Options{})

	result, err := svc.CloseFlightPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ActualDurationMin != plan.ScheduledDurationMin {
		t.Fatalf("expected fallback to the scheduled %d minutes, got %d", plan.ScheduledDurationMin, result.ActualDurationMin)
	}
	if result.Settlement == nil || result.Settlement.Coefficient != 1.0 {
		t.Fatal("expected the fallback duration to settle as on-time")
	}
}

func TestCloseFlightPlan_DurationFlooredAtOneMinute(t *testing.T) {
	plan := closurePlan()
	requested := plan.AcceptedAt.Add(5 * time.Second)
	plan.ClosureRequestedAt = &requested
	repo := newClosureRepoStub(plan)
	repo.addPilot(plan.PilotID)
	repo.addCompany(*plan.CompanyID)
	svc := NewService(repo, nil, nil, Options{})

	result, err := svc.CloseFlightPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ActualDurationMin != 1 {
		t.Fatalf("expected a sub-minute flight to count as 1 minute, got %d", result.ActualDurationMin)
	}
}

func TestCloseFlightPlan_NonCommercialClosesWithoutSettlement(t *testing.T) {
	plan := closurePlan()
	plan.Commercial = false
	plan.GrossRevenue = 0
	repo := newClosureRepoStub(plan)
	svc := NewService(repo, nil, nil, Options{})

	result, err := svc.CloseFlightPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Closed || result.Settlement != nil {
		t.Fatalf("expected closure with no settlement, got %+v", result)
	}
	if len(repo.messages) != 0 {
		t.Fatal("expected no settlement messages for a private flight")
	}
}

func TestCloseFlightPlan_AppliesAircraftWear(t *testing.T) {
	plan := closurePlan()
	aircraftID := uuid.New()
	plan.AircraftID = &aircraftID
	repo := newClosureRepoStub(plan)
	repo.addPilot(plan.PilotID)
	repo.addCompany(*plan.CompanyID)
	repo.aircraft = &domain.Aircraft{ID: aircraftID, Registration: "F-AWSM", WearPercent: 80, Status: domain.AircraftStatusAvailable}
	svc := NewService(repo, nil, nil, Options{})

	result, err := svc.CloseFlightPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.wearUpdated {
		t.Fatal("expected the aircraft wear to be updated")
	}
	// A 60-minute flight at 2%/hour costs exactly 2 points.
	if repo.wearPercent != 78 {
		t.Fatalf("expected wear 78.00, got %.2f", repo.wearPercent)
	}
	if repo.wearStatus != domain.AircraftStatusGroundHandling {
		t.Fatalf("expected ground handling status, got %s", repo.wearStatus)
	}
	if repo.wearLocation != plan.ArrivalAirport {
		t.Fatalf("expected aircraft relocated to %s, got %s", plan.ArrivalAirport, repo.wearLocation)
	}
	if result.ActualDurationMin != 60 {
		t.Fatalf("expected 60 minutes, got %d", result.ActualDurationMin)
	}
}

func TestCloseFlightPlan_WornOutAircraftIsBlocked(t *testing.T) {
	plan := closurePlan()
	aircraftID := uuid.New()
	plan.AircraftID = &aircraftID
	repo := newClosureRepoStub(plan)
	repo.addPilot(plan.PilotID)
	repo.addCompany(*plan.CompanyID)
	repo.aircraft = &domain.Aircraft{ID: aircraftID, Registration: "F-AWSM", WearPercent: 1.5, Status: domain.AircraftStatusAvailable}
	svc := NewService(repo, nil, nil, Options{})

	if _, err := svc.CloseFlightPlan(context.Background(), plan.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.wearPercent != 0 {
		t.Fatalf("expected wear floored at 0, got %.2f", repo.wearPercent)
	}
	if repo.wearStatus != domain.AircraftStatusBlocked {
		t.Fatalf("expected the airframe to be blocked, got %s", repo.wearStatus)
	}
}

func TestCloseFlightPlan_SettlementFailureStillClosesPlan(t *testing.T) {
	plan := closurePlan()
	plan.CompanyID = nil // commercial plan with no company: settlement rejects it
	repo := newClosureRepoStub(plan)
	svc := NewService(repo, nil, nil, Options{})

	result, err := svc.CloseFlightPlan(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("a settlement failure must not fail the closure, got %v", err)
	}
	if !result.Closed {
		t.Fatal("expected the plan to be closed despite the settlement failure")
	}
	if !errors.Is(result.SettlementErr, ErrInvalidPlanState) {
		t.Fatalf("expected ErrInvalidPlanState recorded on the result, got %v", result.SettlementErr)
	}
	if plan.Status != domain.PlanStatusClosed {
		t.Fatalf("expected plan status closed, got %s", plan.Status)
	}
}
