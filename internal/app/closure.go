/**
 * @description
 * This file implements the closure orchestrator, the entry point invoked when
 * a flight plan transitions from closure_requested to closed. It claims the
 * terminal transition with a conditional update (so a losing concurrent
 * request performs no monetary side effect), computes the real elapsed flight
 * time, runs the revenue waterfall for commercial flights, applies aircraft
 * wear, and publishes the closure events.
 *
 * @notes
 * - Plan closure and aircraft wear are intentionally independent of the
 *   financial outcome: a billing defect must never leave a plan open.
 * - The elapsed time is measured between accepted_at and
 *   closure_requested_at. A missing timestamp falls back to the scheduled
 *   duration, but loudly: silent fallback would score a data-entry defect as
 *   a perfect on-time flight.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/airwaysim/settlement-service/internal/domain"
	"github.com/airwaysim/settlement-service/internal/store"
	"github.com/airwaysim/settlement-service/pkg/rabbitmq"
	"github.com/google/uuid"
)

// CloseFlightPlan performs the closure_requested -> closed transition for a
// plan and settles it. The returned ClosureResult reports plan closure and
// financial settlement independently; a repeated or concurrent closure
// returns AlreadyClosed with no side effect.
func (s *Service) CloseFlightPlan(ctx context.Context, planID uuid.UUID) (*domain.ClosureResult, error) {
	result := &domain.ClosureResult{PlanID: planID}

	// Best-effort cross-instance dedup before touching the database. The
	// conditional status update below remains the authority.
	if s.closureGuard != nil {
		acquired, err := s.closureGuard.Acquire(ctx, planID)
		if err != nil {
			log.Printf("level=warn component=closure msg=\"closure guard unavailable; relying on conditional update\" plan_id=%s err=%v", planID, err)
		} else if !acquired {
			log.Printf("level=info component=closure msg=\"closure already in progress\" plan_id=%s", planID)
			result.AlreadyClosed = true
			return result, nil
		}
	}

	plan, err := s.repo.GetFlightPlanForSettlement(ctx, planID)
	if err != nil {
		s.releaseGuard(ctx, planID)
		return nil, fmt.Errorf("failed to load flight plan: %w", err)
	}

	// Claim the terminal transition first. The losing side of a concurrent
	// closure observes the conflict here and performs no monetary action.
	closedAt := time.Now().UTC()
	err = s.repo.UpdatePlanStatus(ctx, planID, domain.PlanStatusClosureRequested, domain.PlanStatusClosed, &closedAt)
	if err != nil {
		if errors.Is(err, store.ErrPlanStateConflict) {
			log.Printf("level=info component=closure msg=\"plan already closed\" plan_id=%s status=%s", planID, plan.Status)
			result.AlreadyClosed = true
			return result, nil
		}
		s.releaseGuard(ctx, planID)
		return nil, fmt.Errorf("failed to close flight plan: %w", err)
	}
	result.Closed = true

	result.ActualDurationMin = s.actualDuration(plan)

	// Settle only commercial flights with revenue; everything else closes
	// with no monetary effect.
	if plan.Commercial && plan.GrossRevenue > 0 {
		outcome, settleErr := s.Settle(ctx, plan, result.ActualDurationMin)
		result.Settlement = outcome
		result.SettlementErr = settleErr
		if settleErr != nil {
			log.Printf("level=error component=closure msg=\"settlement failed or partially failed\" plan_id=%s err=%v", planID, settleErr)
		}
	}

	// Aircraft wear is applied regardless of the settlement outcome.
	if plan.AircraftID != nil {
		if err := s.applyAircraftWear(ctx, plan, result.ActualDurationMin); err != nil {
			log.Printf("level=error component=closure msg=\"aircraft wear update failed\" plan_id=%s aircraft_id=%s err=%v",
				planID, *plan.AircraftID, err)
		}
	}

	s.publishClosureEvents(ctx, plan, result, closedAt)

	return result, nil
}

// actualDuration computes the real elapsed flight time in minutes between
// acceptance and the closure request, floored at one minute. Missing
// lifecycle timestamps fall back to the scheduled duration with a warning.
func (s *Service) actualDuration(plan *domain.FlightPlan) int {
	if plan.AcceptedAt == nil || plan.ClosureRequestedAt == nil {
		log.Printf("level=warn component=closure msg=\"lifecycle timestamp missing; falling back to scheduled duration\" plan_id=%s accepted_at_set=%t closure_requested_at_set=%t scheduled_min=%d",
			plan.ID, plan.AcceptedAt != nil, plan.ClosureRequestedAt != nil, plan.ScheduledDurationMin)
		return plan.ScheduledDurationMin
	}

	minutes := int(plan.ClosureRequestedAt.Sub(*plan.AcceptedAt).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// applyAircraftWear reduces the aircraft's wear by the flight's duration cost,
// blocks the airframe at zero wear, and otherwise parks it for ground
// handling at the arrival airport.
func (s *Service) applyAircraftWear(ctx context.Context, plan *domain.FlightPlan, actualDurationMin int) error {
	aircraft, err := s.repo.GetAircraft(ctx, *plan.AircraftID)
	if err != nil {
		return fmt.Errorf("failed to load aircraft: %w", err)
	}

	wearCost := float64(actualDurationMin) * s.wearPerHour / 60.0
	newWear := aircraft.WearPercent - wearCost
	status := domain.AircraftStatusGroundHandling
	if newWear <= 0 {
		newWear = 0
		status = domain.AircraftStatusBlocked
	}
	newWear = math.Round(newWear*100) / 100

	if err := s.repo.UpdateAircraftWear(ctx, aircraft.ID, newWear, status, plan.ArrivalAirport); err != nil {
		return fmt.Errorf("failed to persist aircraft wear: %w", err)
	}

	log.Printf("level=info component=closure msg=\"aircraft wear applied\" aircraft_id=%s wear_pct=%.2f status=%s location=%s",
		aircraft.ID, newWear, status, plan.ArrivalAirport)
	return nil
}

// publishClosureEvents emits the flightplan.closed event (always) and the
// settlement.completed event (when the monetary portion fully succeeded).
// Publishing is best-effort and never fails a closure.
func (s *Service) publishClosureEvents(ctx context.Context, plan *domain.FlightPlan, result *domain.ClosureResult, closedAt time.Time) {
	if s.eventProducer == nil {
		return
	}

	settled := result.Settlement != nil && result.SettlementErr == nil
	if err := s.eventProducer.PublishFlightPlanClosed(ctx, rabbitmq.FlightPlanClosedEvent{
		PlanID:            plan.ID,
		ActualDurationMin: result.ActualDurationMin,
		SettlementOK:      settled || result.Settlement == nil,
		ClosedAt:          closedAt,
	}); err != nil {
		log.Printf("level=warn component=closure msg=\"flightplan.closed publish failed\" plan_id=%s err=%v", plan.ID, err)
	}

	if !settled {
		return
	}
	o := result.Settlement
	if err := s.eventProducer.PublishSettlementCompleted(ctx, rabbitmq.SettlementCompletedEvent{
		PlanID:       plan.ID,
		Gross:        o.Gross,
		Coefficient:  o.Coefficient,
		TaxTotal:     o.TaxTotal,
		SalaryPaid:   o.SalaryPaid,
		LessorShare:  o.LessorShare,
		LoanRepaid:   o.LoanRepaid,
		CompanyNet:   o.CompanyNet,
		Unprofitable: o.Unprofitable,
		Timestamp:    closedAt,
	}); err != nil {
		log.Printf("level=warn component=closure msg=\"settlement.completed publish failed\" plan_id=%s err=%v", plan.ID, err)
	}
}

func (s *Service) releaseGuard(ctx context.Context, planID uuid.UUID) {
	if s.closureGuard != nil {
		s.closureGuard.Release(ctx, planID)
	}
}

// rabbitChequeEvent converts a persisted cheque into its published form.
func rabbitChequeEvent(msg *domain.SettlementMessage) rabbitmq.ChequeIssuedEvent {
	var amount int64
	if msg.Amount != nil {
		amount = *msg.Amount
	}
	return rabbitmq.ChequeIssuedEvent{
		MessageID:     msg.ID,
		RecipientKind: string(msg.RecipientKind),
		RecipientID:   msg.RecipientID,
		Type:          string(msg.Type),
		Amount:        amount,
		FlightPlanID:  msg.FlightPlanID,
		Timestamp:     time.Now().UTC(),
	}
}
