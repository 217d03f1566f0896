/**
 * @description
 * This file implements airport tax distribution. The tax levied on a flight's
 * revenue is split evenly across the airports whose controllers handled the
 * flight, then evenly across the duty positions present at each airport; every
 * controller occupying a position receives that position's share. When nobody
 * controlled the flight, the whole tax falls back to the supervising AFIS
 * agent, provided their duty session is a full AFIS session.
 *
 * How a share reaches its recipient is a two-state policy expressed as
 * TaxPayoutStrategy: shares for controllers still on duty accumulate into the
 * session's pending-tax ledger (paid as one lump cheque at session end), while
 * off-duty controllers get an immediate cheque against their personal account.
 *
 * @notes
 * - Each split boundary rounds independently; remainders are not distributed,
 *   so the sum of shares may undershoot the tax total by a few units.
 * - Per-recipient failures are isolated: one controller's missing account
 *   must not prevent the others from being paid.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/airwaysim/settlement-service/internal/domain"
	"github.com/airwaysim/settlement-service/internal/store"
	"github.com/google/uuid"
)

// TaxPayoutStrategy decides how one recipient's tax share is delivered.
type TaxPayoutStrategy interface {
	Pay(ctx context.Context, recipientID uuid.UUID, amount int64, msgType domain.MessageType, label string, planID uuid.UUID) error
}

// AccumulateToSession parks the share in an open duty session's pending-tax
// ledger; the end-of-session payout (outside this service) cuts the cheque.
type AccumulateToSession struct {
	repo      store.Repository
	sessionID uuid.UUID
}

func (a AccumulateToSession) Pay(ctx context.Context, recipientID uuid.UUID, amount int64, msgType domain.MessageType, label string, planID uuid.UUID) error {
	return a.repo.AccumulatePendingTax(ctx, a.sessionID, amount, label)
}

// ImmediateCheque creates a redeemable cheque against the recipient's personal
// account right away.
type ImmediateCheque struct {
	svc *Service
}

func (c ImmediateCheque) Pay(ctx context.Context, recipientID uuid.UUID, amount int64, msgType domain.MessageType, label string, planID uuid.UUID) error {
	return c.svc.issueCheque(ctx, domain.PersonalRecipient(recipientID), msgType, amount, label, planID)
}

// payoutStrategyFor selects the payout strategy for a recipient based on
// whether they are currently on duty.
func (s *Service) payoutStrategyFor(ctx context.Context, userID uuid.UUID) (TaxPayoutStrategy, error) {
	session, err := s.repo.LookupActiveDutySession(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveDutySession) {
			return ImmediateCheque{svc: s}, nil
		}
		return nil, err
	}
	return AccumulateToSession{repo: s.repo, sessionID: session.ID}, nil
}

// airportTaxPct resolves the tax percentage for the arrival airport, applying
// the configured defaults (VFR 5%, other 2%) when the airport has no rate row.
func (s *Service) airportTaxPct(ctx context.Context, airport string, rule domain.FlightRule) (float64, error) {
	pct, configured, err := s.repo.LookupAirportTaxRate(ctx, airport, rule)
	if err != nil {
		return 0, fmt.Errorf("failed to look up tax rate for %s/%s: %w", airport, rule, err)
	}
	if configured {
		return pct, nil
	}
	if rule == domain.FlightRuleVFR {
		return s.vfrTaxPct, nil
	}
	return s.ifrTaxPct, nil
}

// distributeTax computes the arrival airport's tax on baseAmount and
// distributes it to the controllers who handled the flight (or the
// supervising AFIS agent when nobody did). Returns the tax total, how many
// recipients were actually paid, and any per-recipient failures joined
// together; the tax total is owed regardless of distribution failures.
func (s *Service) distributeTax(ctx context.Context, plan *domain.FlightPlan, baseAmount int64) (int64, int, error) {
	if baseAmount <= 0 {
		return 0, 0, nil
	}

	pct, err := s.airportTaxPct(ctx, plan.ArrivalAirport, plan.FlightRule)
	if err != nil {
		return 0, 0, err
	}
	taxTotal := roundCurrency(float64(baseAmount) * pct / 100)
	if taxTotal <= 0 {
		return 0, 0, nil
	}

	records, err := s.repo.LookupControlRecords(ctx, plan.ID)
	if err != nil {
		return taxTotal, 0, fmt.Errorf("failed to look up control records: %w", err)
	}

	if len(records) == 0 {
		paid, err := s.payAFISFallback(ctx, plan, taxTotal)
		return taxTotal, paid, err
	}

	// Group control records by airport, airports in deterministic order.
	byAirport := make(map[string][]domain.ControlRecord)
	for _, rec := range records {
		byAirport[rec.Airport] = append(byAirport[rec.Airport], rec)
	}
	airports := make([]string, 0, len(byAirport))
	for a := range byAirport {
		airports = append(airports, a)
	}
	sort.Strings(airports)

	// Splits truncate so the distributed total can never exceed the tax
	// levied; residual units are lost, not redistributed.
	perAirport := taxTotal / int64(len(airports))

	var paid int
	var payErrs []error
	for _, airport := range airports {
		recs := byAirport[airport]

		positions := make(map[string]struct{})
		for _, rec := range recs {
			positions[rec.Position] = struct{}{}
		}
		perPosition := perAirport / int64(len(positions))
		if perPosition <= 0 {
			continue
		}

		// Two controllers sharing one duty slot each receive the full
		// per-position share; there is no further split by headcount.
		for _, rec := range recs {
			label := fmt.Sprintf("ATC tax share for flight %s, %s %s", plan.Callsign, rec.Airport, rec.Position)

			strategy, err := s.payoutStrategyFor(ctx, rec.ControllerID)
			if err != nil {
				log.Printf("level=warn component=tax_distributor msg=\"duty session lookup failed; skipping controller\" plan_id=%s controller_id=%s err=%v",
					plan.ID, rec.ControllerID, err)
				payErrs = append(payErrs, err)
				continue
			}

			if err := strategy.Pay(ctx, rec.ControllerID, perPosition, domain.MessageTypeControllerTax, label, plan.ID); err != nil {
				if errors.Is(err, store.ErrAccountNotFound) {
					log.Printf("level=warn component=tax_distributor msg=\"controller account missing; share skipped\" plan_id=%s controller_id=%s amount=%d",
						plan.ID, rec.ControllerID, perPosition)
					continue
				}
				payErrs = append(payErrs, err)
				continue
			}
			paid++
		}
	}

	return taxTotal, paid, errors.Join(payErrs...)
}

// payAFISFallback routes the whole tax to the supervising AFIS agent when no
// controller handled the flight. Only a full AFIS duty session qualifies;
// fire/rescue-only agents earn no tax share.
func (s *Service) payAFISFallback(ctx context.Context, plan *domain.FlightPlan, taxTotal int64) (int, error) {
	if plan.AfisAgentID == nil {
		log.Printf("level=info component=tax_distributor msg=\"no control records and no afis agent; tax not distributed\" plan_id=%s tax_total=%d",
			plan.ID, taxTotal)
		return 0, nil
	}

	session, err := s.repo.LookupActiveDutySession(ctx, *plan.AfisAgentID)
	if err != nil {
		if errors.Is(err, store.ErrNoActiveDutySession) {
			log.Printf("level=warn component=tax_distributor msg=\"afis agent has no active session; tax not distributed\" plan_id=%s agent_id=%s",
				plan.ID, *plan.AfisAgentID)
			return 0, nil
		}
		return 0, err
	}
	if session.Kind != domain.DutySessionAFIS {
		log.Printf("level=info component=tax_distributor msg=\"supervising session is not full afis; tax not distributed\" plan_id=%s agent_id=%s session_kind=%s",
			plan.ID, *plan.AfisAgentID, session.Kind)
		return 0, nil
	}

	label := fmt.Sprintf("AFIS tax share for flight %s at %s", plan.Callsign, plan.ArrivalAirport)
	strategy := AccumulateToSession{repo: s.repo, sessionID: session.ID}
	if err := strategy.Pay(ctx, *plan.AfisAgentID, taxTotal, domain.MessageTypeAFISTax, label, plan.ID); err != nil {
		return 0, err
	}
	return 1, nil
}
