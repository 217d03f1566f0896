/**
 * @description
 * This file defines the `Repository` interface, the contract for every data
 * access operation the settlement engine depends on. Keeping the engine behind
 * this interface keeps the revenue waterfall, tax distribution, and closure
 * orchestration pure enough to unit test with in-memory stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/airwaysim/settlement-service/internal/domain"
	"github.com/google/uuid"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Flight plan methods
	GetFlightPlanForSettlement(ctx context.Context, planID uuid.UUID) (*domain.FlightPlan, error)
	// UpdatePlanStatus performs a conditional status transition. It returns
	// ErrPlanStateConflict when the plan is not currently in expectedStatus,
	// so a losing concurrent closure observes failure and does nothing.
	UpdatePlanStatus(ctx context.Context, planID uuid.UUID, expectedStatus, newStatus string, closedAt *time.Time) error

	// Account methods. Debit/credit are atomic balance read-modify-writes;
	// settlement logic never reads a balance and writes it back itself.
	FindPersonalAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error)
	FindCompanyAccount(ctx context.Context, companyID uuid.UUID) (*domain.Account, error)
	DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) error
	CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64) error

	// Control and duty session methods
	LookupControlRecords(ctx context.Context, planID uuid.UUID) ([]domain.ControlRecord, error)
	// LookupActiveDutySession returns ErrNoActiveDutySession when the user is
	// not currently on duty.
	LookupActiveDutySession(ctx context.Context, userID uuid.UUID) (*domain.DutySession, error)
	// AccumulatePendingTax adds a tax share to an open duty session's pending
	// ledger, paid out as one lump cheque when the session ends.
	AccumulatePendingTax(ctx context.Context, sessionID uuid.UUID, amount int64, label string) error

	// LookupAirportTaxRate returns the configured tax percentage for an
	// airport and flight rule. configured is false when no rate row exists and
	// the caller should apply the documented defaults (VFR 5%, other 2%).
	LookupAirportTaxRate(ctx context.Context, airport string, rule domain.FlightRule) (pct float64, configured bool, err error)

	// Loan methods. ApplyLoanRepayment re-reads the outstanding balance under
	// a row lock, clamps the requested amount to it, flips status to repaid at
	// full repayment, and returns the amount actually applied.
	LookupActiveLoan(ctx context.Context, companyID uuid.UUID) (*domain.Loan, error)
	ApplyLoanRepayment(ctx context.Context, loanID uuid.UUID, amount int64) (int64, error)

	// Settlement message methods
	InsertSettlementMessage(ctx context.Context, msg *domain.SettlementMessage) error
	ListSettlementMessagesByPlan(ctx context.Context, planID uuid.UUID) ([]domain.SettlementMessage, error)

	// Aircraft methods
	GetAircraft(ctx context.Context, aircraftID uuid.UUID) (*domain.Aircraft, error)
	UpdateAircraftWear(ctx context.Context, aircraftID uuid.UUID, wearPercent float64, status, location string) error
}
