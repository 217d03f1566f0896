/**
 * @description
 * This file defines the settlement `Service`, the core of the settlement
 * engine. The service owns the punctuality model parameters, the policy rates
 * (loan repayment slice, default airport tax brackets, aircraft wear), and the
 * collaborators each settlement needs: the database repository, the event
 * producer, and the optional Redis closure guard.
 *
 * The engine itself is spread across this package: the revenue waterfall in
 * splitter.go, tax distribution in tax.go, cheque materialization in
 * notifier.go, and the closure orchestration in closure.go.
 *
 * @dependencies
 * - internal/store: For data access.
 * - pkg/rabbitmq: For settlement event publishing.
 */

package app

import (
	"context"
	"errors"

	"github.com/airwaysim/settlement-service/internal/domain"
	"github.com/airwaysim/settlement-service/internal/store"
	"github.com/airwaysim/settlement-service/pkg/rabbitmq"
	"github.com/google/uuid"
)

var (
	// ErrInvalidPlanState marks a plan whose settlement-required fields are
	// inconsistent (e.g. flagged commercial without an operating company). No
	// monetary action is taken; plan closure still proceeds.
	ErrInvalidPlanState = errors.New("flight plan is not in a settleable state")

	// ErrNegativeAmount marks a computed payable amount that went negative.
	// Fatal to the settlement step only; never silently clamped and paid.
	ErrNegativeAmount = errors.New("computed payable amount is negative")
)

// Default policy rates, overridable through Options.
const (
	DefaultLoanRepaymentRatePct = 20.0
	DefaultVFRTaxPct            = 5.0
	DefaultIFRTaxPct            = 2.0
	DefaultWearPctPerHour       = 2.0
)

// Options carries the tunable policy rates for a Service. Zero values fall
// back to the package defaults.
type Options struct {
	LoanRepaymentRatePct float64
	VFRTaxPct            float64
	IFRTaxPct            float64
	WearPctPerHour       float64
	PunctualityDecayRate float64
	PunctualityFloor     float64
}

// Service provides the flight-plan settlement engine.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	closureGuard  *RedisClosureGuard

	punctuality PunctualityModel
	loanRatePct float64
	vfrTaxPct   float64
	ifrTaxPct   float64
	wearPerHour float64
}

// NewService creates a new settlement service instance. producer and guard may
// be nil; events and the fast-path closure dedup then degrade gracefully.
func NewService(repo store.Repository, producer rabbitmq.Publisher, guard *RedisClosureGuard, opts Options) *Service {
	if opts.LoanRepaymentRatePct <= 0 {
		opts.LoanRepaymentRatePct = DefaultLoanRepaymentRatePct
	}
	if opts.VFRTaxPct <= 0 {
		opts.VFRTaxPct = DefaultVFRTaxPct
	}
	if opts.IFRTaxPct <= 0 {
		opts.IFRTaxPct = DefaultIFRTaxPct
	}
	if opts.WearPctPerHour <= 0 {
		opts.WearPctPerHour = DefaultWearPctPerHour
	}

	return &Service{
		repo:          repo,
		eventProducer: producer,
		closureGuard:  guard,
		punctuality:   NewPunctualityModel(opts.PunctualityDecayRate, opts.PunctualityFloor),
		loanRatePct:   opts.LoanRepaymentRatePct,
		vfrTaxPct:     opts.VFRTaxPct,
		ifrTaxPct:     opts.IFRTaxPct,
		wearPerHour:   opts.WearPctPerHour,
	}
}

// SettlementMessages returns the cheques and notifications a settlement
// persisted for a flight plan.
func (s *Service) SettlementMessages(ctx context.Context, planID uuid.UUID) ([]domain.SettlementMessage, error) {
	return s.repo.ListSettlementMessagesByPlan(ctx, planID)
}
