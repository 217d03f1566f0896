/**
 * @description
 * This file implements the revenue waterfall for a closed commercial flight:
 * gross revenue is adjusted by the punctuality coefficient, topped up by the
 * cargo bonus, taxed for the arrival airport, split with the aircraft lessor,
 * paid out as pilot salary, sliced for mandatory loan repayment, and the
 * remainder cheque'd to the operating company. Each step consumes the output
 * of the previous one and rounds independently.
 *
 * @notes
 * - A coefficient of exactly 0 routes the flight down the unprofitable path:
 *   the airport still levies its tax on the original gross, the company is
 *   debited directly, and only a plain notification is sent.
 * - Any negative intermediate payable is an upstream invariant violation and
 *   aborts the settlement step; it is never clamped and paid.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/airwaysim/settlement-service/internal/domain"
	"github.com/airwaysim/settlement-service/internal/store"
	"github.com/google/uuid"
)

// Settle runs the full revenue waterfall for a commercial flight plan that
// actually flew actualDurationMin minutes. It returns the settlement outcome
// and any per-party payout failures joined together; a non-nil outcome with a
// non-nil error means the settlement partially succeeded.
func (s *Service) Settle(ctx context.Context, plan *domain.FlightPlan, actualDurationMin int) (*domain.SettlementOutcome, error) {
	if !plan.Commercial || plan.GrossRevenue <= 0 {
		return nil, fmt.Errorf("%w: plan %s is not a revenue flight", ErrInvalidPlanState, plan.ID)
	}
	if plan.CompanyID == nil {
		return nil, fmt.Errorf("%w: plan %s is commercial but has no operating company", ErrInvalidPlanState, plan.ID)
	}

	// 1. Punctuality coefficient, steepened by the cargo class sensitivity.
	sensitivity := 1.0
	bonusPct := 0.0
	if plan.IsCargo() {
		if bonus, ok := CargoBonusFor(*plan.CargoClass); ok {
			sensitivity = bonus.RetardSensitivity
			bonusPct = bonus.BonusPercent
		} else {
			log.Printf("level=warn component=revenue_splitter msg=\"unknown cargo class; settling as non-cargo\" plan_id=%s cargo_class=%s",
				plan.ID, *plan.CargoClass)
		}
	}
	coefficient := s.punctuality.Coefficient(plan.ScheduledDurationMin, actualDurationMin, sensitivity)

	outcome := &domain.SettlementOutcome{
		Gross:       plan.GrossRevenue,
		Coefficient: coefficient,
	}

	// 2. Punctuality-adjusted revenue.
	adjusted := roundCurrency(float64(plan.GrossRevenue) * coefficient)

	// 3. Cargo bonus, computed on the post-punctuality amount, not gross.
	effective := adjusted
	if bonusPct > 0 && coefficient > 0 {
		outcome.BonusAmount = roundCurrency(float64(adjusted) * bonusPct / 100)
		effective = adjusted + outcome.BonusAmount
	}
	outcome.EffectiveRevenue = effective

	// 4. Airport tax. A wasted flight (coefficient 0) is still taxed on the
	// scheduled economic value, i.e. the original gross.
	taxBase := effective
	if coefficient == 0 {
		taxBase = plan.GrossRevenue
	}
	taxTotal, taxRecipients, taxErr := s.distributeTax(ctx, plan, taxBase)
	outcome.TaxTotal = taxTotal
	outcome.TaxRecipients = taxRecipients
	if taxErr != nil {
		log.Printf("level=warn component=revenue_splitter msg=\"tax distribution partially failed\" plan_id=%s err=%v", plan.ID, taxErr)
	}

	// 5. Unprofitable flight: no positive payout. The tax is debited directly
	// from the operating company and the owner gets a plain notification.
	if coefficient == 0 {
		outcome.Unprofitable = true
		err := s.notifyUnprofitable(ctx, plan, actualDurationMin, outcome)
		return outcome, errors.Join(taxErr, err)
	}

	revenueAfterTax := effective - taxTotal
	if revenueAfterTax < 0 {
		return nil, fmt.Errorf("%w: revenue after tax is %d for plan %s", ErrNegativeAmount, revenueAfterTax, plan.ID)
	}

	// 6. Lessor share, reserved off the top when the aircraft is leased.
	remainingForOperator := revenueAfterTax
	if plan.LessorCompanyID != nil && plan.LessorSharePct > 0 {
		outcome.LessorShare = roundCurrency(float64(revenueAfterTax) * plan.LessorSharePct / 100)
		remainingForOperator = revenueAfterTax - outcome.LessorShare
		if remainingForOperator < 0 {
			return nil, fmt.Errorf("%w: operator remainder is %d for plan %s", ErrNegativeAmount, remainingForOperator, plan.ID)
		}
	}

	// 7. Pilot salary, punctuality-scaled and capped at what the company has.
	salary := roundCurrency(float64(plan.PilotBaseSalary) * coefficient)
	if salary < 0 {
		return nil, fmt.Errorf("%w: salary is %d for plan %s", ErrNegativeAmount, salary, plan.ID)
	}
	if salary > remainingForOperator {
		salary = remainingForOperator
	}
	outcome.SalaryPaid = salary

	// 8. Company revenue before loan repayment.
	companyRevenue := remainingForOperator - salary
	if companyRevenue < 0 {
		return nil, fmt.Errorf("%w: company revenue is %d for plan %s", ErrNegativeAmount, companyRevenue, plan.ID)
	}

	// 9. Mandatory loan repayment slice.
	loanRepaid, err := s.repayCompanyLoan(ctx, *plan.CompanyID, companyRevenue)
	if err != nil {
		return nil, err
	}
	outcome.LoanRepaid = loanRepaid
	outcome.CompanyNet = companyRevenue - loanRepaid
	if outcome.CompanyNet < 0 {
		return nil, fmt.Errorf("%w: company net is %d for plan %s", ErrNegativeAmount, outcome.CompanyNet, plan.ID)
	}

	// 10. Materialize the cheques.
	emitErr := s.emitSettlementCheques(ctx, plan, actualDurationMin, outcome)

	return outcome, errors.Join(taxErr, emitErr)
}

// repayCompanyLoan computes the repayment slice for the company's active loan
// and applies it. The store clamps the slice to the outstanding balance under
// a row lock and returns the amount actually applied.
func (s *Service) repayCompanyLoan(ctx context.Context, companyID uuid.UUID, companyRevenue int64) (int64, error) {
	if companyRevenue <= 0 {
		return 0, nil
	}

	loan, err := s.repo.LookupActiveLoan(ctx, companyID)
	if err != nil {
		if errors.Is(err, store.ErrLoanNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to look up active loan: %w", err)
	}

	candidate, _ := store.ComputeLoanRepayment(loan.TotalDue, loan.Repaid,
		roundCurrency(float64(companyRevenue)*s.loanRatePct/100))
	if candidate <= 0 {
		return 0, nil
	}

	applied, err := s.repo.ApplyLoanRepayment(ctx, loan.ID, candidate)
	if err != nil {
		return 0, fmt.Errorf("failed to apply loan repayment: %w", err)
	}
	return applied, nil
}
