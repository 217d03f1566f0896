/**
 * @description
 * This file materializes settlement outcomes as persisted messages. Every
 * payable party (pilot, operating company, lessor company, off-duty
 * controller) gets a "cheque" message carrying the amount and a human-readable
 * breakdown, and the target account is credited alongside the insert. An
 * unprofitable flight instead debits the operating company directly and sends
 * a plain notification with no amount and no redemption.
 *
 * @notes
 * - One party's missing account must not prevent the others from being paid:
 *   missing accounts are logged and skipped, other failures are propagated.
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

// settlementLabel renders the breakdown every settlement cheque must carry:
// scheduled vs actual duration, punctuality percentage, tax amount, and the
// loan/lessor slices when applicable.
func settlementLabel(plan *domain.FlightPlan, actualDurationMin int, outcome *domain.SettlementOutcome) string {
	label := fmt.Sprintf("Flight %s: scheduled %d min, flown %d min, punctuality %.1f%%, airport tax %d",
		plan.Callsign, plan.ScheduledDurationMin, actualDurationMin, outcome.Coefficient*100, outcome.TaxTotal)
	if outcome.BonusAmount > 0 {
		label += fmt.Sprintf(", cargo bonus %d", outcome.BonusAmount)
	}
	if outcome.LessorShare > 0 {
		label += fmt.Sprintf(", lessor share %d (%.1f%%)", outcome.LessorShare, plan.LessorSharePct)
	}
	if outcome.LoanRepaid > 0 {
		label += fmt.Sprintf(", loan repayment %d", outcome.LoanRepaid)
	}
	return label
}

// emitSettlementCheques creates the salary, company revenue, and lessor
// revenue cheques for a profitable settlement. Missing accounts are skipped
// with a warning; any other failure is joined into the returned error.
func (s *Service) emitSettlementCheques(ctx context.Context, plan *domain.FlightPlan, actualDurationMin int, outcome *domain.SettlementOutcome) error {
	label := settlementLabel(plan, actualDurationMin, outcome)

	type payout struct {
		recipient domain.Recipient
		msgType   domain.MessageType
		amount    int64
	}
	payouts := []payout{
		{domain.PersonalRecipient(plan.PilotID), domain.MessageTypeSalary, outcome.SalaryPaid},
		{domain.CompanyRecipient(*plan.CompanyID), domain.MessageTypeCompanyRevenue, outcome.CompanyNet},
	}
	if plan.LessorCompanyID != nil {
		payouts = append(payouts, payout{domain.CompanyRecipient(*plan.LessorCompanyID), domain.MessageTypeLessorRevenue, outcome.LessorShare})
	}

	var emitErrs []error
	for _, p := range payouts {
		if p.amount <= 0 {
			continue
		}
		if err := s.issueCheque(ctx, p.recipient, p.msgType, p.amount, label, plan.ID); err != nil {
			if errors.Is(err, store.ErrAccountNotFound) {
				log.Printf("level=warn component=settlement_notifier msg=\"recipient account missing; payout skipped\" plan_id=%s recipient_kind=%s recipient_id=%s type=%s amount=%d",
					plan.ID, p.recipient.Kind, p.recipient.ID, p.msgType, p.amount)
				continue
			}
			emitErrs = append(emitErrs, fmt.Errorf("failed to issue %s cheque: %w", p.msgType, err))
		}
	}
	return errors.Join(emitErrs...)
}

// issueCheque persists a redeemable cheque message for the recipient and
// credits their account in the same settlement step.
func (s *Service) issueCheque(ctx context.Context, recipient domain.Recipient, msgType domain.MessageType, amount int64, label string, planID uuid.UUID) error {
	if amount < 0 {
		return fmt.Errorf("%w: %s cheque of %d", ErrNegativeAmount, msgType, amount)
	}

	var account *domain.Account
	var err error
	switch recipient.Kind {
	case domain.RecipientPersonal:
		account, err = s.repo.FindPersonalAccount(ctx, recipient.ID)
	case domain.RecipientCompany:
		account, err = s.repo.FindCompanyAccount(ctx, recipient.ID)
	default:
		return fmt.Errorf("unknown recipient kind %q", recipient.Kind)
	}
	if err != nil {
		return err
	}

	msg := &domain.SettlementMessage{
		ID:            uuid.New(),
		RecipientKind: recipient.Kind,
		RecipientID:   recipient.ID,
		Type:          msgType,
		Amount:        &amount,
		Redeemed:      false,
		Label:         label,
		FlightPlanID:  planID,
		AccountID:     &account.ID,
	}
	if err := s.repo.InsertSettlementMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist settlement message: %w", err)
	}

	if err := s.repo.CreditAccount(ctx, account.ID, amount); err != nil {
		log.Printf("level=error component=settlement_notifier msg=\"CRITICAL: cheque persisted but account credit failed\" plan_id=%s account_id=%s amount=%d err=%v",
			planID, account.ID, amount, err)
		return fmt.Errorf("failed to credit account: %w", err)
	}

	if s.eventProducer != nil {
		s.eventProducer.PublishChequeIssued(ctx, rabbitChequeEvent(msg))
	}
	return nil
}

// notifyUnprofitable handles the zero-coefficient path: the tax computed on
// gross is debited directly from the operating company and the owner receives
// a plain notification instead of a cheque.
func (s *Service) notifyUnprofitable(ctx context.Context, plan *domain.FlightPlan, actualDurationMin int, outcome *domain.SettlementOutcome) error {
	account, err := s.repo.FindCompanyAccount(ctx, *plan.CompanyID)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			log.Printf("level=warn component=settlement_notifier msg=\"company account missing; unprofitable-flight tax not collected\" plan_id=%s company_id=%s tax_total=%d",
				plan.ID, *plan.CompanyID, outcome.TaxTotal)
			return nil
		}
		return err
	}

	if outcome.TaxTotal > 0 {
		if err := s.repo.DebitAccount(ctx, account.ID, outcome.TaxTotal); err != nil {
			return fmt.Errorf("failed to debit company for unprofitable-flight tax: %w", err)
		}
	}

	label := fmt.Sprintf("Flight %s was not profitable: scheduled %d min, flown %d min, punctuality %.1f%%. Airport tax of %d was debited from the company account.",
		plan.Callsign, plan.ScheduledDurationMin, actualDurationMin, outcome.Coefficient*100, outcome.TaxTotal)

	msg := &domain.SettlementMessage{
		ID:            uuid.New(),
		RecipientKind: domain.RecipientCompany,
		RecipientID:   *plan.CompanyID,
		Type:          domain.MessageTypeNotification,
		Amount:        nil,
		Redeemed:      false,
		Label:         label,
		FlightPlanID:  plan.ID,
		AccountID:     &account.ID,
	}
	if err := s.repo.InsertSettlementMessage(ctx, msg); err != nil {
		return fmt.Errorf("failed to persist unprofitable-flight notification: %w", err)
	}
	return nil
}
