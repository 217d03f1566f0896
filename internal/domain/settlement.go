/**
 * @description
 * This file defines the money-side domain models for the settlement-service:
 * accounts, loans, the cheque/notification messages persisted by a settlement,
 * the recipient tagged union, and the composite results returned to callers.
 *
 * @notes
 * - A "cheque" message carries an amount and must be explicitly redeemed by
 *   its recipient; a plain "notification" carries no amount and no redemption.
 * - Recipient replaces the platform's loosely-typed nullable foreign keys with
 *   one exhaustive {personal, company} dispatch.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// RecipientKind tags which kind of account owner a settlement message is
// addressed to.
type RecipientKind string

const (
	RecipientPersonal RecipientKind = "personal"
	RecipientCompany  RecipientKind = "company"
)

// Recipient identifies the party a monetary outcome is addressed to: a user's
// personal account or a company's account.
type Recipient struct {
	Kind RecipientKind `json:"kind"`
	ID   uuid.UUID     `json:"id"`
}

// PersonalRecipient builds a Recipient for a user's personal account.
func PersonalRecipient(userID uuid.UUID) Recipient {
	return Recipient{Kind: RecipientPersonal, ID: userID}
}

// CompanyRecipient builds a Recipient for a company account.
func CompanyRecipient(companyID uuid.UUID) Recipient {
	return Recipient{Kind: RecipientCompany, ID: companyID}
}

// Account is a balance-bearing account owned by a user or a company. The
// balance is mutated only through the store's atomic debit/credit operations.
type Account struct {
	ID        uuid.UUID     `json:"id"`
	OwnerKind RecipientKind `json:"owner_kind"`
	OwnerID   uuid.UUID     `json:"owner_id"`
	Balance   int64         `json:"balance"`
}

// Loan lifecycle states.
const (
	LoanStatusActive = "active"
	LoanStatusRepaid = "repaid"
)

// Loan is an outstanding company loan. Status flips to repaid exactly when
// Repaid reaches TotalDue; settlement is the only writer.
type Loan struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	TotalDue  int64     `json:"total_due"`
	Repaid    int64     `json:"repaid"`
	Status    string    `json:"status"`
}
// MessageType tags what a settlement message pays (or tells) its recipient.
type MessageType string

const (
	MessageTypeSalary         MessageType = "salary"
	MessageTypeCompanyRevenue MessageType = "company_revenue"
	MessageTypeLessorRevenue  MessageType = "lessor_revenue"
	MessageTypeControllerTax  MessageType = "controller_tax"
	MessageTypeAFISTax        MessageType = "afis_tax"
	MessageTypeNotification   MessageType = "notification"
)

// SettlementMessage is a persisted "cheque" addressed to a payable party, or a
// plain notification when there is nothing to pay. Immutable after creation
// except for the redeemed flag, which the recipient flips exactly once
// (outside this service).
type SettlementMessage struct {
	ID            uuid.UUID     `json:"id"`
	RecipientKind RecipientKind `json:"recipient_kind"`
	RecipientID   uuid.UUID     `json:"recipient_id"`
	Type          MessageType   `json:"type"`
	Amount        *int64        `json:"amount,omitempty"` // nil for plain notifications
	Redeemed      bool          `json:"redeemed"`
	Label         string        `json:"label"`
	FlightPlanID  uuid.UUID     `json:"flight_plan_id"`
	AccountID     *uuid.UUID    `json:"account_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// SettlementOutcome carries the full breakdown of one settlement waterfall.
// Zero values mean "not applicable" (e.g. no lease, no loan).
type SettlementOutcome struct {
	Gross            int64   `json:"gross"`
	Coefficient      float64 `json:"coefficient"`
	BonusAmount      int64   `json:"bonus_amount"`
	EffectiveRevenue int64   `json:"effective_revenue"`
	TaxTotal         int64   `json:"tax_total"`
	TaxRecipients    int     `json:"tax_recipients"`
	LessorShare      int64   `json:"lessor_share"`
	SalaryPaid       int64   `json:"salary_paid"`
	LoanRepaid       int64   `json:"loan_repaid"`
	CompanyNet       int64   `json:"company_net"`
	Unprofitable     bool    `json:"unprofitable"`
}

// ClosureResult is the composite result of a flight-plan closure. Plan closure
// (status + aircraft wear) and financial settlement succeed or fail
// independently; AlreadyClosed marks the idempotent no-op on a concurrent or
// repeated closure.
type ClosureResult struct {
	PlanID            uuid.UUID          `json:"plan_id"`
	Closed            bool               `json:"closed"`
	AlreadyClosed     bool               `json:"already_closed"`
	ActualDurationMin int                `json:"actual_duration_min"`
	Settlement        *SettlementOutcome `json:"settlement,omitempty"`
	SettlementErr     error              `json:"-"`
}
