/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface using the pgx driver. It contains all the SQL the settlement
 * engine relies on, including the atomic account debit/credit, the guarded
 * loan repayment read-modify-write, and the conditional plan status update
 * that makes closure idempotent under concurrent requests.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver and connection pool.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/airwaysim/settlement-service/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPlanNotFound        = errors.New("flight plan not found")
	ErrPlanStateConflict   = errors.New("flight plan is not in the expected state")
	ErrAccountNotFound     = errors.New("account not found")
	ErrLoanNotFound        = errors.New("active loan not found")
	ErrNoActiveDutySession = errors.New("no active duty session")
	ErrAircraftNotFound    = errors.New("aircraft not found")
	ErrSessionNotFound     = errors.New("duty session not found")
)

// PostgresRepository implements Repository against a pgx connection pool.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository with the given database connection pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const flightPlanColumns = `
	id, callsign, pilot_id, commercial, company_id,
	COALESCE(gross_revenue, 0), COALESCE(pilot_base_salary, 0),
	scheduled_duration_min, accepted_at, closure_requested_at,
	flight_rule, cargo_nature, cargo_class,
	lessor_company_id, COALESCE(lessor_share_pct, 0),
	aircraft_id, afis_agent_id, departure_airport, arrival_airport,
	status, closed_at`

// GetFlightPlanForSettlement loads the settlement-relevant projection of a plan.
func (r *PostgresRepository) GetFlightPlanForSettlement(ctx context.Context, planID uuid.UUID) (*domain.FlightPlan, error) {
	query := `SELECT ` + flightPlanColumns + ` FROM flight_plans WHERE id = $1`

	var p domain.FlightPlan
	err := r.db.QueryRow(ctx, query, planID).Scan(
		&p.ID, &p.Callsign, &p.PilotID, &p.Commercial, &p.CompanyID,
		&p.GrossRevenue, &p.PilotBaseSalary,
		&p.ScheduledDurationMin, &p.AcceptedAt, &p.ClosureRequestedAt,
		&p.FlightRule, &p.CargoNature, &p.CargoClass,
		&p.LessorCompanyID, &p.LessorSharePct,
		&p.AircraftID, &p.AfisAgentID, &p.DepartureAirport, &p.ArrivalAirport,
		&p.Status, &p.ClosedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdatePlanStatus transitions a plan's status only if it currently holds the
// expected status. RowsAffected == 0 distinguishes a missing plan from a
// conflicting concurrent transition.
func (r *PostgresRepository) UpdatePlanStatus(ctx context.Context, planID uuid.UUID, expectedStatus, newStatus string, closedAt *time.Time) error {
	query := `UPDATE flight_plans SET status = $3, closed_at = $4, updated_at = NOW() WHERE id = $1 AND status = $2`
	tag, err := r.db.Exec(ctx, query, planID, expectedStatus, newStatus, closedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := r.db.QueryRow(ctx, `SELECT status FROM flight_plans WHERE id = $1`, planID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPlanNotFound
		}
		if err != nil {
			return err
		}
		return ErrPlanStateConflict
	}
	return nil
}

func (r *PostgresRepository) findAccount(ctx context.Context, ownerKind domain.RecipientKind, ownerID uuid.UUID) (*domain.Account, error) {
	query := `SELECT id, owner_kind, owner_id, balance FROM accounts WHERE owner_kind = $1 AND owner_id = $2`

	var a domain.Account
	err := r.db.QueryRow(ctx, query, ownerKind, ownerID).Scan(&a.ID, &a.OwnerKind, &a.OwnerID, &a.Balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindPersonalAccount looks up a user's personal account.
func (r *PostgresRepository) FindPersonalAccount(ctx context.Context, userID uuid.UUID) (*domain.Account, error) {
	return r.findAccount(ctx, domain.RecipientPersonal, userID)
}

// FindCompanyAccount looks up a company's account.
func (r *PostgresRepository) FindCompanyAccount(ctx context.Context, companyID uuid.UUID) (*domain.Account, error) {
	return r.findAccount(ctx, domain.RecipientCompany, companyID)
}

// DebitAccount performs an atomic debit on an account. The balance may go
// negative (the store does not forbid it); callers must never intentionally
// drive one negative.
func (r *PostgresRepository) DebitAccount(ctx context.Context, accountID uuid.UUID, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Use FOR UPDATE to lock the row, preventing lost updates from
	// concurrent settlements touching the same account.
	var balance int64
	err = tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAccountNotFound
		}
		return err
	}

	_, err = tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1 WHERE id = $2`, amount, accountID)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreditAccount performs an atomic credit on an account.
func (r *PostgresRepository) CreditAccount(ctx context.Context, accountID uuid.UUID, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, amount, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}

	return tx.Commit(ctx)
}

// LookupControlRecords returns every control record attached to a flight plan.
func (r *PostgresRepository) LookupControlRecords(ctx context.Context, planID uuid.UUID) ([]domain.ControlRecord, error) {
	query := `
		SELECT flight_plan_id, controller_id, airport, position
		FROM control_records
		WHERE flight_plan_id = $1
		ORDER BY airport, position, controller_id
	`
	rows, err := r.db.Query(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.ControlRecord
	for rows.Next() {
		var rec domain.ControlRecord
		if err := rows.Scan(&rec.FlightPlanID, &rec.ControllerID, &rec.Airport, &rec.Position); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LookupActiveDutySession finds the user's currently open duty session, if any.
func (r *PostgresRepository) LookupActiveDutySession(ctx context.Context, userID uuid.UUID) (*domain.DutySession, error) {
	query := `
		SELECT id, user_id, airport, position, kind, pending_taxes, started_at, ended_at
		FROM duty_sessions
		WHERE user_id = $1 AND ended_at IS NULL
		ORDER BY started_at DESC
		LIMIT 1
	`
	var s domain.DutySession
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.Airport, &s.Position, &s.Kind, &s.PendingTaxes, &s.StartedAt, &s.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveDutySession
		}
		return nil, err
	}
	return &s, nil
}

// AccumulatePendingTax adds a tax share to an open session's pending ledger
// and records the entry so the end-of-session cheque can carry a breakdown.
func (r *PostgresRepository) AccumulatePendingTax(ctx context.Context, sessionID uuid.UUID, amount int64, label string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE duty_sessions SET pending_taxes = pending_taxes + $1 WHERE id = $2 AND ended_at IS NULL`,
		amount, sessionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO pending_tax_entries (id, session_id, amount, label) VALUES ($1, $2, $3, $4)`,
		uuid.New(), sessionID, amount, label)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LookupAirportTaxRate returns the configured tax percentage for an airport
// and flight rule. configured is false when no row exists; the engine then
// applies its documented defaults.
func (r *PostgresRepository) LookupAirportTaxRate(ctx context.Context, airport string, rule domain.FlightRule) (float64, bool, error) {
	query := `SELECT pct FROM airport_tax_rates WHERE airport = $1 AND flight_rule = $2`

	var pct float64
	err := r.db.QueryRow(ctx, query, airport, rule).Scan(&pct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return pct, true, nil
}

// LookupActiveLoan finds a company's active loan, if any.
func (r *PostgresRepository) LookupActiveLoan(ctx context.Context, companyID uuid.UUID) (*domain.Loan, error) {
	query := `
		SELECT id, company_id, total_due, repaid, status
		FROM loans
		WHERE company_id = $1 AND status = 'active'
		ORDER BY created_at
		LIMIT 1
	`
	var l domain.Loan
	err := r.db.QueryRow(ctx, query, companyID).Scan(&l.ID, &l.CompanyID, &l.TotalDue, &l.Repaid, &l.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, err
	}
	return &l, nil
}

// ComputeLoanRepayment applies a requested repayment to a loan balance. The
// amount actually applied is clamped to the outstanding balance, and the
// resulting status flips to repaid exactly when cumulative repayment reaches
// the total due; a repayment against a settled balance applies nothing.
func ComputeLoanRepayment(totalDue, repaid, requested int64) (applied int64, newStatus string) {
	newStatus = domain.LoanStatusActive
	if repaid >= totalDue {
		newStatus = domain.LoanStatusRepaid
	}

	outstanding := totalDue - repaid
	if requested <= 0 || outstanding <= 0 {
		return 0, newStatus
	}

	applied = requested
	if applied > outstanding {
		applied = outstanding
	}
	if repaid+applied >= totalDue {
		newStatus = domain.LoanStatusRepaid
	}
	return applied, newStatus
}

// ApplyLoanRepayment applies a repayment against a loan under a row lock. The
// requested amount is clamped to the outstanding balance re-read inside the
// transaction, so two concurrent settlements can never both repay against a
// stale balance. Returns the amount actually applied.
func (r *PostgresRepository) ApplyLoanRepayment(ctx context.Context, loanID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var totalDue, repaid int64
	var status string
	err = tx.QueryRow(ctx, `SELECT total_due, repaid, status FROM loans WHERE id = $1 FOR UPDATE`, loanID).
		Scan(&totalDue, &repaid, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrLoanNotFound
		}
		return 0, err
	}
	if status != domain.LoanStatusActive {
		return 0, nil
	}

	applied, newStatus := ComputeLoanRepayment(totalDue, repaid, amount)
	if applied <= 0 {
		return 0, nil
	}

	_, err = tx.Exec(ctx, `UPDATE loans SET repaid = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		repaid+applied, newStatus, loanID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return applied, nil
}

// InsertSettlementMessage persists a cheque or notification message.
func (r *PostgresRepository) InsertSettlementMessage(ctx context.Context, msg *domain.SettlementMessage) error {
	query := `
		INSERT INTO settlement_messages (
			id, recipient_kind, recipient_id, type, amount, redeemed, label, flight_plan_id, account_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.RecipientKind, msg.RecipientID, msg.Type,
		msg.Amount, msg.Redeemed, msg.Label, msg.FlightPlanID, msg.AccountID,
	)
	return err
}

// ListSettlementMessagesByPlan returns the messages a settlement persisted for a plan.
func (r *PostgresRepository) ListSettlementMessagesByPlan(ctx context.Context, planID uuid.UUID) ([]domain.SettlementMessage, error) {
	query := `
		SELECT id, recipient_kind, recipient_id, type, amount, redeemed, label, flight_plan_id, account_id, created_at
		FROM settlement_messages
		WHERE flight_plan_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.SettlementMessage
	for rows.Next() {
		var m domain.SettlementMessage
		if err := rows.Scan(&m.ID, &m.RecipientKind, &m.RecipientID, &m.Type, &m.Amount,
			&m.Redeemed, &m.Label, &m.FlightPlanID, &m.AccountID, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// GetAircraft loads an aircraft's wear/location projection.
func (r *PostgresRepository) GetAircraft(ctx context.Context, aircraftID uuid.UUID) (*domain.Aircraft, error) {
	query := `SELECT id, registration, wear_percent, status, location FROM aircraft WHERE id = $1`

	var a domain.Aircraft
	err := r.db.QueryRow(ctx, query, aircraftID).Scan(&a.ID, &a.Registration, &a.WearPercent, &a.Status, &a.Location)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAircraftNotFound
		}
		return nil, err
	}
	return &a, nil
}

// UpdateAircraftWear persists the post-flight wear, status, and location.
func (r *PostgresRepository) UpdateAircraftWear(ctx context.Context, aircraftID uuid.UUID, wearPercent float64, status, location string) error {
	query := `UPDATE aircraft SET wear_percent = $1, status = $2, location = $3, updated_at = NOW() WHERE id = $4`
	tag, err := r.db.Exec(ctx, query, wearPercent, status, location, aircraftID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAircraftNotFound
	}
	return nil
}
