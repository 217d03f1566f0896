/**
 * @description
 * This file defines the flight-side domain models for the settlement-service:
 * the settlement-relevant projection of a flight plan, the control records that
 * tell us who handled the flight, controller/AFIS duty sessions, and aircraft.
 *
 * @notes
 * - Monetary amounts are stored as `int64` in the smallest currency unit to
 *   avoid floating-point inaccuracies with financial data.
 * - Nullable foreign keys from the platform schema are represented as pointer
 *   fields; settlement logic must treat a nil pointer as "not applicable".
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlightRule is the flight-rule type filed on a plan. It selects the airport
// tax rate bracket.
type FlightRule string

const (
	FlightRuleIFR  FlightRule = "IFR"
	FlightRuleVFR  FlightRule = "VFR"
	FlightRuleSVFR FlightRule = "SVFR"
)

// CargoClass identifies the class of cargo carried on a cargo flight. Each
// class maps to a revenue bonus and a punctuality sensitivity multiplier.
type CargoClass string

const (
	CargoClassStandard   CargoClass = "standard"
	CargoClassFragile    CargoClass = "fragile"
	CargoClassPerishable CargoClass = "perishable"
	CargoClassHazardous  CargoClass = "hazardous"
)

// Flight plan lifecycle states. Only the closure_requested -> closed
// transition runs settlement, and closed is terminal.
const (
	PlanStatusAccepted         = "accepted"
	PlanStatusEnRoute          = "en_route"
	PlanStatusClosureRequested = "closure_requested"
	PlanStatusClosed           = "closed"
)

// FlightPlan is the settlement-relevant projection of a flight plan. It maps
// to the `flight_plans` table but carries only the columns the settlement
// engine reads.
type FlightPlan struct {
	ID                   uuid.UUID   `json:"id"`
	Callsign             string      `json:"callsign"`
	PilotID              uuid.UUID   `json:"pilot_id"`
	Commercial           bool        `json:"commercial"`
	CompanyID            *uuid.UUID  `json:"company_id,omitempty"`
	GrossRevenue         int64       `json:"gross_revenue"`
	PilotBaseSalary      int64       `json:"pilot_base_salary"`
	ScheduledDurationMin int         `json:"scheduled_duration_min"`
	AcceptedAt           *time.Time  `json:"accepted_at,omitempty"`
	ClosureRequestedAt   *time.Time  `json:"closure_requested_at,omitempty"`
	FlightRule           FlightRule  `json:"flight_rule"`
	CargoNature          *string     `json:"cargo_nature,omitempty"`
	CargoClass           *CargoClass `json:"cargo_class,omitempty"`
	LessorCompanyID      *uuid.UUID  `json:"lessor_company_id,omitempty"`
	LessorSharePct       float64     `json:"lessor_share_pct"`
	AircraftID           *uuid.UUID  `json:"aircraft_id,omitempty"`
	AfisAgentID          *uuid.UUID  `json:"afis_agent_id,omitempty"`
	DepartureAirport     string      `json:"departure_airport"`
	ArrivalAirport       string      `json:"arrival_airport"`
	Status               string      `json:"status"`
	ClosedAt             *time.Time  `json:"closed_at,omitempty"`
}

// IsCargo reports whether the flight carried classed cargo.
func (p *FlightPlan) IsCargo() bool {
	return p.CargoClass != nil
}

// ControlRecord states that a controller handled this flight from a duty
// position at an airport. A flight may have zero, one, or many control records
// across one or more airports. Read-only input to tax distribution.
type ControlRecord struct {
	FlightPlanID uuid.UUID `json:"flight_plan_id"`
	ControllerID uuid.UUID `json:"controller_id"`
	Airport      string    `json:"airport"`
	Position     string    `json:"position"` // e.g. 'TWR', 'APP', 'GND'
}

// DutySessionKind distinguishes what a duty session entitles its holder to.
type DutySessionKind string

const (
	// DutySessionATC is a regular control session.
	DutySessionATC DutySessionKind = "atc"
	// DutySessionAFIS is a full flight-information session; entitled to the
	// AFIS tax fallback.
	DutySessionAFIS DutySessionKind = "afis"
	// DutySessionFire is a fire/rescue-only session; earns no tax share.
	DutySessionFire DutySessionKind = "fire"
)

// DutySession is an active duty session for a controller or AFIS agent. Tax
// shares earned while the session is open accumulate into PendingTaxes and are
// paid out as one cheque when the session ends (outside this service).
type DutySession struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Airport      string          `json:"airport"`
	Position     string          `json:"position"`
	Kind         DutySessionKind `json:"kind"`
	PendingTaxes int64           `json:"pending_taxes"`
	StartedAt    time.Time       `json:"started_at"`
	EndedAt      *time.Time      `json:"ended_at,omitempty"`
}

// Aircraft states relevant to closure.
const (
	AircraftStatusAvailable      = "available"
	AircraftStatusGroundHandling = "ground_handling"
	AircraftStatusBlocked        = "blocked"
)

// Aircraft is the wear/location projection of an airframe. WearPercent runs
// from 100 (factory fresh) down to 0, at which point the aircraft is blocked.
type Aircraft struct {
	ID           uuid.UUID `json:"id"`
	Registration string    `json:"registration"`
	WearPercent  float64   `json:"wear_percent"`
	Status       string    `json:"status"`
	Location     string    `json:"location"`
}
