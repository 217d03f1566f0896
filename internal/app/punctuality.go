/**
 * @description
 * This file contains the two pure numeric models of the settlement engine: the
 * punctuality coefficient (exponential decay of revenue with schedule
 * deviation) and the static cargo bonus table (bonus percentage plus the
 * retard-sensitivity multiplier that steepens the decay for delicate cargo).
 */

package app

import (
	"math"

	"github.com/airwaysim/settlement-service/internal/domain"
)

const (
	// DefaultPunctualityDecayRate is the base exponent factor k in
	// exp(-k * sensitivity * (deviation - 1)).
	DefaultPunctualityDecayRate = 0.07

	// DefaultPunctualityFloor is the coefficient below which a flight is
	// treated as not rentable at all and the coefficient snaps to exactly 0.
	DefaultPunctualityFloor = 0.01

	// punctualityGraceMinutes is the deviation window, in minutes, inside
	// which a flight still scores a perfect 1.0.
	punctualityGraceMinutes = 1
)

// PunctualityModel maps a schedule deviation to a revenue multiplier in [0,1].
type PunctualityModel struct {
	DecayRate float64
	Floor     float64
}

// NewPunctualityModel builds a model, falling back to the package defaults for
// non-positive parameters.
func NewPunctualityModel(decayRate, floor float64) PunctualityModel {
	if decayRate <= 0 {
		decayRate = DefaultPunctualityDecayRate
	}
	if floor <= 0 {
		floor = DefaultPunctualityFloor
	}
	return PunctualityModel{DecayRate: decayRate, Floor: floor}
}

// Coefficient returns the punctuality multiplier for a flight scheduled for
// scheduledMin minutes that actually flew actualMin minutes. sensitivity
// steepens the decay for sensitive cargo; pass 1.0 when not applicable.
//
// A deviation within the grace window scores exactly 1.0. Beyond it the
// coefficient decays as exp(-k*sensitivity*(deviation-1)), clamped to [0,1];
// anything below the floor snaps to exactly 0, which routes the flight down
// the unprofitable path of the waterfall.
func (m PunctualityModel) Coefficient(scheduledMin, actualMin int, sensitivity float64) float64 {
	deviation := scheduledMin - actualMin
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation <= punctualityGraceMinutes {
		return 1.0
	}
	if sensitivity <= 0 {
		sensitivity = 1.0
	}

	c := math.Exp(-m.DecayRate * sensitivity * float64(deviation-punctualityGraceMinutes))
	if c > 1 {
		c = 1
	}
	if c < m.Floor {
		return 0
	}
	return c
}

// CargoBonus holds the revenue bonus and punctuality sensitivity for one cargo
// class. The bonus applies multiplicatively on the punctuality-adjusted
// revenue, never on gross.
type CargoBonus struct {
	BonusPercent      float64
	RetardSensitivity float64
}

// cargoBonusTable is the static per-class policy. Riskier cargo pays a larger
// bonus but decays faster when late.
var cargoBonusTable = map[domain.CargoClass]CargoBonus{
	domain.CargoClassStandard:   {BonusPercent: 1, RetardSensitivity: 1.0},
	domain.CargoClassFragile:    {BonusPercent: 2, RetardSensitivity: 1.5},
	domain.CargoClassPerishable: {BonusPercent: 3, RetardSensitivity: 2.0},
	domain.CargoClassHazardous:  {BonusPercent: 5, RetardSensitivity: 2.5},
}

// CargoBonusFor returns the bonus policy for a cargo class. Unknown classes
// report ok=false and settle as non-cargo.
func CargoBonusFor(class domain.CargoClass) (CargoBonus, bool) {
	b, ok := cargoBonusTable[class]
	return b, ok
}

// roundCurrency rounds a monetary computation to whole currency units, half
// away from zero. Every waterfall and distribution stage rounds independently;
// residual units lost to rounding are accepted, not reconciled.
func roundCurrency(v float64) int64 {
	return int64(math.Round(v))
}
