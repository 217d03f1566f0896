package app

import (
	"math"
	"testing"

	"github.com/airwaysim/settlement-service/internal/domain"
)

func TestPunctuality_GraceWindowIsExactlyOne(t *testing.T) {
	m := NewPunctualityModel(0, 0)

	cases := []struct {
		scheduled, actual int
	}{
		{60, 60},
		{60, 61},
		{60, 59},
		{1, 2},
		{120, 119},
	}
	for _, c := range cases {
		if got := m.Coefficient(c.scheduled, c.actual, 1.0); got != 1.0 {
			t.Fatalf("expected coefficient 1.0 for scheduled=%d actual=%d, got %v", c.scheduled, c.actual, got)
		}
	}
}

func TestPunctuality_DecaysWithDeviation(t *testing.T) {
	m := NewPunctualityModel(0, 0)

	prev := 1.0
	for deviation := 2; deviation <= 60; deviation += 2 {
		got := m.Coefficient(60, 60+deviation, 1.0)
		if got >= prev {
			t.Fatalf("expected coefficient to strictly decrease at deviation %d: prev=%v got=%v", deviation, prev, got)
		}
		want := math.Exp(-0.07 * float64(deviation-1))
		if want >= DefaultPunctualityFloor && math.Abs(got-want) > 1e-12 {
			t.Fatalf("deviation %d: expected %v, got %v", deviation, want, got)
		}
		prev = got
	}
}

func TestPunctuality_SnapsToZeroBelowFloor(t *testing.T) {
	m := NewPunctualityModel(0, 0)

	// exp(-0.07*(dev-1)) < 0.01 once dev-1 > ln(100)/0.07 ~= 65.8
	if got := m.Coefficient(60, 60+100, 1.0); got != 0 {
		t.Fatalf("expected coefficient to snap to exactly 0 far past the floor, got %v", got)
	}
	// Just inside the floor it must stay positive.
	if got := m.Coefficient(60, 60+30, 1.0); got <= 0 || got >= 1 {
		t.Fatalf("expected coefficient in (0,1) at deviation 30, got %v", got)
	}
}

func TestPunctuality_EarlyAndLateAreSymmetric(t *testing.T) {
	m := NewPunctualityModel(0, 0)

	late := m.Coefficient(60, 90, 1.0)
	early := m.Coefficient(90, 60, 1.0)
	if late != early {
		t.Fatalf("expected symmetric decay, late=%v early=%v", late, early)
	}
}

func TestPunctuality_SensitivitySteepensDecay(t *testing.T) {
	m := NewPunctualityModel(0, 0)

	base := m.Coefficient(60, 80, 1.0)
	sensitive := m.Coefficient(60, 80, 2.0)
	if sensitive >= base {
		t.Fatalf("expected higher sensitivity to decay faster: base=%v sensitive=%v", base, sensitive)
	}
}

func TestCargoBonusFor_KnownClasses(t *testing.T) {
	cases := []struct {
		class       domain.CargoClass
		bonusPct    float64
		sensitivity float64
	}{
		{domain.CargoClassStandard, 1, 1.0},
		{domain.CargoClassFragile, 2, 1.5},
		{domain.CargoClassPerishable, 3, 2.0},
		{domain.CargoClassHazardous, 5, 2.5},
	}
	for _, c := range cases {
		bonus, ok := CargoBonusFor(c.class)
		if !ok {
			t.Fatalf("expected cargo class %q to be known", c.class)
		}
		if bonus.BonusPercent != c.bonusPct || bonus.RetardSensitivity != c.sensitivity {
			t.Fatalf("class %q: expected (%v, %v), got (%v, %v)",
				c.class, c.bonusPct, c.sensitivity, bonus.BonusPercent, bonus.RetardSensitivity)
		}
	}

	if _, ok := CargoBonusFor(domain.CargoClass("livestock")); ok {
		t.Fatal("expected unknown cargo class to report ok=false")
	}
}
