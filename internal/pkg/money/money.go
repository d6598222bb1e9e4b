package money

import (
	"fmt"
	"math"
	"strconv"
)

// Money is an amount in minor currency units (centavos).
type Money int64

// FromMajor converts a major-unit amount (pesos) to Money, rounding half away from zero.
func FromMajor(v float64) Money {
	return Money(math.Round(v * 100))
}

func (m Money) Major() float64 {
	return float64(m) / 100
}

// Percent returns pct percent of m, rounded to the nearest minor unit.
func (m Money) Percent(pct float64) Money {
	return Money(math.Round(float64(m) * pct / 100))
}

// Scale multiplies m by f, rounded to the nearest minor unit.
func (m Money) Scale(f float64) Money {
	return Money(math.Round(float64(m) * f))
}

// Split divides m into n equal shares rounded to the nearest minor unit.
// n*share differs from m by at most n/2 minor units.
func (m Money) Split(n int) Money {
	if n <= 0 {
		return 0
	}
	return Money(math.Round(float64(m) / float64(n)))
}

func (m Money) NonNegative() Money {
	if m < 0 {
		return 0
	}
	return m
}

func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders m in major units, e.g. 300.00.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid money amount %q: %w", s, err)
	}
	*m = FromMajor(v)
	return nil
}
