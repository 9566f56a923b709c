package domain

import "math"

// All money arithmetic happens in integer centavos so totals are exact to the
// currency's minor unit. float64 only appears at the API boundary.

// Centavos converts a value in reais to integer centavos.
func Centavos(reais float64) int64 {
	return int64(math.Round(reais * 100))
}

// FromCentavos converts integer centavos back to reais.
func FromCentavos(c int64) float64 {
	return float64(c) / 100
}

// ValidMeters reports whether m is a positive multiple of 0.5, the smallest
// cut the store sells. The epsilon absorbs binary representation noise from
// JSON-decoded values.
func ValidMeters(m float64) bool {
	if m <= 0 {
		return false
	}
	half := m * 2
	return math.Abs(half-math.Round(half)) < 1e-9
}
