package domain

import "testing"

func TestCentavosIsExact(t *testing.T) {
	cases := []struct {
		reais float64
		want  int64
	}{
		{19.90, 1990},
		{0.01, 1},
		{54.70, 5470},
		{29.85, 2985}, // 1.5 * 19.90, a classic float trap
		{0, 0},
	}
	for _, tc := range cases {
		if got := Centavos(tc.reais); got != tc.want {
			t.Errorf("Centavos(%v) = %d, want %d", tc.reais, got, tc.want)
		}
	}
}

func TestCentavosRoundTrip(t *testing.T) {
	for _, v := range []float64{0.01, 19.90, 54.70, 199.99, 1234.56} {
		if got := FromCentavos(Centavos(v)); got != v {
			t.Errorf("round trip %v = %v", v, got)
		}
	}
}

func TestValidMeters(t *testing.T) {
	valid := []float64{0.5, 1, 1.5, 2, 10.5, 100}
	for _, m := range valid {
		if !ValidMeters(m) {
			t.Errorf("ValidMeters(%v) = false, want true", m)
		}
	}
	invalid := []float64{0, -1, -0.5, 0.3, 0.75, 1.1, 2.49}
	for _, m := range invalid {
		if ValidMeters(m) {
			t.Errorf("ValidMeters(%v) = true, want false", m)
		}
	}
}

func TestSubtotalRoundsToCentavo(t *testing.T) {
	it := OrderItem{Meters: 1.5, PricePerMeter: 19.90}
	if got := it.Subtotal(); got != 29.85 {
		t.Fatalf("subtotal = %v, want 29.85", got)
	}
}
