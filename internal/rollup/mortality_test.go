package rollup

import (
	"math"
	"testing"
)

func TestMortalityRate(t *testing.T) {
	cases := []struct {
		name                  string
		cumulativeDead, alive int64
		want                  *int
	}{
		{"quarter", 5, 15, ptr(25)},
		{"rounds half up", 1, 7, ptr(13)},
		{"all dead", 4, 0, ptr(100)},
		{"none dead", 0, 9, ptr(0)},
		{"empty population", 0, 0, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := MortalityRate(tc.cumulativeDead, tc.alive)
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("expected nil, got %d", *got)
			case tc.want != nil && got == nil:
				t.Fatalf("expected %d, got nil", *tc.want)
			case tc.want != nil && *got != *tc.want:
				t.Fatalf("expected %d, got %d", *tc.want, *got)
			}
		})
	}
}

func TestWeightedStdDev(t *testing.T) {
	if WeightedStdDev(nil) != nil {
		t.Fatalf("expected nil for no samples")
	}
	single := []MortalitySample{{Rate: ptr(10), Weight: 4}, {Rate: nil, Weight: 9}, {Rate: ptr(80), Weight: 0}}
	if WeightedStdDev(single) != nil {
		t.Fatalf("expected nil when only one usable sample remains")
	}

	// mean = (10*1 + 40*3) / 4 = 32.5; var = (1*22.5² + 3*7.5²) / 4 = 168.75
	sd := WeightedStdDev([]MortalitySample{{Rate: ptr(10), Weight: 1}, {Rate: ptr(40), Weight: 3}})
	if sd == nil {
		t.Fatalf("expected a spread")
	}
	if want := math.Sqrt(168.75); math.Abs(*sd-want) > 1e-9 {
		t.Fatalf("expected %f, got %f", want, *sd)
	}
}

func TestStdDev(t *testing.T) {
	if StdDev([]float64{3}) != nil {
		t.Fatalf("expected nil for a single value")
	}
	sd := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if sd == nil || math.Abs(*sd-2) > 1e-9 {
		t.Fatalf("expected population std dev 2, got %v", sd)
	}
}
