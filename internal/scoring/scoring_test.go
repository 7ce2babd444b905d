package scoring

import "testing"

func f(v float64) *float64 { return &v }

func TestRangeTruthTable(t *testing.T) {
	cases := []struct {
		name     string
		value    float64
		min, max float64
		inRange  bool
		points   int
	}{
		{"inside", 20, 15, 25, true, InRangePoints},
		{"at lower bound", 15, 15, 25, true, InRangePoints},
		{"at upper bound", 25, 15, 25, true, InRangePoints},
		{"below", 10, 15, 25, false, OutOfRangePoints},
		{"above", 30, 15, 25, false, OutOfRangePoints},
		{"degenerate range hit", 18, 18, 18, true, InRangePoints},
		{"degenerate range miss", 18.5, 18, 18, false, OutOfRangePoints},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, pts := Range(f(tc.value), f(tc.min), f(tc.max))
			if ok == nil {
				t.Fatal("predicate is nil for fully known inputs")
			}
			if *ok != tc.inRange || pts != tc.points {
				t.Errorf("Range(%v, %v, %v) = (%v, %d), want (%v, %d)",
					tc.value, tc.min, tc.max, *ok, pts, tc.inRange, tc.points)
			}
		})
	}
}

func TestRangeUnknownInputs(t *testing.T) {
	cases := []struct {
		name             string
		value, min, max  *float64
	}{
		{"missing value", nil, f(10), f(20)},
		{"missing min", f(15), nil, f(20)},
		{"missing max", f(15), f(10), nil},
		{"all missing", nil, nil, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, pts := Range(tc.value, tc.min, tc.max)
			if ok != nil || pts != 0 {
				t.Errorf("Range with missing input = (%v, %d), want (nil, 0)", ok, pts)
			}
		})
	}
}
