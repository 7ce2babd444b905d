// Package scoring implements the climate range-compatibility score.
package scoring

// Points contributed by each climate factor when the observed value falls
// inside, respectively outside, the product's optimal range.
const (
	InRangePoints    = 3
	OutOfRangePoints = -3
)

// Range compares an observed value against an optimal [min, max] range.
// When any input is missing the fact is unknown: the predicate is nil and
// the contribution is 0. Unknown is never treated as a failure.
func Range(value, min, max *float64) (inRange *bool, contribution int) {
	if value == nil || min == nil || max == nil {
		return nil, 0
	}
	ok := *value >= *min && *value <= *max
	if ok {
		return &ok, InRangePoints
	}
	return &ok, OutOfRangePoints
}
