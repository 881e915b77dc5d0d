package alignment

import (
	"math"

	"clipstream/internal/similarity"
)

// Thresholds carries the decision bounds for relationship verdicts, taken
// from [analysis] configuration.
type Thresholds struct {
	// TrimmedMaxCost is the maximum normalized subsequence cost for a
	// trimmed-from verdict.
	TrimmedMaxCost float64
	// PovMaxCost is the maximum normalized anchored cost for a pov verdict.
	PovMaxCost float64
	// PovDurationTolerance bounds |m-n|/max(m,n) for pov candidates.
	PovDurationTolerance float64
	// PovMaxDeviation bounds the fraction of non-diagonal path steps for a
	// pov verdict; higher deviation means warping, not a straight replay.
	PovMaxDeviation float64
}

// Verdict is the outcome of relating a candidate to one reference.
type Verdict struct {
	Kind string
	// Cost is the normalized alignment cost that justified the verdict.
	Cost float64
	// OffsetB is the reference window index where the candidate begins.
	// Only meaningful for trimmed-from verdicts.
	OffsetB int
}

// Relationship kinds produced by the classifier.
const (
	KindTrimmedFrom = "trimmed_from"
	KindPOV         = "pov"
)

// Relate classifies candidate a against reference b. Trimmed-from is
// checked first when the candidate is strictly shorter; otherwise, when the
// lengths are comparable, a low-cost near-diagonal anchored alignment
// yields a pov verdict. Returns false when neither relation holds.
func Relate(a, b [][]float32, distance similarity.DistanceFunc, th Thresholds) (Verdict, bool, error) {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return Verdict{}, false, ErrEmptySequence
	}

	if m < n {
		result, err := AlignSubsequence(a, b, distance)
		if err != nil {
			return Verdict{}, false, err
		}
		if result.NormalizedCost <= th.TrimmedMaxCost && coversCandidate(result, m) {
			return Verdict{Kind: KindTrimmedFrom, Cost: result.NormalizedCost, OffsetB: result.StartB}, true, nil
		}
	}

	if durationGap(m, n) <= th.PovDurationTolerance {
		result, err := Align(a, b, distance)
		if err != nil {
			return Verdict{}, false, err
		}
		if result.NormalizedCost <= th.PovMaxCost && result.Deviation <= th.PovMaxDeviation {
			return Verdict{Kind: KindPOV, Cost: result.NormalizedCost}, true, nil
		}
	}

	return Verdict{}, false, nil
}

// coversCandidate verifies the path spans a contiguous stretch of the
// reference at least one full pass of the candidate long. A shorter span
// means the path collapsed onto a few reference windows instead of tracing
// the clip through the source.
func coversCandidate(result Result, m int) bool {
	span := result.EndB - result.StartB + 1
	return float64(span) >= 0.8*float64(m) && result.PathLength >= m
}

func durationGap(m, n int) float64 {
	max := m
	if n > max {
		max = n
	}
	return math.Abs(float64(m)-float64(n)) / float64(max)
}
