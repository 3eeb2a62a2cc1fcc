package compare

import (
	"fmt"
	"math"

	"github.com/nyameri/octreport/pkg/types"
)

// ThresholdZ is the absolute z-score above which a layer leaves the Normal
// status.
const ThresholdZ = 2.0

// MissingReferenceError reports a measured layer with no normative entry.
type MissingReferenceError struct {
	Layer string
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("compare: no normative reference for layer %q", e.Layer)
}

// InvalidReferenceError reports a normative entry whose standard deviation is
// not strictly positive.
type InvalidReferenceError struct {
	Layer string
	StdUM float64
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("compare: normative reference for layer %q has non-positive std %v", e.Layer, e.StdUM)
}

// NonFiniteScoreError reports a z-score that overflowed to an infinity, as
// happens for extreme measurements against a tiny std.
type NonFiniteScoreError struct {
	Layer  string
	ZScore float64
}

func (e *NonFiniteScoreError) Error() string {
	return fmt.Sprintf("compare: z-score for layer %q is not finite (%v)", e.Layer, e.ZScore)
}

// CheckFinite returns a *NonFiniteScoreError for the first result whose
// z-score is an infinity or NaN. Such results cannot be encoded as JSON.
func CheckFinite(results []types.ComparisonResult) error {
	for _, r := range results {
		if math.IsInf(r.ZScore, 0) || math.IsNaN(r.ZScore) {
			return &NonFiniteScoreError{Layer: r.Name, ZScore: r.ZScore}
		}
	}
	return nil
}

// Compare computes a ComparisonResult for every measurement, in input order.
//
// reference is keyed by layer name. On the first unmatched name or invalid
// reference Compare returns a nil slice and the typed error.
func Compare(measurements []types.LayerMeasurement, reference map[string]types.NormativeReference) ([]types.ComparisonResult, error) {
	out := make([]types.ComparisonResult, 0, len(measurements))
	for _, m := range measurements {
		ref, ok := reference[m.Name]
		if !ok {
			return nil, &MissingReferenceError{Layer: m.Name}
		}
		// NaN fails this check too.
		if !(ref.StdUM > 0) {
			return nil, &InvalidReferenceError{Layer: m.Name, StdUM: ref.StdUM}
		}

		z := (m.ThicknessUM - ref.MeanUM) / ref.StdUM
		out = append(out, types.ComparisonResult{
			Name:        m.Name,
			MeasuredUM:  m.ThicknessUM,
			NormativeUM: ref.MeanUM,
			ZScore:      z,
			Status:      Classify(z),
		})
	}
	return out, nil
}

// Classify maps a z-score to a layer status.
//
// The sign convention (positive deviation is "Abnormal", negative is
// "Thinned") has not been reviewed against clinical standards.
func Classify(z float64) types.Status {
	switch {
	case math.Abs(z) <= ThresholdZ:
		return types.StatusNormal
	case z > 0:
		return types.StatusAbnormal
	default:
		return types.StatusThinned
	}
}

// Summary counts results per status.
type Summary struct {
	Total    int `json:"total"`
	Normal   int `json:"normal"`
	Thinned  int `json:"thinned"`
	Abnormal int `json:"abnormal"`
}

// Summarize returns per-status counts for results.
func Summarize(results []types.ComparisonResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case types.StatusNormal:
			s.Normal++
		case types.StatusThinned:
			s.Thinned++
		case types.StatusAbnormal:
			s.Abnormal++
		}
	}
	return s
}
