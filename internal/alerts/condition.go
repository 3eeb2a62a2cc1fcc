package alerts

import (
	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/config"
)

// hit is one subject a condition matched. layer is empty for analysis-level
// fields.
type hit struct {
	layer string
	value float64
}

// evalCondition evaluates a rule condition against a.
//
// Supported expressions (field operator value):
//
//	z_score < -2
//	measured_um < 10
//	status == Thinned
//	quality_score < 0.6
//	total_thickness_um < 200
//	analysis_failed == 1
//
// Conditions config.ParseCondition rejects never match; Load refuses them up
// front.
func evalCondition(cond string, a *analysis.Analysis) []hit {
	c, err := config.ParseCondition(cond)
	if err != nil {
		return nil
	}

	switch c.Field {
	case "status":
		var hits []hit
		for _, r := range a.Comparison {
			if (string(r.Status) == c.Value) == (c.Op == "==") {
				hits = append(hits, hit{layer: r.Name, value: r.ZScore})
			}
		}
		return hits

	case "z_score", "measured_um":
		var hits []hit
		for _, r := range a.Comparison {
			v := r.ZScore
			if c.Field == "measured_um" {
				v = r.MeasuredUM
			}
			if compareFloat(v, c.Op, c.Threshold) {
				hits = append(hits, hit{layer: r.Name, value: v})
			}
		}
		return hits

	default:
		v, ok := numericField(c.Field, a)
		if !ok || !compareFloat(v, c.Op, c.Threshold) {
			return nil
		}
		return []hit{{value: v}}
	}
}

// numericField maps an analysis-level field name to its value.
func numericField(field string, a *analysis.Analysis) (float64, bool) {
	switch field {
	case "quality_score":
		return a.Quality.Score, true
	case "total_thickness_um":
		return a.TotalThicknessUM, true
	case "analysis_failed":
		if a.Failed() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
