package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nyameri/octreport/internal/compare"
	"github.com/nyameri/octreport/pkg/types"
)

// Finding levels, most severe first.
const (
	LevelCritical = "critical"
	LevelWarning  = "warning"
	LevelInfo     = "info"
	LevelOK       = "ok"
)

// Finding is one human-readable observation about an analysis. Renderers show
// Title as a short label and Detail as the full explanation.
type Finding struct {
	// Key is a stable machine-readable identifier, e.g. "thinned:NFL".
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Value is an optional numeric value tied to the finding (z-score, score).
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{
	LevelCritical: 0,
	LevelWarning:  1,
	LevelInfo:     2,
	LevelOK:       3,
}

// computeFindings derives findings from a built analysis, critical first.
func computeFindings(a *Analysis) []Finding {
	var out []Finding

	if a.Failed() {
		return []Finding{{
			Key:   "comparison_failed",
			Level: LevelCritical,
			Title: "Comparison failed",
			Detail: fmt.Sprintf(
				"The layer export could not be compared with the normative table: %s. "+
					"No per-layer results are available until the export or the table is corrected.",
				a.Error,
			),
		}}
	}

	if len(a.Layers) == 0 {
		out = append(out, Finding{
			Key:    "no_layers",
			Level:  LevelInfo,
			Title:  "No layers exported",
			Detail: "The export contains no segmented layers, so there is nothing to compare.",
		})
	}

	switch q := a.Quality; q.Grade {
	case GradePoor:
		v := q.Score
		out = append(out, Finding{
			Key:   "quality",
			Level: LevelWarning,
			Title: "Poor scan quality",
			Detail: fmt.Sprintf(
				"The scanner reported a quality score of %.1f%%. Poor quality can bias layer "+
					"segmentation; consider rescanning before relying on these results.",
				q.Score*100,
			),
			Value: &v,
		})
	case GradeAcceptable:
		v := q.Score
		out = append(out, Finding{
			Key:    "quality",
			Level:  LevelInfo,
			Title:  "Acceptable scan quality",
			Detail: fmt.Sprintf("The scanner reported a quality score of %.1f%%.", q.Score*100),
			Value:  &v,
		})
	}

	for _, r := range a.Comparison {
		if r.Status == types.StatusNormal {
			continue
		}
		z := r.ZScore
		level := LevelWarning
		if compare.BandOf(z) == compare.BandOutside {
			level = LevelCritical
		}
		direction, key := "below", "thinned:"
		if r.Status == types.StatusAbnormal {
			direction, key = "above", "thickened:"
		}
		out = append(out, Finding{
			Key:   key + ShortName(r.Name),
			Level: level,
			Title: fmt.Sprintf("%s %s", ShortName(r.Name), strings.ToLower(string(r.Status))),
			Detail: fmt.Sprintf(
				"%s measures %.1f µm against a normative mean of %.1f µm (z = %.2f), "+
					"%.1f standard deviations %s the mean.",
				r.Name, r.MeasuredUM, r.NormativeUM, z, math.Abs(z), direction,
			),
			Value: &z,
		})
	}

	if len(out) == 0 {
		total := a.TotalThicknessUM
		out = append(out, Finding{
			Key:   "all_normal",
			Level: LevelOK,
			Title: "All layers normal",
			Detail: fmt.Sprintf(
				"All %d layers are within two standard deviations of the normative mean. "+
					"Total retinal thickness is %.1f µm.",
				len(a.Comparison), total,
			),
			Value: &total,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return levelRank[out[i].Level] < levelRank[out[j].Level]
	})
	return out
}

// ShortName returns the abbreviation of a layer name,
// e.g. "NFL (Nerve Fiber Layer)" -> "NFL".
func ShortName(name string) string {
	short, _, _ := strings.Cut(name, " (")
	return short
}
