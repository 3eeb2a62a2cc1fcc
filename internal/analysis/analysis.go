package analysis

import (
	"time"

	"github.com/google/uuid"

	"github.com/nyameri/octreport/internal/compare"
	"github.com/nyameri/octreport/internal/dataset"
	"github.com/nyameri/octreport/pkg/types"
)

// Quality grades.
const (
	GradeExcellent  = "excellent"
	GradeAcceptable = "acceptable"
	GradePoor       = "poor"
)

// Score thresholds for the quality grades.
const (
	ThresholdExcellent  = 0.8
	ThresholdAcceptable = 0.6
)

// Quality is the scanner-reported quality score and its grade.
type Quality struct {
	Score float64 `json:"score"`
	Grade string  `json:"grade"`
}

// Analysis is the result of comparing one source's layer export against its
// normative table.
type Analysis struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id"`
	GeneratedAt time.Time `json:"generated_at"`

	Software   string          `json:"software,omitempty"`
	ExportedAt string          `json:"exported_at,omitempty"`
	Scan       *types.ScanInfo `json:"scan,omitempty"`

	Layers           []types.Layer            `json:"layers"`
	Comparison       []types.ComparisonResult `json:"comparison"`
	TotalThicknessUM float64                  `json:"total_thickness_um"`
	Quality          Quality                  `json:"quality"`
	Findings         []Finding                `json:"findings"`

	// Error is the comparator failure, if any. Comparison is empty when set.
	Error string `json:"error,omitempty"`
}

// Failed reports whether the comparison could not be computed.
func (a *Analysis) Failed() bool { return a.Error != "" }

// Counts returns per-status counts of the comparison.
func (a *Analysis) Counts() compare.Summary { return compare.Summarize(a.Comparison) }

// Summary is the list view of an Analysis.
type Summary struct {
	ID               string          `json:"id"`
	SourceID         string          `json:"source_id"`
	GeneratedAt      time.Time       `json:"generated_at"`
	ScanDate         string          `json:"scan_date,omitempty"`
	Eye              string          `json:"eye,omitempty"`
	TotalThicknessUM float64         `json:"total_thickness_um"`
	Quality          Quality         `json:"quality"`
	Counts           compare.Summary `json:"counts"`
	Error            string          `json:"error,omitempty"`
}

// Summarize returns the list view of a.
func (a *Analysis) Summarize() Summary {
	s := Summary{
		ID:               a.ID,
		SourceID:         a.SourceID,
		GeneratedAt:      a.GeneratedAt,
		TotalThicknessUM: a.TotalThicknessUM,
		Quality:          a.Quality,
		Counts:           a.Counts(),
		Error:            a.Error,
	}
	if a.Scan != nil {
		s.ScanDate = a.Scan.ScanDate
		s.Eye = a.Scan.Eye
	}
	return s
}

// Build compares exp against ref and derives the full Analysis.
// scan may be nil when no scan export is configured.
func Build(sourceID string, exp *dataset.LayerExport, scan *types.ScanInfo, ref map[string]types.NormativeReference, now time.Time) *Analysis {
	a := &Analysis{
		ID:          uuid.New().String(),
		SourceID:    sourceID,
		GeneratedAt: now.UTC(),
		Software:    exp.Software,
		ExportedAt:  exp.ExportedAt,
		Scan:        scan,
		Layers:      exp.Layers,
		Comparison:  []types.ComparisonResult{},
		Quality:     GradeQuality(exp.QualityScore),
	}
	for _, l := range exp.Layers {
		a.TotalThicknessUM += l.ThicknessUM
	}

	results, err := compare.Compare(exp.Measurements(), ref)
	if err == nil {
		err = compare.CheckFinite(results)
	}
	if err != nil {
		a.Error = err.Error()
	} else {
		a.Comparison = results
	}

	a.Findings = computeFindings(a)
	return a
}

// GradeQuality maps a quality score in [0, 1] to its grade.
func GradeQuality(score float64) Quality {
	q := Quality{Score: score}
	switch {
	case score >= ThresholdExcellent:
		q.Grade = GradeExcellent
	case score >= ThresholdAcceptable:
		q.Grade = GradeAcceptable
	default:
		q.Grade = GradePoor
	}
	return q
}
