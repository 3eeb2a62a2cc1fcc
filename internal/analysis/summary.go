package analysis

import (
	"fmt"
	"strings"

	"github.com/nyameri/octreport/pkg/types"
)

// ClinicalSummary renders a as the default clinical notes for a report.
func ClinicalSummary(a *Analysis) string {
	var b strings.Builder

	if a.Failed() {
		fmt.Fprintf(&b, "Normative comparison unavailable: %s.\n\n", a.Error)
		b.WriteString("Impression: unable to assess layer thickness against normative data.")
		return b.String()
	}

	fmt.Fprintf(&b, "The OCT scan shows %d segmented retinal layers with a total thickness of %.1f µm.\n\n",
		len(a.Layers), a.TotalThicknessUM)

	b.WriteString("Notable findings:\n")
	abnormal := 0
	for _, r := range a.Comparison {
		name := ShortName(r.Name)
		switch r.Status {
		case types.StatusNormal:
			fmt.Fprintf(&b, "- %s thickness is within normal limits (z = %.2f)\n", name, r.ZScore)
		case types.StatusThinned:
			abnormal++
			fmt.Fprintf(&b, "- %s is thinned (%.1f µm, z = %.2f)\n", name, r.MeasuredUM, r.ZScore)
		case types.StatusAbnormal:
			abnormal++
			fmt.Fprintf(&b, "- %s is thickened (%.1f µm, z = %.2f)\n", name, r.MeasuredUM, r.ZScore)
		}
	}
	if a.Quality.Grade == GradePoor {
		fmt.Fprintf(&b, "- Scan quality is poor (%.1f%%); consider rescanning\n", a.Quality.Score*100)
	}

	b.WriteString("\nImpression: ")
	if abnormal == 0 {
		b.WriteString("Normal OCT scan; all layers within normative limits.")
	} else {
		fmt.Fprintf(&b, "%d of %d layers outside normative limits; clinical correlation advised.",
			abnormal, len(a.Comparison))
	}
	return b.String()
}
