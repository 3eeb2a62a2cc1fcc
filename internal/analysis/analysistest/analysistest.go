// Package analysistest provides the sample dataset used across package tests.
package analysistest

import (
	"time"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/dataset"
	"github.com/nyameri/octreport/pkg/types"
)

// Now is the fixed clock used by Build.
var Now = time.Date(2025, 9, 6, 10, 0, 0, 0, time.UTC)

// Export returns the six-layer sample export. Every layer is Normal against
// Reference.
func Export() *dataset.LayerExport {
	return &dataset.LayerExport{
		ExportedAt:   "2025-09-06T09:38:58.456Z",
		Software:     "Nyameri RetinaScan Pro",
		QualityScore: 0.92,
		Layers: []types.Layer{
			{Name: "NFL (Nerve Fiber Layer)", ThicknessUM: 23.4, Color: "#ff6b6b"},
			{Name: "GCL+IPL (Ganglion Cell + Inner Plexiform)", ThicknessUM: 89.2, Color: "#4ecdc4"},
			{Name: "INL (Inner Nuclear Layer)", ThicknessUM: 35.6, Color: "#45b7d1"},
			{Name: "ONL (Outer Nuclear Layer)", ThicknessUM: 67.8, Color: "#96ceb4"},
			{Name: "IS/OS (Inner/Outer Segments)", ThicknessUM: 28.9, Color: "#ffeaa7"},
			{Name: "RPE (Retinal Pigment Epithelium)", ThicknessUM: 15.3, Color: "#dda0dd"},
		},
	}
}

// Reference returns the normative table matching Export.
func Reference() map[string]types.NormativeReference {
	return map[string]types.NormativeReference{
		"NFL (Nerve Fiber Layer)":                   {Name: "NFL (Nerve Fiber Layer)", MeanUM: 25.0, StdUM: 3.0},
		"GCL+IPL (Ganglion Cell + Inner Plexiform)": {Name: "GCL+IPL (Ganglion Cell + Inner Plexiform)", MeanUM: 85.0, StdUM: 8.0},
		"INL (Inner Nuclear Layer)":                 {Name: "INL (Inner Nuclear Layer)", MeanUM: 35.0, StdUM: 4.0},
		"ONL (Outer Nuclear Layer)":                 {Name: "ONL (Outer Nuclear Layer)", MeanUM: 70.0, StdUM: 7.0},
		"IS/OS (Inner/Outer Segments)":              {Name: "IS/OS (Inner/Outer Segments)", MeanUM: 30.0, StdUM: 3.0},
		"RPE (Retinal Pigment Epithelium)":          {Name: "RPE (Retinal Pigment Epithelium)", MeanUM: 16.0, StdUM: 2.0},
	}
}

// Scan returns the sample scan record.
func Scan() *types.ScanInfo {
	return &types.ScanInfo{ID: 1, PatientID: 1, ScanDate: "2025-09-06", Eye: "OD", ScanType: "Uploaded OCT"}
}

// Build returns the all-Normal sample analysis for sourceID.
func Build(sourceID string) *analysis.Analysis {
	return analysis.Build(sourceID, Export(), Scan(), Reference(), Now)
}

// BuildThinned returns a sample analysis whose NFL is thinned (z = -5).
func BuildThinned(sourceID string) *analysis.Analysis {
	exp := Export()
	exp.Layers[0].ThicknessUM = 10.0
	return analysis.Build(sourceID, exp, Scan(), Reference(), Now)
}

// BuildFailed returns a sample analysis whose comparison failed on a missing
// RPE reference.
func BuildFailed(sourceID string) *analysis.Analysis {
	ref := Reference()
	delete(ref, "RPE (Retinal Pigment Epithelium)")
	return analysis.Build(sourceID, Export(), Scan(), ref, Now)
}
