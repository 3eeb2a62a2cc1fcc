package compare

import (
	"errors"
	"math"
	"testing"

	"github.com/nyameri/octreport/pkg/types"
)

// almostEqual returns true if a and b are within epsilon of each other.
func almostEqual(a, b, epsilon float64) bool {
	return math.Abs(a-b) < epsilon
}

func nflReference(mean, std float64) map[string]types.NormativeReference {
	return map[string]types.NormativeReference{
		"NFL": {Name: "NFL", MeanUM: mean, StdUM: std},
	}
}

func TestCompare_Scenarios(t *testing.T) {
	tests := []struct {
		name       string
		measured   float64
		wantZ      float64
		wantStatus types.Status
	}{
		{name: "slightly thin NFL stays normal", measured: 23.4, wantZ: (23.4 - 25.0) / 3.0, wantStatus: types.StatusNormal},
		{name: "far below mean is thinned", measured: 10.0, wantZ: -5.0, wantStatus: types.StatusThinned},
		{name: "far above mean is abnormal", measured: 40.0, wantZ: 5.0, wantStatus: types.StatusAbnormal},
		{name: "exactly two std below is normal", measured: 19.0, wantZ: -2.0, wantStatus: types.StatusNormal},
		{name: "exactly two std above is normal", measured: 31.0, wantZ: 2.0, wantStatus: types.StatusNormal},
		{name: "at the mean", measured: 25.0, wantZ: 0, wantStatus: types.StatusNormal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compare(
				[]types.LayerMeasurement{{Name: "NFL", ThicknessUM: tc.measured}},
				nflReference(25.0, 3.0),
			)
			if err != nil {
				t.Fatalf("Compare: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("len: got %d, want 1", len(got))
			}
			r := got[0]
			if !almostEqual(r.ZScore, tc.wantZ, 1e-9) {
				t.Errorf("z: got %v, want %v", r.ZScore, tc.wantZ)
			}
			if r.Status != tc.wantStatus {
				t.Errorf("status: got %q, want %q", r.Status, tc.wantStatus)
			}
			if r.MeasuredUM != tc.measured {
				t.Errorf("measured: got %v, want %v", r.MeasuredUM, tc.measured)
			}
			if r.NormativeUM != 25.0 {
				t.Errorf("normative: got %v, want 25", r.NormativeUM)
			}
		})
	}
}

func TestCompare_NFLScenarioValue(t *testing.T) {
	got, err := Compare([]types.LayerMeasurement{{Name: "NFL", ThicknessUM: 23.4}}, nflReference(25.0, 3.0))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !almostEqual(got[0].ZScore, -0.5333333, 1e-6) {
		t.Errorf("z: got %v, want -0.5333", got[0].ZScore)
	}
}

func TestCompare_SampleDataset(t *testing.T) {
	measurements := []types.LayerMeasurement{
		{Name: "NFL (Nerve Fiber Layer)", ThicknessUM: 23.4},
		{Name: "GCL+IPL (Ganglion Cell + Inner Plexiform)", ThicknessUM: 89.2},
		{Name: "INL (Inner Nuclear Layer)", ThicknessUM: 35.6},
		{Name: "ONL (Outer Nuclear Layer)", ThicknessUM: 67.8},
		{Name: "IS/OS (Inner/Outer Segments)", ThicknessUM: 28.9},
		{Name: "RPE (Retinal Pigment Epithelium)", ThicknessUM: 15.3},
	}
	reference := map[string]types.NormativeReference{
		"NFL (Nerve Fiber Layer)":                   {MeanUM: 25.0, StdUM: 3.0},
		"GCL+IPL (Ganglion Cell + Inner Plexiform)": {MeanUM: 85.0, StdUM: 8.0},
		"INL (Inner Nuclear Layer)":                 {MeanUM: 35.0, StdUM: 4.0},
		"ONL (Outer Nuclear Layer)":                 {MeanUM: 70.0, StdUM: 7.0},
		"IS/OS (Inner/Outer Segments)":              {MeanUM: 30.0, StdUM: 3.0},
		"RPE (Retinal Pigment Epithelium)":          {MeanUM: 16.0, StdUM: 2.0},
	}

	got, err := Compare(measurements, reference)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(got) != len(measurements) {
		t.Fatalf("len: got %d, want %d", len(got), len(measurements))
	}
	for i, r := range got {
		if r.Name != measurements[i].Name {
			t.Errorf("row %d: name %q, want %q", i, r.Name, measurements[i].Name)
		}
		if r.Status != types.StatusNormal {
			t.Errorf("row %d (%s): status %q, want Normal", i, r.Name, r.Status)
		}
	}
	// GCL+IPL: (89.2 - 85) / 8 = 0.525
	if !almostEqual(got[1].ZScore, 0.525, 1e-9) {
		t.Errorf("GCL+IPL z: got %v, want 0.525", got[1].ZScore)
	}
}

func TestCompare_MissingReference(t *testing.T) {
	got, err := Compare(
		[]types.LayerMeasurement{
			{Name: "NFL", ThicknessUM: 23.4},
			{Name: "RPE", ThicknessUM: 15.3},
		},
		nflReference(25.0, 3.0),
	)
	if got != nil {
		t.Errorf("results: got %v, want nil (no partial output)", got)
	}
	var missing *MissingReferenceError
	if !errors.As(err, &missing) {
		t.Fatalf("error: got %v, want *MissingReferenceError", err)
	}
	if missing.Layer != "RPE" {
		t.Errorf("layer: got %q, want RPE", missing.Layer)
	}
}

func TestCompare_InvalidReference(t *testing.T) {
	tests := []struct {
		name string
		std  float64
	}{
		{"zero std", 0},
		{"negative std", -1.5},
		{"NaN std", math.NaN()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Compare([]types.LayerMeasurement{{Name: "NFL", ThicknessUM: 23.4}}, nflReference(25.0, tc.std))
			if got != nil {
				t.Errorf("results: got %v, want nil", got)
			}
			var invalid *InvalidReferenceError
			if !errors.As(err, &invalid) {
				t.Fatalf("error: got %v, want *InvalidReferenceError", err)
			}
			if invalid.Layer != "NFL" {
				t.Errorf("layer: got %q, want NFL", invalid.Layer)
			}
		})
	}
}

func TestCheckFinite(t *testing.T) {
	tests := []struct {
		name      string
		z         float64
		wantError bool
	}{
		{"finite", -5, false},
		{"positive infinity", math.Inf(1), true},
		{"negative infinity", math.Inf(-1), true},
		{"NaN", math.NaN(), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results := []types.ComparisonResult{
				{Name: "GCL", ZScore: 0.5},
				{Name: "NFL", ZScore: tc.z},
			}
			err := CheckFinite(results)
			if !tc.wantError {
				if err != nil {
					t.Fatalf("CheckFinite: %v", err)
				}
				return
			}
			var nonFinite *NonFiniteScoreError
			if !errors.As(err, &nonFinite) || nonFinite.Layer != "NFL" {
				t.Fatalf("error: got %v, want NonFiniteScoreError for NFL", err)
			}
		})
	}
}

func TestCompare_ExtremeInputsOverflow(t *testing.T) {
	got, err := Compare([]types.LayerMeasurement{{Name: "NFL", ThicknessUM: 1e300}}, nflReference(0, 1e-10))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !math.IsInf(got[0].ZScore, 1) {
		t.Fatalf("z: got %v, want +Inf", got[0].ZScore)
	}
	if CheckFinite(got) == nil {
		t.Error("CheckFinite: want error for overflowed z-score")
	}
}

func TestCompare_FailsBeforeLaterValidRows(t *testing.T) {
	reference := map[string]types.NormativeReference{
		"A": {MeanUM: 10, StdUM: 0},
		"B": {MeanUM: 10, StdUM: 1},
	}
	_, err := Compare([]types.LayerMeasurement{{Name: "A", ThicknessUM: 10}, {Name: "B", ThicknessUM: 10}}, reference)
	var invalid *InvalidReferenceError
	if !errors.As(err, &invalid) || invalid.Layer != "A" {
		t.Fatalf("error: got %v, want InvalidReferenceError for A", err)
	}
}

func TestCompare_Empty(t *testing.T) {
	got, err := Compare(nil, nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len: got %d, want 0", len(got))
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]types.ComparisonResult{
		{Status: types.StatusNormal},
		{Status: types.StatusNormal},
		{Status: types.StatusThinned},
		{Status: types.StatusAbnormal},
	})
	want := Summary{Total: 4, Normal: 2, Thinned: 1, Abnormal: 1}
	if s != want {
		t.Errorf("Summarize: got %+v, want %+v", s, want)
	}
}

func TestBandOf(t *testing.T) {
	tests := []struct {
		z    float64
		want Band
	}{
		{0, BandWithin},
		{2, BandWithin},
		{-2, BandWithin},
		{2.5, BandBorderline},
		{-3, BandBorderline},
		{3.01, BandOutside},
		{-5, BandOutside},
	}
	for _, tc := range tests {
		if got := BandOf(tc.z); got != tc.want {
			t.Errorf("BandOf(%v): got %q, want %q", tc.z, got, tc.want)
		}
	}
}
