package types

// Status is the three-way classification of a layer against its normative
// reference.
type Status string

// Status values produced by the comparator.
const (
	StatusNormal   Status = "Normal"
	StatusThinned  Status = "Thinned"
	StatusAbnormal Status = "Abnormal"
)

// LayerMeasurement is one measured retinal layer thickness.
type LayerMeasurement struct {
	// Name is the unique key used to look up the normative reference.
	Name string `json:"name" yaml:"name"`

	// ThicknessUM is the measured thickness in micrometres (>= 0).
	ThicknessUM float64 `json:"thickness_um" yaml:"thickness_um"`
}

// NormativeReference is the population baseline for one layer.
type NormativeReference struct {
	Name   string  `json:"name" yaml:"name"`
	MeanUM float64 `json:"mean_um" yaml:"mean_um"`
	StdUM  float64 `json:"std_um" yaml:"std_um"`
}

// ComparisonResult is the derived per-layer deviation from the normative
// reference. It is plain data, recomputed on every input change.
type ComparisonResult struct {
	Name        string  `json:"name"`
	MeasuredUM  float64 `json:"measured_um"`
	NormativeUM float64 `json:"normative_um"`
	ZScore      float64 `json:"z_score"`
	Status      Status  `json:"status"`
}

// Layer is a measured layer as exported by the scanner software, including
// the boundary depth profile and the display colour.
type Layer struct {
	Name           string    `json:"name" yaml:"name"`
	ThicknessUM    float64   `json:"thickness_um" yaml:"thickness"`
	BoundaryPoints []float64 `json:"boundary_points,omitempty" yaml:"boundary_points"`
	Color          string    `json:"color,omitempty" yaml:"color"`
}

// Measurement projects l onto the comparator's input type.
func (l Layer) Measurement() LayerMeasurement {
	return LayerMeasurement{Name: l.Name, ThicknessUM: l.ThicknessUM}
}

// ScanInfo describes the acquisition a layer export belongs to.
type ScanInfo struct {
	ID        int    `json:"id" yaml:"id"`
	PatientID int    `json:"patient_id" yaml:"patient_id"`
	ScanDate  string `json:"scan_date" yaml:"scan_date"` // YYYY-MM-DD
	Eye       string `json:"eye" yaml:"eye"`             // OD | OS
	ScanType  string `json:"scan_type" yaml:"scan_type"`
	Notes     string `json:"notes,omitempty" yaml:"notes"`
}
