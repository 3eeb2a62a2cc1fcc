package dataset

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/nyameri/octreport/pkg/types"
)

// LayerExport is the layer segmentation export written by the scanner
// software.
type LayerExport struct {
	ExportedAt   string        `yaml:"exported_at" json:"exported_at"`
	Software     string        `yaml:"software" json:"software"`
	QualityScore float64       `yaml:"quality_score" json:"quality_score"`
	Layers       []types.Layer `yaml:"layers" json:"layers"`
}

// Measurements projects the export's layers onto comparator input, keeping
// their order.
func (e *LayerExport) Measurements() []types.LayerMeasurement {
	out := make([]types.LayerMeasurement, len(e.Layers))
	for i, l := range e.Layers {
		out[i] = l.Measurement()
	}
	return out
}

// ScanExport is the scan list export written by the scanner software.
type ScanExport struct {
	ExportedAt string           `yaml:"exported_at" json:"exported_at"`
	Software   string           `yaml:"software" json:"software"`
	TotalScans int              `yaml:"total_scans" json:"total_scans"`
	Scans      []types.ScanInfo `yaml:"scans" json:"scans"`
}

// Latest returns the most recent scan by scan date, or nil when there are
// none. Ties keep the later entry in the file.
func (e *ScanExport) Latest() *types.ScanInfo {
	var latest *types.ScanInfo
	for i := range e.Scans {
		s := &e.Scans[i]
		if latest == nil || s.ScanDate >= latest.ScanDate {
			latest = s
		}
	}
	return latest
}

// LoadLayers reads and validates the layer export at path.
func LoadLayers(path string) (*LayerExport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open layers: %w", err)
	}
	defer f.Close()
	return DecodeLayers(f)
}

// DecodeLayers decodes and validates a layer export from r.
func DecodeLayers(r io.Reader) (*LayerExport, error) {
	var exp LayerExport
	if err := yaml.NewDecoder(r).Decode(&exp); err != nil {
		return nil, fmt.Errorf("dataset: parse layers: %w", err)
	}
	if err := validateLayers(&exp); err != nil {
		return nil, fmt.Errorf("dataset: layers: %w", err)
	}
	return &exp, nil
}

// LoadScans reads and validates the scan export at path.
func LoadScans(path string) (*ScanExport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read scans: %w", err)
	}

	var exp ScanExport
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("dataset: parse scans: %w", err)
	}
	if err := validateScans(&exp); err != nil {
		return nil, fmt.Errorf("dataset: scans: %w", err)
	}
	return &exp, nil
}

// MaxThicknessUM bounds a single layer thickness. It rejects infinities and
// keeps the summed total finite.
const MaxThicknessUM = 1e6

// validateLayers checks structural constraints on a layer export and reports
// all violations together.
func validateLayers(exp *LayerExport) error {
	var merr *multierror.Error
	if exp.QualityScore < 0 || exp.QualityScore > 1 || math.IsNaN(exp.QualityScore) {
		merr = multierror.Append(merr, fmt.Errorf("quality_score %v is outside [0, 1]", exp.QualityScore))
	}
	seen := make(map[string]int, len(exp.Layers))
	for i, l := range exp.Layers {
		if l.Name == "" {
			merr = multierror.Append(merr, fmt.Errorf("layers[%d]: name is required", i))
			continue
		}
		if prev, dup := seen[l.Name]; dup {
			merr = multierror.Append(merr, fmt.Errorf("layers[%d] %q: duplicate of layers[%d]", i, l.Name, prev))
		} else {
			seen[l.Name] = i
		}
		switch {
		case l.ThicknessUM < 0 || math.IsNaN(l.ThicknessUM):
			merr = multierror.Append(merr, fmt.Errorf("layers[%d] %q: thickness %v must be >= 0", i, l.Name, l.ThicknessUM))
		case l.ThicknessUM > MaxThicknessUM:
			merr = multierror.Append(merr, fmt.Errorf("layers[%d] %q: thickness %v exceeds %v µm", i, l.Name, l.ThicknessUM, MaxThicknessUM))
		}
	}
	return merr.ErrorOrNil()
}

func validateScans(exp *ScanExport) error {
	var merr *multierror.Error
	for i, s := range exp.Scans {
		switch s.Eye {
		case "OD", "OS":
		default:
			merr = multierror.Append(merr, fmt.Errorf("scans[%d] id=%d: unknown eye %q: want OD|OS", i, s.ID, s.Eye))
		}
		if _, err := time.Parse(time.DateOnly, s.ScanDate); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("scans[%d] id=%d: scan_date %q is not YYYY-MM-DD", i, s.ID, s.ScanDate))
		}
	}
	return merr.ErrorOrNil()
}
