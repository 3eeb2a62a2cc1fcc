package dataset

import (
	"fmt"
	"math"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/nyameri/octreport/pkg/types"
)

// NormativeTable is a named set of per-layer population baselines.
type NormativeTable struct {
	Name   string                     `yaml:"name" json:"name"`
	Layers []types.NormativeReference `yaml:"layers" json:"layers"`
}

// Reference returns the table keyed by layer name, the shape the comparator
// consumes.
func (t *NormativeTable) Reference() map[string]types.NormativeReference {
	out := make(map[string]types.NormativeReference, len(t.Layers))
	for _, r := range t.Layers {
		out[r.Name] = r
	}
	return out
}

// LoadNormative reads and validates the normative table at path.
func LoadNormative(path string) (*NormativeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: read normative: %w", err)
	}

	var tbl NormativeTable
	if err := yaml.Unmarshal(data, &tbl); err != nil {
		return nil, fmt.Errorf("dataset: parse normative: %w", err)
	}

	var merr *multierror.Error
	if len(tbl.Layers) == 0 {
		merr = multierror.Append(merr, fmt.Errorf("no layers defined"))
	}
	seen := make(map[string]bool, len(tbl.Layers))
	for i, r := range tbl.Layers {
		if r.Name == "" {
			merr = multierror.Append(merr, fmt.Errorf("layers[%d]: name is required", i))
			continue
		}
		if seen[r.Name] {
			merr = multierror.Append(merr, fmt.Errorf("layers[%d] %q: duplicate name", i, r.Name))
		}
		seen[r.Name] = true
		if math.IsInf(r.MeanUM, 0) || math.IsNaN(r.MeanUM) {
			merr = multierror.Append(merr, fmt.Errorf("layers[%d] %q: mean_um %v is not finite", i, r.Name, r.MeanUM))
		}
		if math.IsInf(r.StdUM, 0) {
			merr = multierror.Append(merr, fmt.Errorf("layers[%d] %q: std_um %v is not finite", i, r.Name, r.StdUM))
		}
	}
	if err := merr.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("dataset: normative: %w", err)
	}
	return &tbl, nil
}
