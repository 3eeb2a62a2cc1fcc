package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Condition is a parsed alert rule condition: "field op value".
type Condition struct {
	Field string
	Op    string
	// Value is the raw right-hand side. Threshold holds it parsed for
	// numeric fields.
	Value     string
	Threshold float64
}

// Alert condition vocabulary.
var (
	// LayerFields are evaluated once per compared layer.
	LayerFields = []string{"z_score", "measured_um", "status"}
	// AnalysisFields are evaluated once per analysis.
	AnalysisFields = []string{"quality_score", "total_thickness_um", "analysis_failed"}

	NumericOps  = []string{"<", "<=", ">", ">=", "==", "!="}
	StatusOps   = []string{"==", "!="}
	StatusNames = []string{"Normal", "Thinned", "Abnormal"}
)

// ParseCondition parses and checks a rule condition against the supported
// fields, operators and status names.
func ParseCondition(s string) (Condition, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return Condition{}, fmt.Errorf("condition %q must be \"field op value\"", s)
	}
	c := Condition{Field: parts[0], Op: parts[1], Value: parts[2]}

	if c.Field == "status" {
		if !slices.Contains(StatusOps, c.Op) {
			return Condition{}, fmt.Errorf("condition %q: status supports %s", s, strings.Join(StatusOps, " "))
		}
		if !slices.Contains(StatusNames, c.Value) {
			return Condition{}, fmt.Errorf("condition %q: unknown status %q: want %s", s, c.Value, strings.Join(StatusNames, "|"))
		}
		return c, nil
	}

	if !slices.Contains(LayerFields, c.Field) && !slices.Contains(AnalysisFields, c.Field) {
		return Condition{}, fmt.Errorf("condition %q: unknown field %q", s, c.Field)
	}
	if !slices.Contains(NumericOps, c.Op) {
		return Condition{}, fmt.Errorf("condition %q: unknown operator %q", s, c.Op)
	}
	v, err := strconv.ParseFloat(c.Value, 64)
	if err != nil {
		return Condition{}, fmt.Errorf("condition %q: %q is not a number", s, c.Value)
	}
	c.Threshold = v
	return c, nil
}
