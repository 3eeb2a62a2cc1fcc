package api

import (
	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/compare"
	"github.com/nyameri/octreport/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok" | "attention" | "failed" | "unknown".
	State          string          `json:"state"`
	SourceCount    int             `json:"source_count"`
	NormalCount    int             `json:"normal_count"`
	AttentionCount int             `json:"attention_count"`
	FailedCount    int             `json:"failed_count"`
	Layers         compare.Summary `json:"layers"`
	AlertCount     int             `json:"alert_count"`
}

// SummaryResponse is one entry in GET /api/v1/analyses.
type SummaryResponse struct {
	analysis.Summary
	UpdatedAt string `json:"updated_at"` // RFC3339
}

// AnalysisResponse is the payload for GET /api/v1/analyses/{id}.
type AnalysisResponse struct {
	*analysis.Analysis
	UpdatedAt string `json:"updated_at"` // RFC3339
}

// ComparisonRow is one layer of GET /api/v1/analyses/{id}/comparison.
type ComparisonRow struct {
	types.ComparisonResult
	Band compare.Band `json:"band"`
}

// ComparisonResponse is the payload for GET /api/v1/analyses/{id}/comparison.
type ComparisonResponse struct {
	SourceID string          `json:"source_id"`
	Rows     []ComparisonRow `json:"rows"`
	Summary  compare.Summary `json:"summary"`
}

// CompareRequest is the body of POST /api/v1/compare.
type CompareRequest struct {
	Measurements []types.LayerMeasurement   `json:"measurements"`
	Reference    []types.NormativeReference `json:"reference"`
}

// CompareResponse is the success payload of POST /api/v1/compare.
type CompareResponse struct {
	Results []types.ComparisonResult `json:"results"`
	Summary compare.Summary          `json:"summary"`
}

// CompareError is the 422 payload of POST /api/v1/compare.
type CompareError struct {
	Error string `json:"error"`
	// Kind is "missing_reference" | "invalid_reference" | "non_finite_score".
	Kind  string `json:"kind"`
	Layer string `json:"layer"`
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket message.
type SnapshotResponse struct {
	Analyses    []AnalysisResponse `json:"analyses"`
	GeneratedAt string             `json:"generated_at"` // RFC3339
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}
