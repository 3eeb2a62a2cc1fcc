// Package mcp exposes the normative comparator and the analysis store as MCP
// (Model Context Protocol) tools for AI assistants.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/compare"
	"github.com/nyameri/octreport/internal/store"
	"github.com/nyameri/octreport/pkg/types"
)

// Server wraps the analysis store and exposes it as MCP tools.
type Server struct {
	server *gomcp.Server
	store  *store.Store
}

// NewServer creates an MCP server reading from st.
func NewServer(st *store.Store, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{store: st}
	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "octreport", Version: version},
		nil,
	)
	s.registerTools()
	return s
}

// Run serves on stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying server, used by tests to attach in-memory
// transports.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type compareInput struct {
	Measurements []types.LayerMeasurement   `json:"measurements" jsonschema:"measured layer thicknesses in micrometres, in display order"`
	Reference    []types.NormativeReference `json:"reference" jsonschema:"normative mean and standard deviation per layer name"`
}

type compareOutput struct {
	Results []types.ComparisonResult `json:"results"`
	Summary compare.Summary          `json:"summary"`
}

type listAnalysesInput struct{}

type analysisSummary struct {
	SourceID         string          `json:"source_id"`
	AnalysisID       string          `json:"analysis_id"`
	UpdatedAt        string          `json:"updated_at"`
	ScanDate         string          `json:"scan_date,omitempty"`
	Eye              string          `json:"eye,omitempty"`
	TotalThicknessUM float64         `json:"total_thickness_um"`
	QualityScore     float64         `json:"quality_score"`
	QualityGrade     string          `json:"quality_grade"`
	Counts           compare.Summary `json:"counts"`
	Error            string          `json:"error,omitempty"`
}

type listAnalysesOutput struct {
	Analyses []analysisSummary `json:"analyses"`
	Count    int               `json:"count"`
}

type getAnalysisInput struct {
	SourceID string `json:"source_id" jsonschema:"the source id as configured, e.g. od-2025-09-06"`
}

type getAnalysisOutput struct {
	Summary    analysisSummary          `json:"summary"`
	Layers     []types.Layer            `json:"layers"`
	Comparison []types.ComparisonResult `json:"comparison"`
	Findings   []analysis.Finding       `json:"findings"`
	Clinical   string                   `json:"clinical_summary"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "compare_layers",
		Description: "Compare measured retinal layer thicknesses against a normative reference. Returns a z-score and Normal/Thinned/Abnormal status per layer.",
	}, s.handleCompare)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "list_analyses",
		Description: "List the latest analysis of every configured OCT source with status counts and quality.",
	}, s.handleListAnalyses)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_analysis",
		Description: "Get the full analysis of one source: layers, normative comparison, findings and a clinical summary.",
	}, s.handleGetAnalysis)
}

// --- Tool handlers ---

func (s *Server) handleCompare(_ context.Context, _ *gomcp.CallToolRequest, input compareInput) (*gomcp.CallToolResult, compareOutput, error) {
	ref := make(map[string]types.NormativeReference, len(input.Reference))
	for _, r := range input.Reference {
		if _, dup := ref[r.Name]; dup {
			return errorResult(fmt.Sprintf("duplicate reference for layer %q", r.Name)), compareOutput{}, nil
		}
		if math.IsInf(r.MeanUM, 0) || math.IsNaN(r.MeanUM) || math.IsInf(r.StdUM, 0) {
			return errorResult(fmt.Sprintf("reference for layer %q: mean_um and std_um must be finite", r.Name)), compareOutput{}, nil
		}
		ref[r.Name] = r
	}

	results, err := compare.Compare(input.Measurements, ref)
	if err == nil {
		err = compare.CheckFinite(results)
	}
	if err != nil {
		return errorResult(describeCompareError(err)), compareOutput{}, nil
	}
	return nil, compareOutput{Results: results, Summary: compare.Summarize(results)}, nil
}

func (s *Server) handleListAnalyses(_ context.Context, _ *gomcp.CallToolRequest, _ listAnalysesInput) (*gomcp.CallToolResult, listAnalysesOutput, error) {
	entries := s.store.List()
	out := listAnalysesOutput{
		Analyses: make([]analysisSummary, len(entries)),
		Count:    len(entries),
	}
	for i, e := range entries {
		out.Analyses[i] = toSummary(e)
	}
	return nil, out, nil
}

func (s *Server) handleGetAnalysis(_ context.Context, _ *gomcp.CallToolRequest, input getAnalysisInput) (*gomcp.CallToolResult, getAnalysisOutput, error) {
	if input.SourceID == "" {
		return errorResult("source_id is required"), getAnalysisOutput{}, nil
	}
	e, ok := s.store.Get(input.SourceID)
	if !ok {
		return errorResult(fmt.Sprintf("no analysis for source %q", input.SourceID)), getAnalysisOutput{}, nil
	}

	a := e.Analysis
	return nil, getAnalysisOutput{
		Summary:    toSummary(e),
		Layers:     a.Layers,
		Comparison: a.Comparison,
		Findings:   a.Findings,
		Clinical:   analysis.ClinicalSummary(a),
	}, nil
}

// --- helpers ---

func toSummary(e *store.Entry) analysisSummary {
	a := e.Analysis
	s := analysisSummary{
		SourceID:         a.SourceID,
		AnalysisID:       a.ID,
		UpdatedAt:        e.UpdatedAt.UTC().Format(time.RFC3339),
		TotalThicknessUM: a.TotalThicknessUM,
		QualityScore:     a.Quality.Score,
		QualityGrade:     a.Quality.Grade,
		Counts:           a.Counts(),
		Error:            a.Error,
	}
	if a.Scan != nil {
		s.ScanDate = a.Scan.ScanDate
		s.Eye = a.Scan.Eye
	}
	return s
}

func describeCompareError(err error) string {
	var missing *compare.MissingReferenceError
	var invalid *compare.InvalidReferenceError
	var nonFinite *compare.NonFiniteScoreError
	switch {
	case errors.As(err, &missing):
		return fmt.Sprintf("missing_reference: layer %q has no normative reference", missing.Layer)
	case errors.As(err, &invalid):
		return fmt.Sprintf("invalid_reference: layer %q has std_um %g, must be > 0", invalid.Layer, invalid.StdUM)
	case errors.As(err, &nonFinite):
		return fmt.Sprintf("non_finite_score: layer %q z-score overflowed", nonFinite.Layer)
	default:
		return err.Error()
	}
}

// errorResult creates a CallToolResult flagged as an error.
func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
