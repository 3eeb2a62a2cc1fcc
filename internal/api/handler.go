package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/nyameri/octreport/internal/alerts"
	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/compare"
	"github.com/nyameri/octreport/internal/config"
	"github.com/nyameri/octreport/internal/report"
	"github.com/nyameri/octreport/internal/store"
	"github.com/nyameri/octreport/pkg/types"
)

// maxBodyBytes caps request bodies on POST endpoints.
const maxBodyBytes = 1 << 20

// AlertSource is the read side of the alerts engine.
type AlertSource interface {
	Active() []*alerts.Alert
	FiringCount() int
}

// Options configures the optional parts of the API.
type Options struct {
	// Alerts backs /api/v1/alerts and the alert counts. Nil serves no alerts.
	Alerts AlertSource

	ThicknessMap config.ThicknessMapConfig
	Report       config.ReportConfig
}

// Handler is the HTTP handler for all /api/v1/* endpoints and /metrics.
type Handler struct {
	store *store.Store
	opts  Options
	mux   *http.ServeMux
}

// New creates a Handler wired to st and registers all routes.
func New(st *store.Store, opts Options) http.Handler {
	if opts.ThicknessMap.Size == 0 {
		opts.ThicknessMap.Size = config.DefaultMapSize
	}
	if opts.ThicknessMap.StdUM == 0 {
		opts.ThicknessMap.StdUM = config.DefaultMapStdUM
	}
	h := &Handler{store: st, opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/analyses", h.listAnalyses)
	h.mux.HandleFunc("/api/v1/analyses/", h.analysisRoutes) // subtree: {id}[/sub]
	h.mux.HandleFunc("/api/v1/compare", h.compare)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	entries := h.store.List()
	resp := HealthResponse{SourceCount: len(entries)}
	if h.opts.Alerts != nil {
		resp.AlertCount = h.opts.Alerts.FiringCount()
	}

	for _, e := range entries {
		a := e.Analysis
		counts := a.Counts()
		resp.Layers.Total += counts.Total
		resp.Layers.Normal += counts.Normal
		resp.Layers.Thinned += counts.Thinned
		resp.Layers.Abnormal += counts.Abnormal

		switch {
		case a.Failed():
			resp.FailedCount++
		case counts.Normal < counts.Total:
			resp.AttentionCount++
		default:
			resp.NormalCount++
		}
	}

	switch {
	case len(entries) == 0:
		resp.State = "unknown"
	case resp.FailedCount > 0:
		resp.State = "failed"
	case resp.AttentionCount > 0:
		resp.State = "attention"
	default:
		resp.State = "ok"
	}
	jsonResp(w, http.StatusOK, resp)
}

// listAnalyses returns GET /api/v1/analyses.
func (h *Handler) listAnalyses(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}

	entries := h.store.List()
	out := make([]SummaryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, SummaryResponse{
			Summary:   e.Analysis.Summarize(),
			UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	jsonResp(w, http.StatusOK, out)
}

// analysisRoutes dispatches /api/v1/analyses/{id} and its sub-resources.
func (h *Handler) analysisRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/analyses/")
	if rest == "" {
		h.listAnalyses(w, r)
		return
	}
	id, sub, _ := strings.Cut(rest, "/")

	method := http.MethodGet
	if sub == "report" {
		method = http.MethodPost
	}
	if !allow(w, r, method) {
		return
	}

	e, ok := h.store.Get(id)
	if !ok {
		jsonErr(w, http.StatusNotFound, "analysis not found")
		return
	}

	switch sub {
	case "":
		jsonResp(w, http.StatusOK, toAnalysisResponse(e))
	case "comparison":
		h.comparison(w, e.Analysis)
	case "thickness-map":
		h.thicknessMap(w, r, e.Analysis)
	case "report":
		h.report(w, r, e.Analysis)
	default:
		jsonErr(w, http.StatusNotFound, "not found")
	}
}

// comparison returns GET /api/v1/analyses/{id}/comparison.
func (h *Handler) comparison(w http.ResponseWriter, a *analysis.Analysis) {
	if a.Failed() {
		jsonErr(w, http.StatusConflict, a.Error)
		return
	}
	rows := make([]ComparisonRow, 0, len(a.Comparison))
	for _, c := range a.Comparison {
		rows = append(rows, ComparisonRow{ComparisonResult: c, Band: compare.BandOf(c.ZScore)})
	}
	jsonResp(w, http.StatusOK, ComparisonResponse{
		SourceID: a.SourceID,
		Rows:     rows,
		Summary:  a.Counts(),
	})
}

// thicknessMap returns GET /api/v1/analyses/{id}/thickness-map.
func (h *Handler) thicknessMap(w http.ResponseWriter, r *http.Request, a *analysis.Analysis) {
	size := h.opts.ThicknessMap.Size
	seed := h.opts.ThicknessMap.Seed

	q := r.URL.Query()
	if v := q.Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > config.MaxMapSize {
			jsonErr(w, http.StatusBadRequest, fmt.Sprintf("size must be an integer in [1, %d]", config.MaxMapSize))
			return
		}
		size = n
	}
	if v := q.Get("seed"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "seed must be an unsigned integer")
			return
		}
		seed = n
	}

	m, err := analysis.ThicknessMap(a.TotalThicknessUM, h.opts.ThicknessMap.StdUM, size, analysis.NewRand(seed))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, m)
}

// report returns POST /api/v1/analyses/{id}/report as a PDF. An empty body
// uses the form pre-filled from the analysis.
func (h *Handler) report(w http.ResponseWriter, r *http.Request, a *analysis.Analysis) {
	if a.Failed() {
		jsonErr(w, http.StatusConflict, "analysis failed: "+a.Error)
		return
	}

	form := report.DefaultForm(a)
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&form); err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid form: "+err.Error())
			return
		}
	}
	if err := form.Validate(); err != nil {
		validationErr(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, form, a, report.Options{Footer: h.opts.Report.Footer}); err != nil {
		slog.Error("api: render report", "source", a.SourceID, "err", err)
		jsonErr(w, http.StatusInternalServerError, "render report")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(form.PatientID)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

// compare returns POST /api/v1/compare.
func (h *Handler) compare(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}

	var req CompareRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	ref, err := referenceMap(req.Reference)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := compare.Compare(req.Measurements, ref)
	if err == nil {
		err = compare.CheckFinite(results)
	}
	if err != nil {
		jsonResp(w, http.StatusUnprocessableEntity, toCompareError(err))
		return
	}
	jsonResp(w, http.StatusOK, CompareResponse{Results: results, Summary: compare.Summarize(results)})
}

// alerts returns GET /api/v1/alerts.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	if h.opts.Alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.opts.Alerts.Active())
}

// snapshot returns GET /api/v1/snapshot.
func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.store))
}

// --- helpers ----------------------------------------------------------------

// BuildSnapshot returns every stored analysis with the current time.
func BuildSnapshot(st *store.Store) SnapshotResponse {
	entries := st.List()
	out := make([]AnalysisResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toAnalysisResponse(e))
	}
	return SnapshotResponse{
		Analyses:    out,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func toAnalysisResponse(e *store.Entry) AnalysisResponse {
	return AnalysisResponse{
		Analysis:  e.Analysis,
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// referenceMap keys refs by name, rejecting empty and duplicate names and
// non-finite values.
func referenceMap(refs []types.NormativeReference) (map[string]types.NormativeReference, error) {
	out := make(map[string]types.NormativeReference, len(refs))
	for i, ref := range refs {
		if ref.Name == "" {
			return nil, fmt.Errorf("reference[%d]: name is required", i)
		}
		if _, dup := out[ref.Name]; dup {
			return nil, fmt.Errorf("reference[%d]: duplicate name %q", i, ref.Name)
		}
		if math.IsInf(ref.MeanUM, 0) || math.IsNaN(ref.MeanUM) || math.IsInf(ref.StdUM, 0) {
			return nil, fmt.Errorf("reference[%d] %q: mean_um and std_um must be finite", i, ref.Name)
		}
		out[ref.Name] = ref
	}
	return out, nil
}

// toCompareError maps a comparator error to its 422 body.
func toCompareError(err error) CompareError {
	var missing *compare.MissingReferenceError
	var invalid *compare.InvalidReferenceError
	var nonFinite *compare.NonFiniteScoreError
	switch {
	case errors.As(err, &missing):
		return CompareError{Error: err.Error(), Kind: "missing_reference", Layer: missing.Layer}
	case errors.As(err, &invalid):
		return CompareError{Error: err.Error(), Kind: "invalid_reference", Layer: invalid.Layer}
	case errors.As(err, &nonFinite):
		return CompareError{Error: err.Error(), Kind: "non_finite_score", Layer: nonFinite.Layer}
	default:
		return CompareError{Error: err.Error()}
	}
}

// allow writes 405 and returns false unless r uses method.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// jsonResp encodes v before writing the status so an encoding failure
// becomes a 500 instead of an empty body.
func jsonResp(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("api: encode response", "err", err)
		code = http.StatusInternalServerError
		buf.Reset()
		buf.WriteString(`{"error":"response could not be encoded"}` + "\n")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// validationErr writes 400 listing every problem of a multierror.
func validationErr(w http.ResponseWriter, err error) {
	resp := errorResponse{Error: "invalid form"}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			resp.Details = append(resp.Details, e.Error())
		}
	} else {
		resp.Details = []string{err.Error()}
	}
	jsonResp(w, http.StatusBadRequest, resp)
}
