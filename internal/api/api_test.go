package api_test

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nyameri/octreport/internal/alerts"
	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/analysis/analysistest"
	"github.com/nyameri/octreport/internal/api"
	"github.com/nyameri/octreport/internal/config"
	"github.com/nyameri/octreport/internal/store"
)

// --- test helpers -----------------------------------------------------------

func newStore(analyses ...*analysis.Analysis) *store.Store {
	st := store.New()
	for _, a := range analyses {
		st.Put(a)
	}
	return st
}

func newHandler(analyses ...*analysis.Analysis) http.Handler {
	return api.New(newStore(analyses...), api.Options{})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth_EmptyStore(t *testing.T) {
	rr := get(t, newHandler(), "/api/v1/health")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.State != "unknown" || resp.SourceCount != 0 {
		t.Errorf("got %+v, want unknown with 0 sources", resp)
	}
}

func TestHealth_States(t *testing.T) {
	tests := []struct {
		name     string
		analyses []*analysis.Analysis
		want     string
	}{
		{"all normal", []*analysis.Analysis{analysistest.Build("a"), analysistest.Build("b")}, "ok"},
		{"one thinned", []*analysis.Analysis{analysistest.Build("a"), analysistest.BuildThinned("b")}, "attention"},
		{"one failed", []*analysis.Analysis{analysistest.BuildThinned("a"), analysistest.BuildFailed("b")}, "failed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var resp api.HealthResponse
			decode(t, get(t, newHandler(tc.analyses...), "/api/v1/health"), &resp)
			if resp.State != tc.want {
				t.Errorf("state: got %q, want %q", resp.State, tc.want)
			}
			if resp.SourceCount != len(tc.analyses) {
				t.Errorf("source_count: got %d", resp.SourceCount)
			}
		})
	}
}

func TestHealth_LayerCounts(t *testing.T) {
	var resp api.HealthResponse
	decode(t, get(t, newHandler(analysistest.Build("a"), analysistest.BuildThinned("b")), "/api/v1/health"), &resp)
	if resp.Layers.Total != 12 || resp.Layers.Thinned != 1 || resp.Layers.Normal != 11 {
		t.Errorf("layers: got %+v", resp.Layers)
	}
	if resp.NormalCount != 1 || resp.AttentionCount != 1 {
		t.Errorf("counts: got %+v", resp)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHandler(analysistest.Build("od"))
	tests := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/health"},
		{http.MethodDelete, "/api/v1/analyses"},
		{http.MethodPost, "/api/v1/analyses/od"},
		{http.MethodGet, "/api/v1/analyses/od/report"},
		{http.MethodGet, "/api/v1/compare"},
		{http.MethodPut, "/api/v1/alerts"},
		{http.MethodPost, "/metrics"},
	}
	for _, tc := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: got %d, want 405", tc.method, tc.path, rr.Code)
		}
	}
}

// --- /api/v1/analyses -------------------------------------------------------

func TestListAnalyses(t *testing.T) {
	rr := get(t, newHandler(analysistest.Build("os"), analysistest.BuildThinned("od")), "/api/v1/analyses")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var list []api.SummaryResponse
	decode(t, rr, &list)
	if len(list) != 2 {
		t.Fatalf("len: got %d, want 2", len(list))
	}
	if list[0].SourceID != "od" || list[1].SourceID != "os" {
		t.Errorf("order: got %s, %s", list[0].SourceID, list[1].SourceID)
	}
	if list[0].Counts.Thinned != 1 || list[0].UpdatedAt == "" {
		t.Errorf("summary: got %+v", list[0])
	}
}

func TestListAnalyses_EmptyIsArray(t *testing.T) {
	rr := get(t, newHandler(), "/api/v1/analyses")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("body: got %s, want []", got)
	}
}

func TestGetAnalysis(t *testing.T) {
	rr := get(t, newHandler(analysistest.Build("od")), "/api/v1/analyses/od")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var m map[string]any
	decode(t, rr, &m)
	if m["source_id"] != "od" {
		t.Errorf("source_id: got %v", m["source_id"])
	}
	if _, ok := m["updated_at"]; !ok {
		t.Error("updated_at missing")
	}
	if rows, _ := m["comparison"].([]any); len(rows) != 6 {
		t.Errorf("comparison rows: got %d, want 6", len(rows))
	}
}

func TestGetAnalysis_NotFound(t *testing.T) {
	for _, path := range []string{"/api/v1/analyses/nope", "/api/v1/analyses/nope/comparison", "/api/v1/analyses/od/unknown"} {
		rr := get(t, newHandler(analysistest.Build("od")), path)
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: got %d, want 404", path, rr.Code)
		}
	}
}

func TestComparison(t *testing.T) {
	rr := get(t, newHandler(analysistest.BuildThinned("od")), "/api/v1/analyses/od/comparison")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var resp api.ComparisonResponse
	decode(t, rr, &resp)
	if len(resp.Rows) != 6 || resp.Summary.Thinned != 1 {
		t.Fatalf("got %+v", resp)
	}
	if resp.Rows[0].Band != "outside" || resp.Rows[1].Band != "within" {
		t.Errorf("bands: got %q, %q", resp.Rows[0].Band, resp.Rows[1].Band)
	}
}

func TestComparison_FailedAnalysis(t *testing.T) {
	rr := get(t, newHandler(analysistest.BuildFailed("od")), "/api/v1/analyses/od/comparison")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", rr.Code)
	}
}

// --- thickness map ----------------------------------------------------------

func TestThicknessMap(t *testing.T) {
	h := api.New(newStore(analysistest.Build("od")), api.Options{
		ThicknessMap: config.ThicknessMapConfig{Size: 8, StdUM: 15, Seed: 3},
	})

	rr := get(t, h, "/api/v1/analyses/od/thickness-map")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	var m analysis.Map
	decode(t, rr, &m)
	if m.Size != 8 || len(m.Values) != 8 || m.StdUM != 15 {
		t.Errorf("map: size %d rows %d std %v", m.Size, len(m.Values), m.StdUM)
	}

	rr = get(t, h, "/api/v1/analyses/od/thickness-map?size=3&seed=9")
	decode(t, rr, &m)
	if m.Size != 3 {
		t.Errorf("size override: got %d", m.Size)
	}

	// Same seed, same map.
	var a, b analysis.Map
	decode(t, get(t, h, "/api/v1/analyses/od/thickness-map?size=4&seed=11"), &a)
	decode(t, get(t, h, "/api/v1/analyses/od/thickness-map?size=4&seed=11"), &b)
	if a.Values[2][3] != b.Values[2][3] {
		t.Error("seeded maps differ")
	}
}

func TestThicknessMap_BadParams(t *testing.T) {
	h := newHandler(analysistest.Build("od"))
	for _, q := range []string{"size=0", "size=1001", "size=abc", "seed=-1"} {
		rr := get(t, h, "/api/v1/analyses/od/thickness-map?"+q)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, rr.Code)
		}
	}
}

// --- report -----------------------------------------------------------------

func TestReport_DefaultForm(t *testing.T) {
	rr := post(t, newHandler(analysistest.Build("od")), "/api/v1/analyses/od/report", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "oct_report_PT-001.pdf") {
		t.Errorf("Content-Disposition: got %q", cd)
	}
	if !bytes.HasPrefix(rr.Body.Bytes(), []byte("%PDF-")) {
		t.Error("body is not a PDF")
	}
}

func TestReport_CustomForm(t *testing.T) {
	body := `{
		"patient_id": "PT-2023-001", "patient_name": "John Doe", "gender": "Female",
		"scan_date": "2025-09-06", "eye": "OS (Left)", "scan_type": "Widefield",
		"diagnosis": "Dry AMD", "follow_up_months": 6
	}`
	rr := post(t, newHandler(analysistest.Build("od")), "/api/v1/analyses/od/report", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "oct_report_PT-2023-001.pdf") {
		t.Errorf("Content-Disposition: got %q", cd)
	}
}

func TestReport_InvalidForm(t *testing.T) {
	rr := post(t, newHandler(analysistest.Build("od")), "/api/v1/analyses/od/report",
		`{"gender": "X", "follow_up_months": 30}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
	var resp struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	decode(t, rr, &resp)
	if len(resp.Details) != 2 {
		t.Errorf("details: got %v, want gender and follow-up", resp.Details)
	}
}

func TestReport_UnknownField(t *testing.T) {
	rr := post(t, newHandler(analysistest.Build("od")), "/api/v1/analyses/od/report", `{"colour": "blue"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rr.Code)
	}
}

func TestReport_FailedAnalysis(t *testing.T) {
	rr := post(t, newHandler(analysistest.BuildFailed("od")), "/api/v1/analyses/od/report", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status: got %d, want 409", rr.Code)
	}
}

// --- /api/v1/compare --------------------------------------------------------

func TestCompare(t *testing.T) {
	body := `{
		"measurements": [{"name": "NFL", "thickness_um": 23.4}, {"name": "RPE", "thickness_um": 10}],
		"reference": [{"name": "RPE", "mean_um": 16, "std_um": 2}, {"name": "NFL", "mean_um": 25, "std_um": 3}]
	}`
	rr := post(t, newHandler(), "/api/v1/compare", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d (%s)", rr.Code, rr.Body.String())
	}
	var resp api.CompareResponse
	decode(t, rr, &resp)
	if len(resp.Results) != 2 || resp.Results[0].Name != "NFL" || resp.Results[1].Name != "RPE" {
		t.Fatalf("results: got %+v", resp.Results)
	}
	if resp.Results[1].Status != "Thinned" || resp.Summary.Thinned != 1 {
		t.Errorf("RPE: got %+v, summary %+v", resp.Results[1], resp.Summary)
	}
}

func TestCompare_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantCode  int
		wantKind  string
		wantLayer string
	}{
		{
			name:      "missing reference",
			body:      `{"measurements": [{"name": "NFL", "thickness_um": 20}], "reference": []}`,
			wantCode:  http.StatusUnprocessableEntity,
			wantKind:  "missing_reference",
			wantLayer: "NFL",
		},
		{
			name:      "zero std",
			body:      `{"measurements": [{"name": "NFL", "thickness_um": 20}], "reference": [{"name": "NFL", "mean_um": 25, "std_um": 0}]}`,
			wantCode:  http.StatusUnprocessableEntity,
			wantKind:  "invalid_reference",
			wantLayer: "NFL",
		},
		{
			name:      "overflowing z-score",
			body:      `{"measurements": [{"name": "NFL", "thickness_um": 1e300}], "reference": [{"name": "NFL", "mean_um": 0, "std_um": 1e-10}]}`,
			wantCode:  http.StatusUnprocessableEntity,
			wantKind:  "non_finite_score",
			wantLayer: "NFL",
		},
		{
			name:     "duplicate reference",
			body:     `{"measurements": [], "reference": [{"name": "NFL", "std_um": 1}, {"name": "NFL", "std_um": 1}]}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "malformed json",
			body:     `{"measurements": [`,
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := post(t, newHandler(), "/api/v1/compare", tc.body)
			if rr.Code != tc.wantCode {
				t.Fatalf("status: got %d, want %d (%s)", rr.Code, tc.wantCode, rr.Body.String())
			}
			if tc.wantKind == "" {
				return
			}
			var resp api.CompareError
			decode(t, rr, &resp)
			if resp.Kind != tc.wantKind || resp.Layer != tc.wantLayer {
				t.Errorf("got %+v", resp)
			}
		})
	}
}

// --- alerts and snapshot ----------------------------------------------------

func TestAlerts_NoEngine(t *testing.T) {
	rr := get(t, newHandler(), "/api/v1/alerts")
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("body: got %s, want []", got)
	}
}

func TestAlerts_FromEngine(t *testing.T) {
	eng := alerts.New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "thinned", Condition: "status == Thinned", Severity: "critical"},
	}})
	a := analysistest.BuildThinned("od")
	eng.Evaluate(a)

	h := api.New(newStore(a), api.Options{Alerts: eng})
	var list []alerts.Alert
	decode(t, get(t, h, "/api/v1/alerts"), &list)
	if len(list) != 1 || list[0].RuleName != "thinned" {
		t.Fatalf("alerts: got %+v", list)
	}

	var health api.HealthResponse
	decode(t, get(t, h, "/api/v1/health"), &health)
	if health.AlertCount != 1 {
		t.Errorf("alert_count: got %d, want 1", health.AlertCount)
	}
}

func TestSnapshot_UnencodableIsServerError(t *testing.T) {
	bad := analysistest.Build("od")
	bad.Comparison[0].ZScore = math.Inf(1)

	rr := get(t, newHandler(bad), "/api/v1/snapshot")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rr.Code)
	}
	var resp map[string]any
	decode(t, rr, &resp)
	if resp["error"] == nil {
		t.Errorf("body: got %v, want error message", resp)
	}
}

func TestSnapshot(t *testing.T) {
	rr := get(t, newHandler(analysistest.Build("od"), analysistest.BuildFailed("os")), "/api/v1/snapshot")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var m map[string]any
	decode(t, rr, &m)
	if m["generated_at"] == "" || m["generated_at"] == nil {
		t.Error("generated_at missing")
	}
	list, _ := m["analyses"].([]any)
	if len(list) != 2 {
		t.Fatalf("analyses: got %d, want 2", len(list))
	}
	second := list[1].(map[string]any)
	if second["error"] == nil {
		t.Error("failed analysis should carry its error")
	}
}
