// Package api implements the HTTP REST API for octreport serve.
//
// New(store, opts) returns an http.Handler that serves:
//
//	GET  /api/v1/health                         overall state, per-state source counts
//	GET  /api/v1/analyses                       all analyses ([]SummaryResponse)
//	GET  /api/v1/analyses/{id}                  one analysis; 404 if unknown
//	GET  /api/v1/analyses/{id}/comparison       comparison rows with display band
//	GET  /api/v1/analyses/{id}/thickness-map    simulated map (?size=, ?seed=)
//	POST /api/v1/analyses/{id}/report           report form -> application/pdf
//	POST /api/v1/compare                        ad-hoc comparison
//	GET  /api/v1/alerts                         firing and recently resolved alerts
//	GET  /api/v1/snapshot                       all analyses + generated_at
//	GET  /metrics                               Prometheus text exposition
//
// Errors are JSON {"error": ...}. Comparator failures on /compare are 422
// with the failure kind and the offending layer. Methods other than the one
// listed return 405.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
