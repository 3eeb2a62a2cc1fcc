package health

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nyameri/octreport/internal/analysis"
)

// ServicePrefix is prepended to the source ID to form its service name.
const ServicePrefix = "octreport.source."

// ServiceName returns the health service name for sourceID.
func ServiceName(sourceID string) string { return ServicePrefix + sourceID }

// Reporter translates analyses into health statuses.
type Reporter struct {
	srv *health.Server
}

// NewReporter returns a Reporter whose overall status starts NOT_SERVING.
func NewReporter() *Reporter {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return &Reporter{srv: srv}
}

// Register installs the health service on s.
func (r *Reporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, r.srv)
}

// Update records the status of a's source.
func (r *Reporter) Update(a *analysis.Analysis) {
	st := healthpb.HealthCheckResponse_SERVING
	if a.Failed() {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	r.srv.SetServingStatus(ServiceName(a.SourceID), st)
	r.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// Shutdown sets every service to NOT_SERVING and ignores further updates.
func (r *Reporter) Shutdown() { r.srv.Shutdown() }
