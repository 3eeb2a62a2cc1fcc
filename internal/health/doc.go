// Package health exposes per-source comparison status through the standard
// gRPC health checking protocol (grpc.health.v1.Health).
//
// Each source is a health service named "octreport.source.<id>". It reports
// SERVING while its latest analysis compared cleanly and NOT_SERVING when the
// comparator failed. The overall service "" becomes SERVING once any analysis
// has been recorded. Load balancers and grpc-health-probe can watch either.
package health
