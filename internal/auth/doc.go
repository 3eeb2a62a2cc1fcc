// Package auth enforces API key authentication on the HTTP API and the gRPC
// health service.
//
// Both transports share the same rule: when mode is "apikey" and a key is
// configured, the request must carry that key in the configured header (HTTP)
// or metadata key (gRPC). Any other mode, or an empty key, lets every request
// through.
package auth
