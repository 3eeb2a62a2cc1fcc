// Package config loads the octreport service configuration (octreport.yaml).
//
// Top-level sections:
//   - Server: http_port (default 8080), grpc_port (default 50051, 0 disables
//     the gRPC health listener), broadcast_interval (default 5s), auth
//   - Data: normative table path, watch toggle, poll_interval for remote
//     sources, and the list of sources (id, layers path or URL, optional
//     scans and normative override, auth, tls)
//   - ThicknessMap: size, std_um and seed of the simulated thickness map
//   - Report: footer caption printed on generated PDF reports
//   - Alerts: rules and webhook targets
//
// Secrets never live in the file: AuthConfig and WebhookConfig name the
// environment variables that hold them, resolved by Key(), Token(),
// Password() and URL().
//
// Load(path) applies defaults before unmarshalling, then validates and
// reports every problem at once.
package config
