// Package main provides the entry point for wirepool-server.
//
// The server is the WirePool session broker:
//
//   - HTTP/HTTPS API for session brokering and node listing
//   - SSE event stream for session lifecycle notifications
//   - Background sweeps for node health and load telemetry
//   - Prometheus metrics exposition
//
// Usage:
//
//	wirepool-server [flags]
//	wirepool-server --config /path/to/config.yaml
//
// The server loads configuration, initializes infrastructure components,
// and starts the HTTP listener.
package main
