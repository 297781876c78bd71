// Package httpserver provides the HTTP/HTTPS server for WirePool.
//
// This package implements the broker's HTTP API:
//
//   - server.go: Server lifecycle (listen, TLS, shutdown)
//   - router.go: Route registration and middleware wiring
//   - middleware.go: Request ID, recovery, access log, admission
//   - handler/: Endpoint handlers and wire types
//
// The API serves client session operations under /v1 plus health and
// metrics endpoints.
package httpserver
