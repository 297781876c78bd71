// Package handler provides HTTP request handlers for WirePool.
//
// This package implements the HTTP API endpoints for session
// brokering, node listing, metrics reporting, and the event stream:
//
//   - handler.go: Handler wiring, JSON envelope, error mapping
//   - session.go: Connect, disconnect, status, metrics endpoints
//   - nodes.go: Node catalog listing
//   - events.go: SSE event stream
//   - health.go: Liveness and readiness
//   - types.go: Wire types
package handler
