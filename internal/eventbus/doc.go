// Package eventbus delivers session and telemetry state-change events
// to per-client observer channels.
//
// The bus favors recency over completeness: publishing never blocks,
// and events for a full or absent subscriber are dropped rather than
// queued. A heartbeat is pushed to every subscriber on a fixed
// interval so observers can detect liveness.
package eventbus
