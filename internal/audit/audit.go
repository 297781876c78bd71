// Package audit provides sinks for the structured audit trail emitted
// by the orchestration core.
//
// Sinks are fire-and-forget: delivery failures are swallowed so the
// calling operation never fails on a broken trail.
package audit

import (
	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
)

// LogSink writes audit records to the structured logger.
type LogSink struct {
	log logger.Logger
}

// NewLogSink creates a logger-backed sink.
func NewLogSink(log logger.Logger) *LogSink {
	return &LogSink{log: log.With("component", "audit")}
}

// Record implements service.AuditSink.
func (s *LogSink) Record(rec domain.AuditRecord) {
	s.log.Info("audit",
		"action", string(rec.Action),
		"client_id", rec.ClientID,
		"session_id", rec.SessionID,
		"node_id", rec.NodeID,
		"outcome", rec.Outcome,
		"detail", rec.Detail,
	)
}

// MultiSink fans records out to several sinks.
type MultiSink []interface {
	Record(domain.AuditRecord)
}

// Record implements service.AuditSink.
func (s MultiSink) Record(rec domain.AuditRecord) {
	for _, sink := range s {
		sink.Record(rec)
	}
}
