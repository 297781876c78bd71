// Package httpserver provides the HTTP/HTTPS server for WirePool.
package httpserver

import (
	"net/http"

	"github.com/wirepool/wirepool-go/internal/core/service"
	"github.com/wirepool/wirepool-go/internal/server/httpserver/handler"
	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
	"github.com/wirepool/wirepool-go/internal/telemetry/metric"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Orchestrator handles session operations.
	Orchestrator *service.SessionOrchestrator

	// Directory serves the node catalog.
	Directory *service.NodeDirectory

	// Gate is the admission rate limiter. Nil disables admission.
	Gate *service.AdmissionGate

	// Events is the event stream source. Nil disables /v1/events.
	Events handler.EventSource

	// Metrics is the Prometheus registry. Nil disables /metrics and
	// request instrumentation.
	Metrics *metric.Registry

	// Logger for request logging.
	Logger logger.Logger

	// APIToken protects /metrics when non-empty.
	APIToken string
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	h := handler.New(cfg.Orchestrator, cfg.Directory, cfg.Events, log)

	// Middleware chain for business endpoints.
	// Order: Recover -> RequestID -> ClientID -> Instrument -> Admission -> AccessLog -> Handler
	business := []Middleware{
		Recover(log),
		RequestID(),
		ClientID(),
	}
	if cfg.Metrics != nil {
		business = append(business, Instrument(cfg.Metrics))
	}
	if cfg.Gate != nil {
		business = append(business, Admission(cfg.Gate, cfg.Metrics))
	}
	business = append(business, AccessLog(log))
	businessHandler := Chain(h, business...)

	// Health endpoints skip admission and logging noise.
	healthHandler := Chain(h, Recover(log), RequestID())

	// The event stream holds the connection open; skip latency
	// instrumentation but keep admission.
	stream := []Middleware{Recover(log), RequestID(), ClientID()}
	if cfg.Gate != nil {
		stream = append(stream, Admission(cfg.Gate, cfg.Metrics))
	}
	streamHandler := Chain(h, stream...)

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", healthHandler)
	mux.Handle("GET /readyz", healthHandler)

	mux.Handle("POST /v1/connect", businessHandler)
	mux.Handle("GET /v1/status", businessHandler)
	mux.Handle("GET /v1/sessions/{id}", businessHandler)
	mux.Handle("POST /v1/sessions/{id}/disconnect", businessHandler)
	mux.Handle("POST /v1/sessions/{id}/metrics", businessHandler)
	mux.Handle("GET /v1/nodes", businessHandler)

	mux.Handle("GET /v1/events", streamHandler)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(
			cfg.Metrics.Handler(),
			Recover(log),
			APITokenAuth(cfg.APIToken),
		))
	}

	return mux
}
