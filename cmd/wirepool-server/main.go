// Package main provides the entry point for wirepool-server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/wirepool/wirepool-go/internal/audit"
	"github.com/wirepool/wirepool-go/internal/configstore"
	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/internal/core/service"
	"github.com/wirepool/wirepool-go/internal/credential"
	"github.com/wirepool/wirepool-go/internal/eventbus"
	"github.com/wirepool/wirepool-go/internal/infra/confloader"
	"github.com/wirepool/wirepool-go/internal/infra/shutdown"
	"github.com/wirepool/wirepool-go/internal/probe"
	"github.com/wirepool/wirepool-go/internal/scheduler"
	"github.com/wirepool/wirepool-go/internal/server/config"
	"github.com/wirepool/wirepool-go/internal/server/httpserver"
	"github.com/wirepool/wirepool-go/internal/telemetry/logger"
	"github.com/wirepool/wirepool-go/internal/telemetry/metric"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("wirepool-server %s (commit: %s, built: %s)\n", version, commit, buildTime)
		return nil
	}

	// Load configuration
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting wirepool-server",
		"version", version,
		"commit", commit,
		"config", *configFile,
		"nodes", len(cfg.Nodes))

	// Metrics registry
	reg := metric.NewRegistry()

	// Event bus
	bus := eventbus.New(eventbus.Config{
		Buffer:            cfg.Events.Buffer,
		HeartbeatInterval: cfg.Events.HeartbeatInterval,
		OnDrop:            reg.EventsDropped.Inc,
	})

	// Credential issuer
	issuer, err := credential.NewIssuer(credential.Config{
		AddressCIDR:     cfg.Credential.AddressCIDR,
		DNS:             cfg.Credential.DNS,
		AllowedIPs:      cfg.Credential.AllowedIPs,
		KeepaliveSec:    cfg.Credential.KeepaliveSec,
		UsePresharedKey: cfg.Credential.UsePresharedKey,
	})
	if err != nil {
		return fmt.Errorf("init credential issuer: %w", err)
	}

	// Rendered config store
	store, err := configstore.NewFileStore(cfg.Storage.ConfigDir)
	if err != nil {
		return fmt.Errorf("init config store: %w", err)
	}

	// Audit sinks
	auditSink, badgerSink, err := initAudit(cfg, log)
	if err != nil {
		return fmt.Errorf("init audit: %w", err)
	}

	// Node directory, seeded from config
	directory := service.NewNodeDirectory()
	for _, spec := range cfg.Nodes {
		node := &domain.ServerNode{
			ID:          spec.ID,
			Name:        spec.Name,
			Address:     spec.Address,
			PublicKey:   spec.PublicKey,
			Region:      spec.Region,
			IsPremium:   spec.Premium,
			Active:      true,
			MaxCapacity: spec.Capacity,
		}
		if err := directory.AddNode(node); err != nil {
			return fmt.Errorf("seed node %s: %w", spec.ID, err)
		}
	}

	// Session orchestrator
	orch := service.NewSessionOrchestrator(
		service.OrchestratorConfig{
			ConnectDeadline: cfg.Session.ConnectDeadline,
			SettleDelay:     cfg.Session.SettleDelay,
			SelectRetries:   cfg.Session.SelectRetries,
		},
		directory,
		issuer,
		store,
		nil, // no tunnel provisioner: settle is simulated
		auditSink,
		bus,
		service.WithInstrumentation(reg),
	)

	// Admission gate
	gate := service.NewAdmissionGate(admissionLimits(cfg))

	// Broker state collector
	reg.Prometheus().MustRegister(metric.NewCollector(&brokerStats{
		orch:      orch,
		directory: directory,
		bus:       bus,
	}))

	// Background sweeps
	sweeps := scheduler.NewSweeps(
		scheduler.SweepConfig{
			HealthInterval:   cfg.Sweep.HealthInterval,
			LoadInterval:     cfg.Sweep.LoadInterval,
			OverloadInterval: cfg.Sweep.OverloadInterval,
			ProbeTimeout:     cfg.Sweep.ProbeTimeout,
		},
		directory,
		orch,
		&probe.TCPProbe{Timeout: cfg.Sweep.ProbeTimeout},
		bus,
		log,
	)
	tasks := append(sweeps.Tasks(), scheduler.Task{
		Name:     "gate-prune",
		Interval: 10 * time.Minute,
		Run: func(context.Context) error {
			gate.Prune()
			return nil
		},
	})
	sched := scheduler.New(log, tasks, scheduler.WithRunHook(
		func(task string, d time.Duration, err error) {
			reg.SweepDuration.WithLabelValues(task).Observe(d.Seconds())
		},
	))
	sched.Start()

	// HTTP server
	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Orchestrator: orch,
		Directory:    directory,
		Gate:         gate,
		Events:       bus,
		Metrics:      reg,
		Logger:       log,
		APIToken:     cfg.Security.APIToken,
	})
	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router)

	// Config file watcher for runtime log level changes
	watcher, err := startConfigWatch(*configFile, log)
	if err != nil {
		log.Warn("config watch disabled", "error", err)
	}

	// Graceful shutdown: registration order is startup order, release
	// runs in reverse.
	sd := shutdown.New(30*time.Second, log)
	if badgerSink != nil {
		sd.Register("audit store", func(context.Context) error {
			return badgerSink.Close()
		})
	}
	sd.Register("event bus", func(context.Context) error {
		bus.Close()
		return nil
	})
	sd.Register("background sweeps", func(context.Context) error {
		sched.Stop()
		return nil
	})
	if watcher != nil {
		sd.Register("config watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}
	sd.Register("http server", func(ctx context.Context) error {
		return httpServer.Shutdown(ctx)
	})

	// Start HTTP server in goroutine
	go func() {
		log.Info("HTTP server listening", "addr", cfg.Server.HTTP.Addr)

		var err error
		if cfg.Server.HTTP.TLSCertFile != "" && cfg.Server.HTTP.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	log.Info("broker started, press Ctrl+C to stop")
	if err := sd.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("broker stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// initLogger initializes the structured logger.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	logger.SetDefault(log)
	return log, nil
}

// initAudit builds the audit sink chain. The log sink is always
// present; the Badger sink is added when an audit directory is
// configured.
func initAudit(cfg *config.ServerConfig, log logger.Logger) (service.AuditSink, *audit.BadgerSink, error) {
	logSink := audit.NewLogSink(log)

	if cfg.Storage.AuditDir == "" {
		return logSink, nil, nil
	}

	badgerSink, err := audit.NewBadgerSink(audit.BadgerConfig{
		Dir:       cfg.Storage.AuditDir,
		Retention: cfg.Storage.AuditRetention,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	return audit.MultiSink{logSink, badgerSink}, badgerSink, nil
}

// admissionLimits maps the config overrides onto the default limits.
func admissionLimits(cfg *config.ServerConfig) map[string]service.LimitSpec {
	specs := service.DefaultLimits()
	if n := cfg.Admission.ConnectPerMinute; n > 0 {
		specs[service.LimitConnect] = service.LimitSpec{Window: time.Minute, MaxCount: n}
	}
	if n := cfg.Admission.GenericPerMinute; n > 0 {
		specs[service.LimitGeneric] = service.LimitSpec{Window: time.Minute, MaxCount: n}
	}
	if n := cfg.Admission.AccountPerMinute; n > 0 {
		specs[service.LimitAccount] = service.LimitSpec{Window: time.Minute, MaxCount: n}
	}
	return specs
}

// startConfigWatch reloads the log level when the config file changes.
func startConfigWatch(configFile string, log logger.Logger) (*confloader.Watcher, error) {
	if configFile == "" {
		return nil, nil
	}

	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(path string) {
		loader := confloader.NewLoader(confloader.WithConfigFile(configFile))
		cfg := config.Default()
		if err := loader.Load(cfg); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})
	watcher.StartAsync()

	return watcher, nil
}

// brokerStats adapts the orchestrator, directory and event bus to the
// metric collector's stats surface.
type brokerStats struct {
	orch      *service.SessionOrchestrator
	directory *service.NodeDirectory
	bus       *eventbus.Bus
}

func (b *brokerStats) ActiveSessions() int {
	return b.orch.ActiveSessionCount()
}

func (b *brokerStats) OnlineNodes() int {
	return len(b.directory.ListAvailable(nil))
}

func (b *brokerStats) OccupiedSlots() int {
	total := 0
	for _, n := range b.directory.Snapshot() {
		total += n.CurrentOccupancy
	}
	return total
}

func (b *brokerStats) NodeLoads() map[string]int {
	loads := make(map[string]int)
	for _, n := range b.directory.Snapshot() {
		loads[n.ID] = n.CurrentLoad
	}
	return loads
}

func (b *brokerStats) EventSubscribers() int {
	return b.bus.SubscriberCount()
}
