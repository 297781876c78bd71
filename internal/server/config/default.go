// Package config defines the server configuration structure.
package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr = "127.0.0.1:7080"

	DefaultConnectDeadline = 10 * time.Second
	DefaultSettleDelay     = 500 * time.Millisecond
	DefaultSelectRetries   = 3

	DefaultConfigDir      = "/var/lib/wirepool-server/configs"
	DefaultAuditDir       = "/var/lib/wirepool-server/audit"
	DefaultAuditRetention = 30 * 24 * time.Hour

	DefaultEventBuffer       = 16
	DefaultHeartbeatInterval = 15 * time.Second

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
		},
		Session: SessionSection{
			ConnectDeadline: DefaultConnectDeadline,
			SettleDelay:     DefaultSettleDelay,
			SelectRetries:   DefaultSelectRetries,
		},
		Storage: StorageSection{
			ConfigDir:      DefaultConfigDir,
			AuditDir:       DefaultAuditDir,
			AuditRetention: DefaultAuditRetention,
		},
		Events: EventsSection{
			Buffer:            DefaultEventBuffer,
			HeartbeatInterval: DefaultHeartbeatInterval,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
