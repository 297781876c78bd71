// Package config defines the server configuration structure.
package config

import "time"

// ServerConfig is the root configuration for wirepool-server.
type ServerConfig struct {
	Server     ServerSection     `koanf:"server"`
	Session    SessionSection    `koanf:"session"`
	Admission  AdmissionSection  `koanf:"admission"`
	Credential CredentialSection `koanf:"credential"`
	Storage    StorageSection    `koanf:"storage"`
	Sweep      SweepSection      `koanf:"sweep"`
	Events     EventsSection     `koanf:"events"`
	Security   SecuritySection   `koanf:"security"`
	Nodes      []NodeSpec        `koanf:"nodes"`
	Log        LogSection        `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

// SessionSection configures session lifecycle behavior.
type SessionSection struct {
	// ConnectDeadline bounds how long a session may stay in the
	// connecting state before it is timed out.
	ConnectDeadline time.Duration `koanf:"connect_deadline"`

	// SettleDelay is the simulated settle time when no tunnel
	// provisioner is configured.
	SettleDelay time.Duration `koanf:"settle_delay"`

	// SelectRetries is the number of extra node selection attempts
	// after losing a reservation race.
	SelectRetries int `koanf:"select_retries"`
}

// AdmissionSection configures rate limits. Zero values fall back to
// built-in defaults.
type AdmissionSection struct {
	// ConnectPerMinute limits connect attempts per client.
	ConnectPerMinute int `koanf:"connect_per_minute"`

	// GenericPerMinute limits any call per network origin.
	GenericPerMinute int `koanf:"generic_per_minute"`

	// AccountPerMinute limits any call per client account.
	AccountPerMinute int `koanf:"account_per_minute"`
}

// CredentialSection configures issued tunnel credentials.
type CredentialSection struct {
	AddressCIDR     string `koanf:"address_cidr"`
	DNS             string `koanf:"dns"`
	AllowedIPs      string `koanf:"allowed_ips"`
	KeepaliveSec    int    `koanf:"keepalive_sec"`
	UsePresharedKey bool   `koanf:"use_preshared_key"`
}

// StorageSection configures on-disk state.
type StorageSection struct {
	// ConfigDir holds rendered per-session tunnel configurations.
	ConfigDir string `koanf:"config_dir"`

	// AuditDir holds the audit record store. Empty disables the
	// persistent sink (audit records still go to the log).
	AuditDir string `koanf:"audit_dir"`

	// AuditRetention is how long audit records are kept.
	AuditRetention time.Duration `koanf:"audit_retention"`
}

// SweepSection configures background maintenance intervals.
type SweepSection struct {
	HealthInterval   time.Duration `koanf:"health_interval"`
	LoadInterval     time.Duration `koanf:"load_interval"`
	OverloadInterval time.Duration `koanf:"overload_interval"`
	ProbeTimeout     time.Duration `koanf:"probe_timeout"`
}

// EventsSection configures the event stream.
type EventsSection struct {
	// Buffer is the per-subscriber channel capacity.
	Buffer int `koanf:"buffer"`

	// HeartbeatInterval is how often keepalive events are pushed.
	HeartbeatInterval time.Duration `koanf:"heartbeat_interval"`
}

// SecuritySection configures security settings.
type SecuritySection struct {
	// APIToken protects the operator endpoints when set.
	APIToken string `koanf:"api_token"`
}

// NodeSpec describes one server node seeded into the directory at
// startup.
type NodeSpec struct {
	ID        string `koanf:"id"`
	Name      string `koanf:"name"`
	Address   string `koanf:"address"`
	PublicKey string `koanf:"public_key"`
	Region    string `koanf:"region"`
	Premium   bool   `koanf:"premium"`
	Capacity  int    `koanf:"capacity"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
