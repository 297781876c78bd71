package confloader

import (
	"os"
	"path/filepath"
	"testing"
)

type testConfig struct {
	Server struct {
		HTTP struct {
			Address string `koanf:"address"`
			Enabled bool   `koanf:"enabled"`
		} `koanf:"http"`
	} `koanf:"server"`
	Session struct {
		ConnectDeadline string `koanf:"connect_deadline"`
	} `koanf:"session"`
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wirepool.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http:
    address: "127.0.0.1:7080"
    enabled: true
session:
  connect_deadline: "45s"
`)

	var cfg testConfig
	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HTTP.Address != "127.0.0.1:7080" {
		t.Errorf("address = %q, want 127.0.0.1:7080", cfg.Server.HTTP.Address)
	}
	if !cfg.Server.HTTP.Enabled {
		t.Error("enabled = false, want true")
	}
	if cfg.Session.ConnectDeadline != "45s" {
		t.Errorf("connect_deadline = %q, want 45s", cfg.Session.ConnectDeadline)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http:
    address: "127.0.0.1:7080"
`)
	t.Setenv("WIREPOOL_SERVER_HTTP_ADDRESS", "0.0.0.0:9090")

	var cfg testConfig
	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HTTP.Address != "0.0.0.0:9090" {
		t.Errorf("address = %q, want env value 0.0.0.0:9090", cfg.Server.HTTP.Address)
	}
}

func TestLoad_CustomEnvPrefix(t *testing.T) {
	t.Setenv("BROKER_SESSION_CONNECT_DEADLINE", "90s")

	var cfg testConfig
	l := NewLoader(WithEnvPrefix("BROKER_"))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Session.ConnectDeadline != "90s" {
		t.Errorf("connect_deadline = %q, want 90s", cfg.Session.ConnectDeadline)
	}
}

func TestLoad_KeepsTargetDefaults(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http:
    enabled: true
`)

	var cfg testConfig
	cfg.Server.HTTP.Address = "127.0.0.1:7080"

	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.HTTP.Address != "127.0.0.1:7080" {
		t.Errorf("address = %q, want untouched default", cfg.Server.HTTP.Address)
	}
	if !cfg.Server.HTTP.Enabled {
		t.Error("enabled = false, want file value true")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	l := NewLoader(WithConfigFile(filepath.Join(t.TempDir(), "absent.yaml")))
	if err := l.Load(&cfg); err == nil {
		t.Fatal("Load with missing file succeeded, want error")
	}
}

func TestSet_OverridesEverySource(t *testing.T) {
	path := writeConfigFile(t, `
server:
  http:
    address: "127.0.0.1:7080"
`)
	t.Setenv("WIREPOOL_SERVER_HTTP_ADDRESS", "0.0.0.0:9090")

	var cfg testConfig
	l := NewLoader(WithConfigFile(path))
	if err := l.Load(&cfg); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Set(map[string]any{"server.http.address": "10.0.0.1:7443"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if got := l.Get("server.http.address"); got != "10.0.0.1:7443" {
		t.Errorf("Get = %v, want flag override 10.0.0.1:7443", got)
	}
}

func TestGet_UnknownKey(t *testing.T) {
	l := NewLoader()
	if got := l.Get("no.such.key"); got != nil {
		t.Errorf("Get unknown key = %v, want nil", got)
	}
}
