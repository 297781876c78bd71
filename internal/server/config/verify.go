// Package config defines the server configuration structure.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyCredential(&cfg.Credential); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	return verifyNodes(cfg.Nodes)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr == "" {
		return errors.New("server.http.addr is required")
	}
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http: tls_cert_file and tls_key_file must be set together")
	}
	return nil
}

func verifyCredential(cfg *CredentialSection) error {
	if cfg.AddressCIDR != "" {
		if _, _, err := net.ParseCIDR(cfg.AddressCIDR); err != nil {
			return fmt.Errorf("credential.address_cidr: %w", err)
		}
	}
	if cfg.DNS != "" && net.ParseIP(cfg.DNS) == nil {
		return fmt.Errorf("credential.dns: %q is not an IP address", cfg.DNS)
	}
	if cfg.KeepaliveSec < 0 {
		return errors.New("credential.keepalive_sec must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.ConfigDir == "" {
		return errors.New("storage.config_dir is required")
	}
	if err := os.MkdirAll(cfg.ConfigDir, 0o700); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	if cfg.AuditDir != "" {
		if err := os.MkdirAll(cfg.AuditDir, 0o700); err != nil {
			return fmt.Errorf("cannot create audit directory: %w", err)
		}
	}
	return nil
}

func verifyNodes(nodes []NodeSpec) error {
	seen := make(map[string]bool, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			return fmt.Errorf("nodes[%d]: id is required", i)
		}
		if seen[n.ID] {
			return fmt.Errorf("nodes[%d]: duplicate id %q", i, n.ID)
		}
		seen[n.ID] = true
		if n.Address == "" {
			return fmt.Errorf("nodes[%d] (%s): address is required", i, n.ID)
		}
		if _, _, err := net.SplitHostPort(n.Address); err != nil {
			return fmt.Errorf("nodes[%d] (%s): address: %w", i, n.ID, err)
		}
		if n.Capacity < 1 {
			return fmt.Errorf("nodes[%d] (%s): capacity must be at least 1", i, n.ID)
		}
	}
	return nil
}
