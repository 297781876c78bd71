// Package configstore renders and persists client tunnel
// configurations.
//
// The payload is a WireGuard quick-config text block: an interface
// section followed by a peer section, fields in a fixed order, joined
// by newlines. The format is stable and round-trips through Parse.
package configstore

import (
	"fmt"
	"strings"

	"github.com/wirepool/wirepool-go/internal/core/domain"
)

// Render builds the client config payload for a credential.
// Field order is fixed: PrivateKey, Address, DNS in the interface
// section; PublicKey, Endpoint, AllowedIPs, PersistentKeepalive and
// the optional PresharedKey in the peer section.
func Render(cred *domain.Credential) (string, error) {
	if cred.PrivateKey == "" {
		return "", domain.ErrInvalidArgument.WithDetails("credential private key is required")
	}
	if cred.Address == "" {
		return "", domain.ErrInvalidArgument.WithDetails("credential address is required")
	}
	if cred.PeerPublicKey == "" {
		return "", domain.ErrInvalidArgument.WithDetails("peer public key is required")
	}
	if cred.Endpoint == "" {
		return "", domain.ErrInvalidArgument.WithDetails("endpoint is required")
	}

	var b strings.Builder
	b.WriteString("[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", cred.PrivateKey)
	fmt.Fprintf(&b, "Address = %s\n", cred.Address)
	if cred.DNS != "" {
		fmt.Fprintf(&b, "DNS = %s\n", cred.DNS)
	}

	b.WriteString("\n[Peer]\n")
	fmt.Fprintf(&b, "PublicKey = %s\n", cred.PeerPublicKey)
	fmt.Fprintf(&b, "Endpoint = %s\n", cred.Endpoint)
	fmt.Fprintf(&b, "AllowedIPs = %s\n", cred.AllowedIPs)
	if cred.KeepaliveSec > 0 {
		fmt.Fprintf(&b, "PersistentKeepalive = %d\n", cred.KeepaliveSec)
	}
	if cred.PresharedKey != "" {
		fmt.Fprintf(&b, "PresharedKey = %s\n", cred.PresharedKey)
	}
	return b.String(), nil
}

// Parse reads a rendered payload back into a credential. Unknown keys
// are ignored; section headers switch the target.
func Parse(payload string) (*domain.Credential, error) {
	cred := &domain.Credential{}
	section := ""
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(line[1 : len(line)-1])
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, domain.ErrInvalidArgument.WithDetails("malformed config line: " + line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch section {
		case "interface":
			switch key {
			case "PrivateKey":
				cred.PrivateKey = value
			case "Address":
				cred.Address = value
			case "DNS":
				cred.DNS = value
			}
		case "peer":
			switch key {
			case "PublicKey":
				cred.PeerPublicKey = value
			case "Endpoint":
				cred.Endpoint = value
			case "AllowedIPs":
				cred.AllowedIPs = value
			case "PersistentKeepalive":
				var keepalive int
				if _, err := fmt.Sscanf(value, "%d", &keepalive); err != nil {
					return nil, domain.ErrInvalidArgument.WithDetails("malformed keepalive: " + value)
				}
				cred.KeepaliveSec = keepalive
			case "PresharedKey":
				cred.PresharedKey = value
			}
		}
	}
	if cred.PrivateKey == "" || cred.Address == "" {
		return nil, domain.ErrInvalidArgument.WithDetails("payload missing interface section")
	}
	return cred, nil
}
