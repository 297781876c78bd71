// Package credential issues per-session tunnel credentials.
//
// The issuer is stateless: key material comes from the system entropy
// source and the assigned tunnel address is a pure function of the
// session identity, hashed into the configured address space.
package credential

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/spaolacci/murmur3"

	"github.com/wirepool/wirepool-go/internal/core/domain"
	"github.com/wirepool/wirepool-go/pkg/wgkey"
)

// Defaults for issued credentials.
const (
	DefaultAddressCIDR  = "10.64.0.0/16"
	DefaultDNS          = "10.64.0.1"
	DefaultAllowedIPs   = "0.0.0.0/0, ::/0"
	DefaultKeepaliveSec = 25
)

// Config configures the issuer.
type Config struct {
	// AddressCIDR is the tunnel address space clients are mapped into.
	AddressCIDR string

	// DNS is the resolver handed to clients.
	DNS string

	// AllowedIPs is the routed address space, comma-joined CIDRs.
	AllowedIPs string

	// KeepaliveSec is the persistent keepalive interval in seconds.
	KeepaliveSec int

	// UsePresharedKey adds a per-session preshared key.
	UsePresharedKey bool
}

func (c Config) withDefaults() Config {
	if c.AddressCIDR == "" {
		c.AddressCIDR = DefaultAddressCIDR
	}
	if c.DNS == "" {
		c.DNS = DefaultDNS
	}
	if c.AllowedIPs == "" {
		c.AllowedIPs = DefaultAllowedIPs
	}
	if c.KeepaliveSec <= 0 {
		c.KeepaliveSec = DefaultKeepaliveSec
	}
	return c
}

// Issuer generates per-session key material and tunnel addresses.
type Issuer struct {
	cfg     Config
	network *net.IPNet
}

// NewIssuer creates an issuer for the given address space.
func NewIssuer(cfg Config) (*Issuer, error) {
	cfg = cfg.withDefaults()
	_, network, err := net.ParseCIDR(cfg.AddressCIDR)
	if err != nil {
		return nil, fmt.Errorf("credential: parse address cidr: %w", err)
	}
	if network.IP.To4() == nil {
		return nil, fmt.Errorf("credential: address cidr must be IPv4, got %s", cfg.AddressCIDR)
	}
	ones, bits := network.Mask.Size()
	if bits-ones < 2 {
		return nil, fmt.Errorf("credential: address cidr too small: %s", cfg.AddressCIDR)
	}
	return &Issuer{cfg: cfg, network: network}, nil
}

// Issue implements service.CredentialIssuer.
func (i *Issuer) Issue(_ context.Context, session *domain.Session, node *domain.ServerNode) (*domain.Credential, error) {
	priv, err := wgkey.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	pub, err := priv.PublicKey()
	if err != nil {
		return nil, err
	}

	cred := &domain.Credential{
		PrivateKey:    priv.String(),
		PublicKey:     pub.String(),
		Address:       i.addressFor(session.ID),
		DNS:           i.cfg.DNS,
		Endpoint:      node.Address,
		PeerPublicKey: node.PublicKey,
		AllowedIPs:    i.cfg.AllowedIPs,
		KeepaliveSec:  i.cfg.KeepaliveSec,
	}

	if i.cfg.UsePresharedKey {
		psk, err := wgkey.NewPresharedKey()
		if err != nil {
			return nil, err
		}
		cred.PresharedKey = psk.String()
	}
	return cred, nil
}

// addressFor maps a session ID into the host space of the address
// CIDR, skipping the network, gateway and broadcast addresses.
func (i *Issuer) addressFor(sessionID string) string {
	ones, bits := i.network.Mask.Size()
	hostCount := uint32(1) << (bits - ones)

	// Hosts 2..hostCount-2: .0 is the network, .1 the gateway and the
	// top address the broadcast.
	usable := hostCount - 3
	offset := 2 + murmur3.Sum32([]byte(sessionID))%usable

	base := binary.BigEndian.Uint32(i.network.IP.To4())
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, base+offset)
	return fmt.Sprintf("%s/32", ip)
}
