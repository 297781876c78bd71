package domain

// Credential holds per-session key material and routing parameters.
//
// A credential is generated exactly once per session and wiped
// best-effort when the owning session reaches a terminal state.
// Key material must never appear in cleartext in logs; the logger's
// redaction layer covers the wg-prefixed encodings.
type Credential struct {
	// PrivateKey is the client's tunnel private key (base64).
	PrivateKey string `json:"private_key"`

	// PublicKey is the client's tunnel public key (base64).
	PublicKey string `json:"public_key"`

	// PresharedKey is an optional extra symmetric key (base64).
	PresharedKey string `json:"preshared_key,omitempty"`

	// Address is the tunnel address assigned to the client (CIDR).
	Address string `json:"address"`

	// DNS is the resolver handed to the client.
	DNS string `json:"dns"`

	// Endpoint is the node's routable endpoint (host:port).
	Endpoint string `json:"endpoint"`

	// PeerPublicKey is the node's tunnel public key (base64).
	PeerPublicKey string `json:"peer_public_key"`

	// AllowedIPs is the routed address space, comma-joined CIDRs.
	AllowedIPs string `json:"allowed_ips"`

	// KeepaliveSec is the persistent keepalive interval in seconds.
	KeepaliveSec int `json:"keepalive_sec"`
}

// Wipe overwrites the secret fields. Best-effort: Go strings are
// immutable, so this drops the references rather than zeroing memory.
func (c *Credential) Wipe() {
	c.PrivateKey = ""
	c.PresharedKey = ""
}

// HasSecrets reports whether the credential still carries key material.
func (c *Credential) HasSecrets() bool {
	return c.PrivateKey != "" || c.PresharedKey != ""
}
