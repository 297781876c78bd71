// Package wgkey provides Curve25519 key pair generation and encoding
// for WireGuard-style tunnel credentials.
package wgkey

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the length of a raw Curve25519 key in bytes.
const KeySize = 32

// Key is a raw 32-byte Curve25519 key.
type Key [KeySize]byte

// NewPrivateKey generates a clamped Curve25519 private key.
func NewPrivateKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("wgkey: read entropy: %w", err)
	}
	// Clamp per the Curve25519 key format.
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
	return k, nil
}

// NewPresharedKey generates a random symmetric key.
func NewPresharedKey() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("wgkey: read entropy: %w", err)
	}
	return k, nil
}

// PublicKey derives the public key for a private key.
func (k Key) PublicKey() (Key, error) {
	pub, err := curve25519.X25519(k[:], curve25519.Basepoint)
	if err != nil {
		return Key{}, fmt.Errorf("wgkey: derive public key: %w", err)
	}
	var out Key
	copy(out[:], pub)
	return out, nil
}

// String returns the standard base64 encoding of the key.
func (k Key) String() string {
	return base64.StdEncoding.EncodeToString(k[:])
}

// IsZero reports whether the key is all zeroes.
func (k Key) IsZero() bool {
	var zero Key
	return k == zero
}

// Parse decodes a base64-encoded key.
func Parse(s string) (Key, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Key{}, fmt.Errorf("wgkey: decode key: %w", err)
	}
	if len(raw) != KeySize {
		return Key{}, fmt.Errorf("wgkey: key must be %d bytes, got %d", KeySize, len(raw))
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}
