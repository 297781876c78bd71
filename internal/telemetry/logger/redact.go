package logger

import (
	"log/slog"
	"strings"
)

// Sensitive key patterns that should be redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"private_key",
	"privatekey",
	"preshared",
	"psk",
	"credential",
	"auth",
	"bearer",
	"config_blob",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive checks if an attribute contains sensitive data
// and redacts it if necessary.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindString {
		strVal := a.Value.String()

		// Tunnel quick-config payloads embed private keys; never let
		// one through even under a benign attribute name.
		if looksLikeTunnelConfig(strVal) {
			return slog.String(a.Key, redactedValue)
		}

		// Bare curve25519 key material (partial mask keeps logs diffable).
		if looksLikeKeyMaterial(strVal) {
			return slog.String(a.Key, maskValue(strVal))
		}

		keyLower := strings.ToLower(a.Key)
		for _, pattern := range sensitiveKeyPatterns {
			if strings.Contains(keyLower, pattern) {
				if strVal != "" {
					return slog.String(a.Key, redactedValue)
				}
				break
			}
		}
	}

	// Handle nested groups recursively
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	return a
}

// looksLikeTunnelConfig reports whether a value appears to be a rendered
// tunnel configuration containing an embedded private key.
func looksLikeTunnelConfig(value string) bool {
	return strings.Contains(value, "[Interface]") && strings.Contains(value, "PrivateKey")
}

// looksLikeKeyMaterial reports whether a value appears to be a
// base64-encoded 32-byte key (44 characters, '=' padded).
func looksLikeKeyMaterial(value string) bool {
	if len(value) != 44 || !strings.HasSuffix(value, "=") {
		return false
	}
	for _, c := range value[:43] {
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '+' || c == '/':
		default:
			return false
		}
	}
	return true
}

// maskValue partially masks a sensitive value.
// Format: first 4 chars + "..." + last 4 chars
func maskValue(value string) string {
	if len(value) <= 12 {
		return "***"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

// RedactString manually redacts a string value.
// Use this when you need to redact a value before logging.
func RedactString(value string) string {
	if looksLikeTunnelConfig(value) {
		return redactedValue
	}
	if looksLikeKeyMaterial(value) {
		return maskValue(value)
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be sensitive.
func IsSensitiveValue(value string) bool {
	return looksLikeKeyMaterial(value) || looksLikeTunnelConfig(value)
}
