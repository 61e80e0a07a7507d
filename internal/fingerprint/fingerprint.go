// Package fingerprint derives the stable incident key for an error event.
//
// Two events share a key when they come from the same service and their
// messages and stack tops differ only in runtime noise: ids, timestamps,
// addresses, paths, counters and line numbers. Semantic codes such as HTTP
// status, errno and SQLSTATE are kept, so different codes give different keys.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Signature is the normalized, lowercase text the key is computed over.
func Signature(message, stackTrace string) string {
	sig := NormalizeMessage(message)
	if top := NormalizeStackTop(stackTrace, DefaultStackLines); top != "" {
		sig = sig + " | " + top
	}
	return collapse(strings.ToLower(sig))
}

// Key hashes a service name and signature into a 64 character hex key.
func Key(serviceName, signature string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(serviceName) + ":" + signature))
	return hex.EncodeToString(sum[:])
}

// Fingerprint returns the incident key for an event. Any input, including
// empty strings, yields a valid key.
func Fingerprint(serviceName, message, stackTrace string) string {
	return Key(serviceName, Signature(message, stackTrace))
}
