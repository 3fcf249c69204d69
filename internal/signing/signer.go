// Package signing provides HMAC-SHA256 signing and verification for
// partner requests and webhook payloads. Both sides of the wire import
// this package so signature generation and validation stay consistent.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Signer provides HMAC-SHA256 signing and verification using a shared
// secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a new Signer with the given secret string.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign computes the hex-encoded HMAC-SHA256 of the message.
func (s *Signer) Sign(message []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks whether the given signature matches the HMAC-SHA256 of
// the message. Uses hmac.Equal for constant-time comparison.
func (s *Signer) Verify(message []byte, signature string) bool {
	expected := s.Sign(message)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// RequestMessage builds the partner request signing surface:
// method, path, unix timestamp and body, newline-delimited.
func RequestMessage(method, path string, unixTS int64, body []byte) []byte {
	prefix := method + "\n" + path + "\n" + strconv.FormatInt(unixTS, 10) + "\n"
	return append([]byte(prefix), body...)
}

// AuthorizationHeader formats the partner Authorization header value:
// "Partner <key>:<sig>:<ts>".
func AuthorizationHeader(key, signature string, unixTS int64) string {
	return fmt.Sprintf("Partner %s:%s:%d", key, signature, unixTS)
}
