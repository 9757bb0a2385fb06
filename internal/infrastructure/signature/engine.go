// Package signature implements keyed-hash computation and verification for
// webhook payloads, OAuth callbacks, and app-proxy requests. All comparisons
// are constant time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Engine computes HMAC-SHA256 digests with an injected platform secret.
// The secret is tenant-independent; it is passed in at construction so the
// engine stays testable and never reads process-wide state.
type Engine struct {
	secret []byte
}

// NewEngine creates a signature engine for the given shared secret.
func NewEngine(secret string) *Engine {
	return &Engine{secret: []byte(secret)}
}

// SignHex returns the hex-encoded digest of message. Hex is the encoding
// Shopify uses for proxy and OAuth callback signatures.
func (e *Engine) SignHex(message []byte) string {
	return hex.EncodeToString(e.sum(message))
}

// SignBase64 returns the base64-encoded digest of message. Base64 is the
// encoding Shopify uses for webhook signatures.
func (e *Engine) SignBase64(message []byte) string {
	return base64.StdEncoding.EncodeToString(e.sum(message))
}

// VerifyHex recomputes the hex digest of message and compares it to the
// supplied value in constant time. A missing digest or secret is a
// verification failure, never a skipped check.
func (e *Engine) VerifyHex(message []byte, digest string) bool {
	if len(e.secret) == 0 || digest == "" {
		return false
	}
	return hmac.Equal([]byte(e.SignHex(message)), []byte(digest))
}

// VerifyBase64 is VerifyHex for base64-encoded digests.
func (e *Engine) VerifyBase64(message []byte, digest string) bool {
	if len(e.secret) == 0 || digest == "" {
		return false
	}
	return hmac.Equal([]byte(e.SignBase64(message)), []byte(digest))
}

func (e *Engine) sum(message []byte) []byte {
	mac := hmac.New(sha256.New, e.secret)
	mac.Write(message)
	return mac.Sum(nil)
}
