package signature

import (
	"fmt"

	"shopify-gateway/internal/domain"
)

// WebhookVerifier authenticates inbound webhook deliveries. Verify must be
// called with the raw, unparsed request body; a digest computed over a
// re-serialized copy of the payload will not match.
type WebhookVerifier struct {
	engine *Engine
}

// NewWebhookVerifier creates a verifier using the platform shared secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{engine: NewEngine(secret)}
}

// Verify checks the base64 digest from the X-Shopify-Hmac-SHA256 header
// against the raw body. Any missing input fails verification.
func (v *WebhookVerifier) Verify(rawBody []byte, hmacHeader string) error {
	if hmacHeader == "" {
		return fmt.Errorf("missing hmac header: %w", domain.ErrInvalidSignature)
	}
	if !v.engine.VerifyBase64(rawBody, hmacHeader) {
		return fmt.Errorf("hmac digest mismatch: %w", domain.ErrInvalidSignature)
	}
	return nil
}
