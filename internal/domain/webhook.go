package domain

import "time"

// Webhook processing outcomes.
const (
	WebhookPending  = "pending"
	WebhookAccepted = "accepted"
	WebhookRejected = "rejected"
)

// WebhookEvent is a single notification delivery attempt. Payload holds the
// raw request bytes exactly as received; signature verification ran against
// those bytes before the event was constructed.
type WebhookEvent struct {
	ID         string    `json:"id" bson:"_id"`
	Topic      string    `json:"topic" bson:"topic"`
	Shop       string    `json:"shop" bson:"shop"`
	Payload    []byte    `json:"payload" bson:"payload"`
	Verified   bool      `json:"verified" bson:"verified"`
	Outcome    string    `json:"outcome" bson:"outcome"`
	ReceivedAt time.Time `json:"received_at" bson:"received_at"`
}

// AuditRecord is a structured failure record accepted by the audit sink.
// Detail values must never contain secrets or raw credentials.
type AuditRecord struct {
	Kind   string            `json:"kind" bson:"kind"`
	Shop   string            `json:"shop,omitempty" bson:"shop,omitempty"`
	Detail map[string]string `json:"detail,omitempty" bson:"detail,omitempty"`
	At     time.Time         `json:"at" bson:"at"`
}
