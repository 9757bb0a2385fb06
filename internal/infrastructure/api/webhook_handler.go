package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"shopify-gateway/internal/application"
	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/infrastructure/metrics"
	"shopify-gateway/internal/infrastructure/pubsub"
	"shopify-gateway/internal/infrastructure/signature"
	"shopify-gateway/internal/ports"
)

// maxWebhookBody bounds how much of a delivery is read into memory.
const maxWebhookBody = 1 << 20

// WebhookHandler receives platform notifications. The body is verified
// untouched, exactly as received, before any parsing; only then is the
// event constructed and dispatched.
type WebhookHandler struct {
	verifier   *signature.WebhookVerifier
	dispatcher *application.WebhookDispatcher
	shops      ports.ShopRepository
	events     *pubsub.WebhookPubSub
	logger     zerolog.Logger
}

// NewWebhookHandler creates the webhook HTTP handler.
func NewWebhookHandler(
	verifier *signature.WebhookVerifier,
	dispatcher *application.WebhookDispatcher,
	shops ports.ShopRepository,
	events *pubsub.WebhookPubSub,
	logger zerolog.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		dispatcher: dispatcher,
		shops:      shops,
		events:     events,
		logger:     logger,
	}
}

// Handle processes POST /webhooks/{topic}. Rejected deliveries return a
// non-2xx status so the platform's own retry mechanism engages.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	topic := strings.TrimPrefix(r.URL.Path, "/webhooks/")
	if topic == "" || topic == r.URL.Path {
		topic = r.Header.Get("X-Shopify-Topic")
	}

	hmacHeader := r.Header.Get("X-Shopify-Hmac-SHA256")
	shop := r.Header.Get("X-Shopify-Shop-Domain")
	if hmacHeader == "" || topic == "" || shop == "" {
		metrics.WebhooksReceived.WithLabelValues(topic, "rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid HMAC")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read webhook payload")
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	if err := h.verifier.Verify(payload, hmacHeader); err != nil {
		h.logger.Warn().Str("topic", topic).Str("shop", shop).Msg("Webhook signature verification failed")
		rejected := &domain.WebhookEvent{
			ID:         uuid.NewString(),
			Topic:      topic,
			Shop:       shop,
			Verified:   false,
			Outcome:    domain.WebhookRejected,
			ReceivedAt: time.Now(),
		}
		if err := h.shops.LogWebhook(r.Context(), rejected); err != nil {
			h.logger.Error().Err(err).Str("topic", topic).Msg("Failed to log rejected webhook")
		}
		metrics.WebhooksReceived.WithLabelValues(topic, "rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid HMAC")
		return
	}

	event := &domain.WebhookEvent{
		ID:         uuid.NewString(),
		Topic:      topic,
		Shop:       shop,
		Payload:    payload,
		Verified:   true,
		Outcome:    domain.WebhookPending,
		ReceivedAt: time.Now(),
	}

	// The delivery log is observability, not a gate.
	if err := h.shops.LogWebhook(r.Context(), event); err != nil {
		h.logger.Error().Err(err).Str("topic", topic).Msg("Failed to log webhook event")
	}

	h.events.Publish(event)

	if err := h.dispatcher.Dispatch(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrUnknownTopic) {
			metrics.WebhooksReceived.WithLabelValues(topic, "unknown_topic").Inc()
			writeError(w, http.StatusNotFound, "Unknown webhook topic")
			return
		}
		h.logger.Error().Err(err).Str("topic", topic).Str("shop", shop).Msg("Failed to dispatch webhook event")
		metrics.WebhooksReceived.WithLabelValues(topic, "failed").Inc()
		writeError(w, http.StatusInternalServerError, "Failed to process webhook event")
		return
	}

	event.Outcome = domain.WebhookAccepted
	metrics.WebhooksReceived.WithLabelValues(topic, "accepted").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"received": "true"})
}
