package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"shopify-gateway/internal/application"
	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/infrastructure/metrics"
	"shopify-gateway/internal/ports"
)

// AuthHandler exposes the authorization flow and session validation over
// HTTP. It owns the error-kind-to-response mapping: internal detail stays
// in the log, clients get a generic message that never reveals which
// check failed.
type AuthHandler struct {
	auth     *application.AuthService
	sessions ports.SessionStore
	logger   zerolog.Logger
}

// NewAuthHandler creates the auth HTTP handler.
func NewAuthHandler(auth *application.AuthService, sessions ports.SessionStore, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		logger:   logger,
	}
}

// Login handles GET /auth/login?shop=<tenant> with a 302 to the consent
// screen.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.auth.Begin(r.Context(), r.URL.Query().Get("shop"), r.URL.Query().Get("return_url"))
	if err != nil {
		h.writeFlowError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback handles GET /auth/callback, completing the state machine and
// redirecting the merchant into the authenticated application.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	redirectURL, err := h.auth.Callback(r.Context(), r.URL.Query())
	if err != nil {
		metrics.OAuthExchanges.WithLabelValues("failure").Inc()
		h.writeFlowError(w, err)
		return
	}
	metrics.OAuthExchanges.WithLabelValues("success").Inc()
	metrics.SessionsIssued.Inc()
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// Token handles POST /auth/token: validates the bearer session token and
// returns the wrapped platform credential with its expiry.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.validateRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accessToken": sess.AccessToken,
		"expiresAt":   sess.ExpiresAt.Format(time.RFC3339),
	})
}

// RegisterWebhooks handles POST /webhooks/register: re-registers the fixed
// topic set for the session's shop. The upstream registration is
// idempotent, so repeated calls are safe.
func (h *AuthHandler) RegisterWebhooks(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.validateRequest(w, r)
	if !ok {
		return
	}
	if err := h.auth.RegisterWebhooks(r.Context(), sess.Shop, sess.AccessToken); err != nil {
		h.logger.Error().Err(err).Str("shop", sess.Shop).Msg("Webhook registration failed")
		writeError(w, http.StatusBadGateway, "Webhook registration failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "topics": application.WebhookTopics})
}

// validateRequest resolves the request's bearer token to an active
// session, writing a 401 when it cannot.
func (h *AuthHandler) validateRequest(w http.ResponseWriter, r *http.Request) (*domain.Session, bool) {
	sess, err := h.sessions.Validate(r.Context(), bearerToken(r))
	if err != nil {
		if !errors.Is(err, domain.ErrExpiredOrRevokedSession) {
			h.logger.Error().Err(err).Msg("Session lookup failed")
		}
		writeError(w, http.StatusUnauthorized, "Invalid session")
		return nil, false
	}
	return sess, true
}

// writeFlowError maps the error taxonomy to client responses. Signature
// and state failures share one generic message.
func (h *AuthHandler) writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidTenant):
		writeError(w, http.StatusBadRequest, "shop parameter is missing or malformed")
	case errors.Is(err, domain.ErrStateMismatch), errors.Is(err, domain.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "Authentication failed")
	case errors.Is(err, domain.ErrUpstreamExchangeFailure):
		writeError(w, http.StatusBadGateway, "Installation could not be completed")
	default:
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// bearerToken extracts the session token from the Authorization header,
// falling back to X-Session-Token.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.Header.Get("X-Session-Token")
}
