package api

import (
	"net/http"

	"github.com/rs/zerolog"

	"shopify-gateway/internal/infrastructure/metrics"
	"shopify-gateway/internal/infrastructure/signature"
	"shopify-gateway/internal/ports"
)

// ProxyHandler verifies storefront requests forwarded by the platform.
// Identity is taken only from the signed query parameters; nothing the
// storefront sends outside the signature is trusted.
type ProxyHandler struct {
	engine *signature.Engine
	shops  ports.ShopRepository
	logger zerolog.Logger
}

// NewProxyHandler creates the app proxy HTTP handler.
func NewProxyHandler(engine *signature.Engine, shops ports.ShopRepository, logger zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{engine: engine, shops: shops, logger: logger}
}

// Handle processes GET /proxy/* requests forwarded by the platform.
func (h *ProxyHandler) Handle(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()

	if !h.engine.VerifyQuery(params) {
		h.logger.Warn().Str("path", r.URL.Path).Msg("Proxy signature verification failed")
		metrics.ProxyRequests.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	shop := params.Get("shop")
	if shop == "" {
		metrics.ProxyRequests.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	record, err := h.shops.FindByDomain(r.Context(), shop)
	if err != nil {
		h.logger.Error().Err(err).Str("shop", shop).Msg("Failed to look up shop for proxy request")
		metrics.ProxyRequests.WithLabelValues("failed").Inc()
		writeError(w, http.StatusInternalServerError, "Failed to process request")
		return
	}
	if record == nil || !record.Active {
		metrics.ProxyRequests.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	metrics.ProxyRequests.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"shop":       shop,
		"authorized": true,
	})
}
