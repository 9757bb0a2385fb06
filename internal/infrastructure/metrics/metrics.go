// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhooksReceived counts webhook deliveries by topic and outcome
	// (accepted, rejected, unknown_topic, failed).
	WebhooksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_webhooks_received_total",
		Help: "Webhook deliveries by topic and outcome.",
	}, []string{"topic", "outcome"})

	// RateLimitDenied counts requests rejected by the rate limiter.
	RateLimitDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_rate_limit_denied_total",
		Help: "Requests rejected by the rate limiter.",
	})

	// OAuthExchanges counts completed authorization flows by outcome.
	OAuthExchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_oauth_exchanges_total",
		Help: "Authorization code exchanges by outcome.",
	}, []string{"outcome"})

	// SessionsIssued counts sessions created by the session store.
	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gateway_sessions_issued_total",
		Help: "Session tokens issued.",
	})

	// ProxyRequests counts app-proxy verifications by outcome.
	ProxyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_proxy_requests_total",
		Help: "App proxy requests by verification outcome.",
	}, []string{"outcome"})
)
