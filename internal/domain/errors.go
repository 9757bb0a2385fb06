package domain

import "errors"

// Gateway error taxonomy. Handlers map these to HTTP responses at the
// boundary; client-facing messages stay generic while the wrapped detail
// goes to the log and audit sink.
var (
	ErrInvalidTenant           = errors.New("invalid tenant identifier")
	ErrStateMismatch           = errors.New("oauth state mismatch")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrExpiredOrRevokedSession = errors.New("session expired or revoked")
	ErrRateLimited             = errors.New("rate limited")
	ErrUpstreamExchangeFailure = errors.New("upstream token exchange failed")
	ErrUnknownTopic            = errors.New("unknown webhook topic")
)
