package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"shopify-gateway/internal/domain"
	"shopify-gateway/internal/infrastructure/signature"
	"shopify-gateway/internal/ports"
)

// Authorization flow states, logged at each transition.
const (
	flowStateStart       = "start"
	flowStateRedirected  = "redirected"
	flowStateExchanging  = "exchanging"
	flowStateEstablished = "established"
	flowStateFailed      = "failed"
)

// shopDomainPattern matches a well-formed myshopify domain. Anything else
// is rejected before the flow begins.
var shopDomainPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*\.myshopify\.com$`)

// AuthService drives the grant-to-credential exchange and session
// issuance. No session exists until the exchange completes; an abandoned
// flow leaves only a nonce that expires on its own.
type AuthService struct {
	states     ports.StateStore
	sessions   ports.SessionStore
	shops      ports.ShopRepository
	platform   ports.PlatformClient
	encryption ports.EncryptionService
	engine     *signature.Engine
	audit      ports.AuditSink
	logger     zerolog.Logger

	appURL     string
	scopes     []string
	sessionTTL time.Duration
	stateTTL   time.Duration
}

// AuthServiceConfig carries the knobs for the authorization flow.
type AuthServiceConfig struct {
	AppURL     string
	Scopes     []string
	SessionTTL time.Duration
	StateTTL   time.Duration
}

// NewAuthService creates the authorization flow controller.
func NewAuthService(
	states ports.StateStore,
	sessions ports.SessionStore,
	shops ports.ShopRepository,
	platform ports.PlatformClient,
	encryption ports.EncryptionService,
	engine *signature.Engine,
	audit ports.AuditSink,
	logger zerolog.Logger,
	config AuthServiceConfig,
) *AuthService {
	if len(config.Scopes) == 0 {
		config.Scopes = domain.BaseScopes
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 24 * time.Hour
	}
	if config.StateTTL <= 0 {
		config.StateTTL = 10 * time.Minute
	}
	return &AuthService{
		states:     states,
		sessions:   sessions,
		shops:      shops,
		platform:   platform,
		encryption: encryption,
		engine:     engine,
		audit:      audit,
		logger:     logger,
		appURL:     config.AppURL,
		scopes:     config.Scopes,
		sessionTTL: config.SessionTTL,
		stateTTL:   config.StateTTL,
	}
}

// Begin validates the tenant identifier, stores an anti-forgery nonce, and
// returns the consent-screen URL to redirect to. No other state is
// persisted; an abandoned flow creates no session.
func (s *AuthService) Begin(ctx context.Context, shop string, returnURL string) (string, error) {
	if !shopDomainPattern.MatchString(shop) {
		s.logger.Warn().Str("shop", shop).Str("flow_state", flowStateStart).Msg("Rejected malformed shop domain")
		return "", fmt.Errorf("shop %q: %w", shop, domain.ErrInvalidTenant)
	}

	state, err := generateNonce()
	if err != nil {
		return "", err
	}

	record := &domain.OAuthState{
		State:     state,
		Shop:      shop,
		Scopes:    s.scopes,
		ReturnURL: s.sanitizeReturnURL(returnURL),
		ExpiresAt: time.Now().Add(s.stateTTL),
	}
	if err := s.states.Save(ctx, record, s.stateTTL); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}

	authURL, err := s.platform.AuthorizeURL(shop, s.scopes, s.appURL+"/auth/callback", state)
	if err != nil {
		return "", fmt.Errorf("failed to build authorization URL: %w", err)
	}

	s.logger.Info().Str("shop", shop).Str("flow_state", flowStateRedirected).Msg("Redirecting to consent screen")
	return authURL, nil
}

// Callback completes the flow: nonce check, callback signature check, code
// exchange (retried once on upstream failure), shop record upsert, session
// issuance, and webhook registration. It returns the URL to redirect the
// merchant into the authenticated application.
func (s *AuthService) Callback(ctx context.Context, query url.Values) (string, error) {
	shop := query.Get("shop")
	code := query.Get("code")
	state := query.Get("state")

	if shop == "" || code == "" {
		return "", s.fail(ctx, shop, "missing callback parameters", domain.ErrInvalidTenant)
	}

	// The round-tripped nonce is mandatory; skipping it permits session
	// fixation.
	stored, err := s.states.Consume(ctx, state)
	if err != nil {
		return "", s.fail(ctx, shop, "state nonce rejected", err)
	}
	if stored.Shop != shop {
		return "", s.fail(ctx, shop, "state bound to different shop", domain.ErrStateMismatch)
	}

	if !s.engine.VerifyQuery(query) {
		return "", s.fail(ctx, shop, "callback signature rejected", domain.ErrInvalidSignature)
	}

	s.logger.Info().Str("shop", shop).Str("flow_state", flowStateExchanging).Msg("Exchanging authorization code")

	accessToken, grantedScopes, err := s.exchangeWithRetry(ctx, shop, code)
	if err != nil {
		return "", s.fail(ctx, shop, "token exchange failed", err)
	}

	// The platform reports what it actually granted; an older token
	// endpoint may omit it, in which case the request stands in.
	if len(grantedScopes) == 0 {
		grantedScopes = stored.Scopes
	}
	if !domain.ValidateScopes(grantedScopes, stored.Scopes) {
		s.logger.Warn().
			Str("shop", shop).
			Strs("missing_scopes", domain.MissingScopes(grantedScopes, stored.Scopes)).
			Msg("Platform granted fewer scopes than requested")
	}

	// Canonicalize the domain from the platform's own record.
	canonicalDomain := shop
	if info, err := s.platform.GetShop(ctx, shop, accessToken); err == nil && info.Domain != "" {
		canonicalDomain = info.Domain
	} else if err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("Shop lookup after exchange failed, keeping callback domain")
	}

	encryptedToken, err := s.encryption.Encrypt(accessToken)
	if err != nil {
		return "", s.fail(ctx, shop, "failed to encrypt access token", err)
	}

	if err := s.shops.Upsert(ctx, &domain.Shop{
		Domain:      canonicalDomain,
		AccessToken: encryptedToken,
		Scopes:      grantedScopes,
		Active:      true,
		InstalledAt: time.Now(),
	}); err != nil {
		return "", s.fail(ctx, shop, "failed to save shop record", err)
	}

	sess, err := s.sessions.Issue(ctx, canonicalDomain, accessToken, grantedScopes, s.sessionTTL)
	if err != nil {
		return "", s.fail(ctx, shop, "failed to issue session", err)
	}

	// Registration is idempotent; a failure here is recoverable on the
	// next install or via POST /webhooks/register, so it does not fail
	// the flow.
	if err := s.registerWebhooks(ctx, canonicalDomain, accessToken); err != nil {
		s.logger.Error().Err(err).Str("shop", canonicalDomain).Msg("Webhook registration incomplete")
		s.audit.Record(ctx, &domain.AuditRecord{
			Kind:   "webhook_registration_failure",
			Shop:   canonicalDomain,
			Detail: map[string]string{"error": err.Error()},
		})
	}

	s.logger.Info().Str("shop", canonicalDomain).Str("flow_state", flowStateEstablished).Msg("Session established")

	returnURL := stored.ReturnURL
	if returnURL == "" {
		returnURL = s.appURL
	}
	return fmt.Sprintf("%s/?shop=%s&session=%s",
		returnURL, url.QueryEscape(canonicalDomain), url.QueryEscape(sess.Token)), nil
}

// sanitizeReturnURL keeps only relative paths and URLs on the app's own
// origin. The parameter arrives on the unauthenticated login request, so
// anything else would let the post-install redirect carry the session
// token to an attacker-chosen host.
func (s *AuthService) sanitizeReturnURL(raw string) string {
	if raw == "" {
		return ""
	}
	target, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if target.Scheme == "" && target.Host == "" && strings.HasPrefix(target.Path, "/") {
		return raw
	}
	app, err := url.Parse(s.appURL)
	if err != nil {
		return ""
	}
	if (target.Scheme == "http" || target.Scheme == "https") && strings.EqualFold(target.Host, app.Host) {
		return raw
	}
	s.logger.Warn().Str("return_url", raw).Msg("Discarding return URL outside the app origin")
	return ""
}

// RegisterWebhooks subscribes the shop to every topic the gateway handles.
// Safe to call repeatedly.
func (s *AuthService) RegisterWebhooks(ctx context.Context, shop string, accessToken string) error {
	return s.registerWebhooks(ctx, shop, accessToken)
}

func (s *AuthService) registerWebhooks(ctx context.Context, shop string, accessToken string) error {
	address := s.appURL + "/webhooks"
	for _, topic := range WebhookTopics {
		if err := s.platform.EnsureWebhook(ctx, shop, accessToken, topic, address+"/"+topic); err != nil {
			return fmt.Errorf("topic %s: %w", topic, err)
		}
	}
	return nil
}

// credentialGrant pairs the exchanged token with the scopes the platform
// granted alongside it.
type credentialGrant struct {
	accessToken string
	scopes      []string
}

// exchangeWithRetry performs the one-shot code exchange, retrying exactly
// once with backoff when the platform is unreachable or returns a 5xx.
// Anything else is permanent; a consumed code cannot be replayed.
func (s *AuthService) exchangeWithRetry(ctx context.Context, shop string, code string) (string, []string, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 500 * time.Millisecond

	grant, err := backoff.Retry(ctx, func() (credentialGrant, error) {
		token, scopes, err := s.platform.ExchangeToken(ctx, shop, code, s.appURL+"/auth/callback")
		if err != nil {
			if errors.Is(err, domain.ErrUpstreamExchangeFailure) {
				return credentialGrant{}, err
			}
			return credentialGrant{}, backoff.Permanent(err)
		}
		return credentialGrant{accessToken: token, scopes: scopes}, nil
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(2))
	if err != nil {
		return "", nil, err
	}
	return grant.accessToken, grant.scopes, nil
}

// fail records the transition to the terminal state. The returned error
// carries internal detail for the log; the boundary maps it to a generic
// client response without revealing which check failed.
func (s *AuthService) fail(ctx context.Context, shop string, reason string, err error) error {
	s.logger.Error().Err(err).Str("shop", shop).Str("reason", reason).Str("flow_state", flowStateFailed).Msg("Authorization flow failed")
	s.audit.Record(ctx, &domain.AuditRecord{
		Kind:   "oauth_failure",
		Shop:   shop,
		Detail: map[string]string{"reason": reason},
	})
	return fmt.Errorf("%s: %w", reason, err)
}

func generateNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
