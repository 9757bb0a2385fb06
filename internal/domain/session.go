package domain

import "time"

// Session is one authenticated tenant context. The gateway is the sole
// owner: sessions are created by the OAuth callback, read on every
// authenticated API call, and mutated only by revocation or expiry.
type Session struct {
	Token       string    `json:"token"`
	Shop        string    `json:"shop"`
	AccessToken string    `json:"access_token"`
	Scopes      []string  `json:"scopes"`
	IssuedAt    time.Time `json:"issued_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Revoked     bool      `json:"revoked"`
}

// Active reports whether the session is usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

// OAuthState is the anti-forgery nonce bound to a browser during the
// authorization flow. It lives only between /auth/login and /auth/callback.
type OAuthState struct {
	State     string    `json:"state"`
	Shop      string    `json:"shop"`
	Scopes    []string  `json:"scopes"`
	ReturnURL string    `json:"return_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
