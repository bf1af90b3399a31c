// Package oauth defines the external identity provider abstraction used for
// panel single sign-on. Handlers in internal/auth drive the flow; this package
// only knows how to talk to a provider.
package oauth

import "context"

// Claims is the verified identity returned by a provider after code exchange.
type Claims struct {
	Sub           string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	Picture       string
}

// Provider is one configured OAuth2/OIDC identity provider.
type Provider interface {
	// Name returns the provider key used in URLs, e.g. "google".
	Name() string

	// AuthCodeURL builds the consent page URL for the given state and PKCE
	// S256 code challenge.
	AuthCodeURL(state, codeChallenge string) string

	// Exchange trades an authorization code + PKCE verifier for verified
	// identity claims. The ID token signature must be checked before the
	// claims are returned.
	Exchange(ctx context.Context, code, codeVerifier string) (*Claims, error)
}
