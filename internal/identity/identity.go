// Package identity adapts authentication providers to the portal session.
package identity

import "context"

// Identity is an authenticated user as reported by a provider.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	// Token is a signed session token that can resume this identity later.
	Token string `json:"-"`
}

// Provider is one browser session's view of the identity service.
//
// Observe registers fn and invokes it once immediately with the current identity
// (nil when signed out) and again on every later sign-in or sign-out. The returned
// function deregisters fn. Callbacks run synchronously on the goroutine that caused
// the change.
type Provider interface {
	Observe(fn func(*Identity)) (unsubscribe func())
	SignInFederated(ctx context.Context, credential string) (*Identity, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Identity, error)
	RegisterWithPassword(ctx context.Context, email, password string) (*Identity, error)
	SignOut(ctx context.Context) error
}

// Resumer is implemented by providers that can restore an identity from a token
// issued by an earlier sign-in.
type Resumer interface {
	Resume(ctx context.Context, token string) (*Identity, error)
}
