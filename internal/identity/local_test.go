package identity

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubVerifier struct {
	claims FederatedClaims
	err    error
}

func (s stubVerifier) Verify(context.Context, string) (FederatedClaims, error) {
	return s.claims, s.err
}

func newTestAuth(t *testing.T, v FederatedVerifier) *LocalAuth {
	t.Helper()
	tokens, err := NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}
	auth, err := NewLocalAuth(LocalAuthConfig{
		Accounts:          NewMemoryAccountStore(),
		Tokens:            tokens,
		Federated:         v,
		MinPasswordLength: 6,
	})
	if err != nil {
		t.Fatalf("NewLocalAuth() error = %v", err)
	}
	return auth
}

func TestLocalClient_RegisterAndSignIn(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t, nil)

	reg, err := auth.NewClient().RegisterWithPassword(ctx, "Ana@Example.com", "secreto1")
	if err != nil {
		t.Fatalf("RegisterWithPassword() error = %v", err)
	}
	if reg.UID == "" || reg.Token == "" {
		t.Errorf("RegisterWithPassword() = %+v, want uid and token", reg)
	}

	got, err := auth.NewClient().SignInWithPassword(ctx, "ana@example.com", "secreto1")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	if got.UID != reg.UID {
		t.Errorf("SignInWithPassword() uid = %q, want %q", got.UID, reg.UID)
	}
}

func TestLocalClient_Failures(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t, nil)
	if _, err := auth.NewClient().RegisterWithPassword(ctx, "ana@example.com", "secreto1"); err != nil {
		t.Fatalf("RegisterWithPassword() error = %v", err)
	}

	tests := []struct {
		name string
		call func(c *LocalClient) error
		want Category
	}{
		{"duplicate email", func(c *LocalClient) error {
			_, err := c.RegisterWithPassword(ctx, "ana@example.com", "otra-clave")
			return err
		}, CategoryEmailAlreadyRegistered},
		{"weak password", func(c *LocalClient) error {
			_, err := c.RegisterWithPassword(ctx, "luis@example.com", "123")
			return err
		}, CategoryWeakPassword},
		{"wrong password", func(c *LocalClient) error {
			_, err := c.SignInWithPassword(ctx, "ana@example.com", "incorrecta")
			return err
		}, CategoryInvalidCredentials},
		{"unknown user", func(c *LocalClient) error {
			_, err := c.SignInWithPassword(ctx, "nadie@example.com", "secreto1")
			return err
		}, CategoryInvalidCredentials},
		{"invalid email", func(c *LocalClient) error {
			_, err := c.RegisterWithPassword(ctx, "sin-arroba", "secreto1")
			return err
		}, CategoryUnknown},
		{"federated not configured", func(c *LocalClient) error {
			_, err := c.SignInFederated(ctx, "credential")
			return err
		}, CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := auth.NewClient()
			var observed []*Identity
			c.Observe(func(id *Identity) { observed = append(observed, id) })

			err := tt.call(c)
			if got := Classify(err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", err, got, tt.want)
			}
			if len(observed) != 1 {
				t.Errorf("failed call should not notify observers, got %d callbacks", len(observed))
			}
		})
	}
}

func TestLocalClient_Observe(t *testing.T) {
	ctx := context.Background()
	c := newTestAuth(t, nil).NewClient()

	var events []*Identity
	unsubscribe := c.Observe(func(id *Identity) { events = append(events, id) })

	if len(events) != 1 || events[0] != nil {
		t.Fatalf("Observe() should fire once with the signed-out identity, got %v", events)
	}

	if _, err := c.RegisterWithPassword(ctx, "ana@example.com", "secreto1"); err != nil {
		t.Fatalf("RegisterWithPassword() error = %v", err)
	}
	if err := c.SignOut(ctx); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if len(events) != 3 || events[1] == nil || events[2] != nil {
		t.Fatalf("events = %v, want [nil, identity, nil]", events)
	}

	unsubscribe()
	c.SignInWithPassword(ctx, "ana@example.com", "secreto1")
	if len(events) != 3 {
		t.Errorf("callback fired after unsubscribe")
	}
}

func TestLocalClient_Federated(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t, stubVerifier{claims: FederatedClaims{
		Subject: "g-123", Email: "ana@example.com", Name: "Ana Pérez",
	}})

	first, err := auth.NewClient().SignInFederated(ctx, "id-token")
	if err != nil {
		t.Fatalf("SignInFederated() error = %v", err)
	}
	if first.Name != "Ana Pérez" {
		t.Errorf("Name = %q, want Ana Pérez", first.Name)
	}

	again, err := auth.NewClient().SignInFederated(ctx, "id-token")
	if err != nil {
		t.Fatalf("second SignInFederated() error = %v", err)
	}
	if again.UID != first.UID {
		t.Errorf("federated sign-in should reuse the account, got %q then %q", first.UID, again.UID)
	}

	// A federated-only account has no password to sign in with.
	_, err = auth.NewClient().SignInWithPassword(ctx, "ana@example.com", "whatever")
	if Classify(err) != CategoryInvalidCredentials {
		t.Errorf("password sign-in on federated account: %v", err)
	}
}

func TestLocalClient_FederatedLinksPasswordAccount(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t, stubVerifier{claims: FederatedClaims{Subject: "g-1", Email: "ana@example.com"}})

	reg, _ := auth.NewClient().RegisterWithPassword(ctx, "ana@example.com", "secreto1")
	fed, err := auth.NewClient().SignInFederated(ctx, "id-token")
	if err != nil {
		t.Fatalf("SignInFederated() error = %v", err)
	}
	if fed.UID != reg.UID {
		t.Errorf("federated uid = %q, want linked %q", fed.UID, reg.UID)
	}
}

func TestLocalClient_FederatedRejected(t *testing.T) {
	auth := newTestAuth(t, stubVerifier{err: errors.New("bad signature")})

	_, err := auth.NewClient().SignInFederated(context.Background(), "forged")
	if Classify(err) != CategoryInvalidCredentials {
		t.Errorf("SignInFederated() error = %v, want invalid credential", err)
	}
}

func TestLocalClient_Resume(t *testing.T) {
	ctx := context.Background()
	auth := newTestAuth(t, nil)

	reg, _ := auth.NewClient().RegisterWithPassword(ctx, "ana@example.com", "secreto1")

	c := auth.NewClient()
	var last *Identity
	c.Observe(func(id *Identity) { last = id })

	if _, err := c.Resume(ctx, reg.Token); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if last == nil || last.UID != reg.UID {
		t.Errorf("observer saw %+v, want uid %q", last, reg.UID)
	}

	if _, err := c.Resume(ctx, "tampered"); err == nil {
		t.Error("Resume() with a bad token should error")
	}
}

func TestMockProvider(t *testing.T) {
	ctx := context.Background()
	m := NewMockProvider()

	var events []*Identity
	unsubscribe := m.Observe(func(id *Identity) { events = append(events, id) })

	id, err := m.SignInWithPassword(ctx, "ana@example.com", "x")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	if id.UID != "uid-ana" {
		t.Errorf("UID = %q, want uid-ana", id.UID)
	}

	m.Err = &Error{Code: CodeWrongPassword}
	if _, err := m.SignInWithPassword(ctx, "ana@example.com", "x"); Classify(err) != CategoryInvalidCredentials {
		t.Errorf("scripted error not returned: %v", err)
	}

	unsubscribe()
	if m.Observers() != 0 {
		t.Errorf("Observers() = %d after unsubscribe", m.Observers())
	}
	if len(events) != 2 || m.SignInCalls != 2 {
		t.Errorf("events = %d, SignInCalls = %d", len(events), m.SignInCalls)
	}
}
