package portal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/planea/portal/internal/identity"
	"github.com/planea/portal/internal/profile"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestManager(t *testing.T, clock *fakeClock, newProvider func() identity.Provider) *Manager {
	t.Helper()
	m, err := NewManager(ManagerConfig{
		Profiles:    profile.NewMemoryStore(),
		Pending:     NewMemoryPendingStore(),
		Catalog:     newTestCatalog(),
		NewProvider: newProvider,
		IdleTTL:     time.Hour,
		Now:         clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	t.Cleanup(func() { m.CloseAll(context.Background()) })
	return m
}

func mockProviders() func() identity.Provider {
	return func() identity.Provider { return identity.NewMockProvider() }
}

func TestManager_CreateGetClose(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, mockProviders())

	s, err := m.Create(ctx, "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	got, err := m.Get(ctx, s.ID())
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	other, _ := m.Create(ctx, "")
	if other.ID() == s.ID() {
		t.Error("sessions share an id")
	}
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}

	if err := m.Close(ctx, s.ID()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := m.Get(ctx, s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after Close error = %v, want ErrSessionNotFound", err)
	}
	if err := m.Close(ctx, s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Close() error = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_IdleExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, mockProviders())

	idle, _ := m.Create(ctx, "")
	active, _ := m.Create(ctx, "")

	clock.Advance(50 * time.Minute)
	active.SelectModule(1)
	clock.Advance(20 * time.Minute)

	if _, err := m.Get(ctx, idle.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("idle session still served: %v", err)
	}
	if _, err := m.Get(ctx, active.ID()); err != nil {
		t.Errorf("active session expired: %v", err)
	}

	clock.Advance(2 * time.Hour)
	if n := m.Sweep(ctx); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after sweep", m.Len())
	}
}

func TestManager_ReadsKeepSessionAlive(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, mockProviders())

	viewed, _ := m.Create(ctx, "")
	streamed, _ := m.Create(ctx, "")

	for range 3 {
		clock.Advance(50 * time.Minute)
		viewed.Snapshot(ctx)
		streamed.Touch()
	}

	if _, err := m.Get(ctx, viewed.ID()); err != nil {
		t.Errorf("session read through Snapshot expired: %v", err)
	}
	if _, err := m.Get(ctx, streamed.ID()); err != nil {
		t.Errorf("touched session expired: %v", err)
	}
}

func TestManager_CreateResumesIdentity(t *testing.T) {
	ctx := context.Background()
	tokens, _ := identity.NewTokenIssuer("secret", time.Hour)
	auth, err := identity.NewLocalAuth(identity.LocalAuthConfig{
		Accounts: identity.NewMemoryAccountStore(),
		Tokens:   tokens,
	})
	if err != nil {
		t.Fatalf("NewLocalAuth() error = %v", err)
	}
	clock := &fakeClock{now: time.Now()}
	m := newTestManager(t, clock, func() identity.Provider { return auth.NewClient() })

	first, _ := m.Create(ctx, "")
	if err := first.LoginWithPassword(ctx, "ana@example.com", "secreto1", true); err != nil {
		t.Fatalf("LoginWithPassword() error = %v", err)
	}
	uid := first.UID()
	if uid == "" {
		t.Fatal("registration did not sign in")
	}
	token, _ := tokens.Issue(identity.Identity{UID: uid, Email: "ana@example.com"})

	resumed, err := m.Create(ctx, token)
	if err != nil {
		t.Fatalf("Create(token) error = %v", err)
	}
	if resumed.UID() != uid {
		t.Errorf("resumed uid = %q, want %q", resumed.UID(), uid)
	}

	rejected, err := m.Create(ctx, "forged")
	if err != nil {
		t.Fatalf("Create(forged) error = %v", err)
	}
	if rejected.UID() != "" {
		t.Error("forged token should leave the session signed out")
	}
}

func TestNewManager_Validation(t *testing.T) {
	if _, err := NewManager(ManagerConfig{}); err == nil {
		t.Error("NewManager() without provider factory should error")
	}
}
