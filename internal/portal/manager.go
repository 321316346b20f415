package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planea/portal/internal/activity"
	"github.com/planea/portal/internal/identity"
	"github.com/planea/portal/internal/profile"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Profiles profile.Store
	Pending  PendingStore
	Catalog  Catalog
	Events   activity.Logger
	// NewProvider returns the identity provider for one new session.
	NewProvider func() identity.Provider
	// IdleTTL closes sessions that have not been used for this long. Zero disables expiry.
	IdleTTL time.Duration
	Now     func() time.Time
}

// Manager is the registry of live sessions.
type Manager struct {
	cfg      ManagerConfig
	sessions map[string]*Session
	mu       sync.Mutex
}

func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.NewProvider == nil {
		return nil, fmt.Errorf("provider factory is nil")
	}
	if cfg.Profiles == nil || cfg.Pending == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("profiles, pending store and catalog are required")
	}
	if cfg.Events == nil {
		cfg.Events = activity.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{cfg: cfg, sessions: make(map[string]*Session)}, nil
}

// Create starts a new session. A non-empty resumeToken restores the identity of an
// earlier sign-in when the provider supports it; a rejected token leaves the session
// signed out.
func (m *Manager) Create(ctx context.Context, resumeToken string) (*Session, error) {
	m.Sweep(ctx)

	provider := m.cfg.NewProvider()
	s, err := NewSession(SessionConfig{
		ID:       uuid.NewString(),
		Provider: provider,
		Profiles: m.cfg.Profiles,
		Pending:  m.cfg.Pending,
		Catalog:  m.cfg.Catalog,
		Events:   m.cfg.Events,
		Now:      m.cfg.Now,
	})
	if err != nil {
		return nil, err
	}
	s.Start(ctx)

	if resumeToken != "" {
		if r, ok := provider.(identity.Resumer); ok {
			if _, err := r.Resume(ctx, resumeToken); err != nil {
				slog.Warn("session resume rejected", "session_id", s.ID(), "error", err)
			}
		}
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	slog.Info("session created", "session_id", s.ID(), "active_sessions", n)
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok && m.expired(s) {
		delete(m.sessions, id)
		m.mu.Unlock()
		s.Close(ctx)
		return nil, ErrSessionNotFound
	}
	m.mu.Unlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close ends a session.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close(ctx)
	return nil
}

// Sweep closes idle sessions and returns how many it removed.
func (m *Manager) Sweep(ctx context.Context) int {
	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if m.expired(s) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close(ctx)
	}
	if len(idle) > 0 {
		slog.Info("idle sessions closed", "count", len(idle))
	}
	return len(idle)
}

// CloseAll ends every session.
func (m *Manager) CloseAll(ctx context.Context) {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.Close(ctx)
	}
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) expired(s *Session) bool {
	return m.cfg.IdleTTL > 0 && m.cfg.Now().Sub(s.LastActive()) > m.cfg.IdleTTL
}
