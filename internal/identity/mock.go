package identity

import (
	"context"
	"strings"
	"sync"
)

// MockProvider is a scripted Provider for tests. Sign-in calls return Err when set,
// otherwise they sign in as Next (or an identity derived from the email).
type MockProvider struct {
	Next *Identity
	Err  error

	SignInCalls   int
	RegisterCalls int
	SignOutCalls  int

	current   *Identity
	observers map[int]func(*Identity)
	nextID    int
	mu        sync.Mutex
}

// NewMockProvider creates a signed-out mock.
func NewMockProvider() *MockProvider {
	return &MockProvider{observers: make(map[int]func(*Identity))}
}

func (m *MockProvider) Observe(fn func(*Identity)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	current := m.current
	m.mu.Unlock()

	fn(current)
	return func() {
		m.mu.Lock()
		delete(m.observers, id)
		m.mu.Unlock()
	}
}

// Observers returns the number of registered callbacks.
func (m *MockProvider) Observers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.observers)
}

func (m *MockProvider) SignInFederated(_ context.Context, credential string) (*Identity, error) {
	m.count(&m.SignInCalls)
	return m.signIn(credential + "@federated.test")
}

func (m *MockProvider) SignInWithPassword(_ context.Context, email, _ string) (*Identity, error) {
	m.count(&m.SignInCalls)
	return m.signIn(email)
}

func (m *MockProvider) RegisterWithPassword(_ context.Context, email, _ string) (*Identity, error) {
	m.count(&m.RegisterCalls)
	return m.signIn(email)
}

func (m *MockProvider) SignOut(_ context.Context) error {
	m.count(&m.SignOutCalls)
	m.Emit(nil)
	return nil
}

// Emit simulates an identity change pushed by the provider.
func (m *MockProvider) Emit(id *Identity) {
	m.mu.Lock()
	m.current = id
	fns := make([]func(*Identity), 0, len(m.observers))
	for _, fn := range m.observers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(id)
	}
}

func (m *MockProvider) signIn(email string) (*Identity, error) {
	m.mu.Lock()
	err, next := m.Err, m.Next
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	id := next
	if id == nil {
		local, _, _ := strings.Cut(email, "@")
		id = &Identity{UID: "uid-" + local, Email: email}
	}
	m.Emit(id)
	return id, nil
}

func (m *MockProvider) count(n *int) {
	m.mu.Lock()
	*n++
	m.mu.Unlock()
}
