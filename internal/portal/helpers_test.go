package portal

import (
	"context"
	"sync"
	"testing"

	"github.com/planea/portal/internal/activity"
	"github.com/planea/portal/internal/curriculum"
	"github.com/planea/portal/internal/identity"
	"github.com/planea/portal/internal/profile"
)

type testCatalog struct {
	modules []curriculum.Module
}

func newTestCatalog() *testCatalog {
	mod := func(id int, titles ...string) curriculum.Module {
		m := curriculum.Module{ID: id, Title: titles[0]}
		for i, title := range titles[1:] {
			m.Topics = append(m.Topics, curriculum.Topic{ID: curriculum.TopicID(id, i+1), Title: title})
		}
		return m
	}
	return &testCatalog{modules: []curriculum.Module{
		mod(1, "Planificación", "Proyecto y prácticas", "Importancia de la planificación", "Ciclo de vida"),
		mod(2, "Diagnósticos", "Tipos e instrumentos", "Niveles"),
		mod(3, "Formulación", "Marco lógico", "Indicadores"),
	}}
}

func (c *testCatalog) Modules() []curriculum.Module { return c.modules }

func (c *testCatalog) Module(id int) (curriculum.Module, bool) {
	for _, m := range c.modules {
		if m.ID == id {
			return m, true
		}
	}
	return curriculum.Module{}, false
}

func (c *testCatalog) Content(topicID string) (curriculum.TopicContent, bool) {
	moduleID, _, err := curriculum.ParseTopicID(topicID)
	if err != nil {
		return curriculum.TopicContent{}, false
	}
	m, ok := c.Module(moduleID)
	if !ok {
		return curriculum.TopicContent{}, false
	}
	t, ok := m.FindTopic(topicID)
	if !ok {
		return curriculum.TopicContent{}, false
	}
	return curriculum.Placeholder(t), true
}

// flakyStore fails merges while failMerge is set and can block merges until released.
type flakyStore struct {
	*profile.MemoryStore

	mu        sync.Mutex
	failMerge error
	failFetch error
	gate      chan struct{}
	entered   chan struct{}
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: profile.NewMemoryStore()}
}

func (f *flakyStore) setMergeErr(err error) {
	f.mu.Lock()
	f.failMerge = err
	f.mu.Unlock()
}

func (f *flakyStore) Fetch(ctx context.Context, uid string) (*profile.Profile, error) {
	f.mu.Lock()
	err := f.failFetch
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.MemoryStore.Fetch(ctx, uid)
}

func (f *flakyStore) MergeCompletedTopic(ctx context.Context, uid, topicID string) error {
	f.mu.Lock()
	err, gate, entered := f.failMerge, f.gate, f.entered
	f.entered = nil
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return err
	}
	return f.MemoryStore.MergeCompletedTopic(ctx, uid, topicID)
}

type fixture struct {
	session  *Session
	provider *identity.MockProvider
	profiles *flakyStore
	pending  *MemoryPendingStore
	events   *activity.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider: identity.NewMockProvider(),
		profiles: newFlakyStore(),
		pending:  NewMemoryPendingStore(),
		events:   activity.NewMemory(),
	}
	s, err := NewSession(SessionConfig{
		ID:       "sess-1",
		Provider: f.provider,
		Profiles: f.profiles,
		Pending:  f.pending,
		Catalog:  newTestCatalog(),
		Events:   f.events,
	})
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	s.Start(context.Background())
	t.Cleanup(func() { s.Close(context.Background()) })
	f.session = s
	return f
}

// seed stores a profile with the given role before the user signs in.
func (f *fixture) seed(t *testing.T, uid string, role profile.Role, completed ...string) {
	t.Helper()
	p := profile.New(uid, uid+"@example.com", "")
	p.Role = role
	for _, id := range completed {
		p.MarkCompleted(id)
	}
	if err := f.profiles.Create(context.Background(), p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func (f *fixture) login(t *testing.T, email string) {
	t.Helper()
	if err := f.session.LoginWithPassword(context.Background(), email, "secreto1", false); err != nil {
		t.Fatalf("LoginWithPassword() error = %v", err)
	}
}

func viewKind(s *Session) Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.router.Current().Kind()
}
