package course

import (
	"context"
	"slices"
	"sync"

	"github.com/planea/portal/internal/curriculum"
)

// Store persists templates and course instances. Append operations are atomic
// per document.
type Store interface {
	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
	// PutTemplate inserts t, replacing title, description and modules when the id exists.
	PutTemplate(ctx context.Context, t Template) error
	// AppendTemplateModule adds m with id set to the current module count plus one.
	AppendTemplateModule(ctx context.Context, templateID string, m curriculum.Module) (curriculum.Module, error)
	AppendTemplateResource(ctx context.Context, templateID string, r Resource) error
	PutTemplateContent(ctx context.Context, templateID string, content []curriculum.TopicContent) error
	TemplateContent(ctx context.Context, templateID, topicID string) (*curriculum.TopicContent, error)

	CreateInstance(ctx context.Context, inst Instance) error
	GetInstance(ctx context.Context, id string) (*Instance, error)
	InstancesByProfessor(ctx context.Context, professorID string) ([]Instance, error)
	// InstancesByIDs returns the instances that exist among ids, in no particular order.
	InstancesByIDs(ctx context.Context, ids []string) ([]Instance, error)
	AppendAnnouncement(ctx context.Context, courseID string, a Announcement) error
	SetPublished(ctx context.Context, courseID string, published bool) error
	// TogglePublished flips the flag and returns the new value.
	TogglePublished(ctx context.Context, courseID string) (bool, error)
	AddStudent(ctx context.Context, courseID, uid string) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	templates map[string]*Template
	content   map[string]map[string]curriculum.TopicContent
	instances map[string]*Instance
	mu        sync.RWMutex
}

// NewMemoryStore creates a new in-memory course store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		templates: make(map[string]*Template),
		content:   make(map[string]map[string]curriculum.TopicContent),
		instances: make(map[string]*Instance),
	}
}

func (s *MemoryStore) ListTemplates(_ context.Context) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Template, 0, len(s.templates))
	for _, t := range s.templates {
		out = append(out, t.clone())
	}
	return out, nil
}

func (s *MemoryStore) GetTemplate(_ context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := t.clone()
	return &out, nil
}

func (s *MemoryStore) PutTemplate(_ context.Context, t Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.templates[t.ID]; ok {
		existing.Title = t.Title
		existing.Description = t.Description
		existing.Modules = t.clone().Modules
		return nil
	}
	stored := t.clone()
	s.templates[t.ID] = &stored
	return nil
}

func (s *MemoryStore) AppendTemplateModule(_ context.Context, templateID string, m curriculum.Module) (curriculum.Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID]
	if !ok {
		return curriculum.Module{}, ErrNotFound
	}
	m.ID = len(t.Modules) + 1
	m.Topics = append([]curriculum.Topic{}, m.Topics...)
	t.Modules = append(t.Modules, m)
	return m, nil
}

func (s *MemoryStore) AppendTemplateResource(_ context.Context, templateID string, r Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.templates[templateID]
	if !ok {
		return ErrNotFound
	}
	t.DefaultResources = append(t.DefaultResources, r)
	return nil
}

func (s *MemoryStore) PutTemplateContent(_ context.Context, templateID string, content []curriculum.TopicContent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[templateID]; !ok {
		return ErrNotFound
	}
	byTopic, ok := s.content[templateID]
	if !ok {
		byTopic = make(map[string]curriculum.TopicContent)
		s.content[templateID] = byTopic
	}
	for _, c := range content {
		byTopic[c.TopicID] = c
	}
	return nil
}

func (s *MemoryStore) TemplateContent(_ context.Context, templateID, topicID string) (*curriculum.TopicContent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.content[templateID][topicID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) CreateInstance(_ context.Context, inst Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[inst.TemplateID]; !ok {
		return ErrNotFound
	}
	stored := inst.clone()
	s.instances[inst.ID] = &stored
	return nil
}

func (s *MemoryStore) GetInstance(_ context.Context, id string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, ok := s.instances[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := inst.clone()
	return &out, nil
}

func (s *MemoryStore) InstancesByProfessor(_ context.Context, professorID string) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Instance
	for _, inst := range s.instances {
		if inst.ProfessorID == professorID {
			out = append(out, inst.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) InstancesByIDs(_ context.Context, ids []string) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Instance
	for _, id := range ids {
		if inst, ok := s.instances[id]; ok {
			out = append(out, inst.clone())
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendAnnouncement(_ context.Context, courseID string, a Announcement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[courseID]
	if !ok {
		return ErrNotFound
	}
	inst.Announcements = append(inst.Announcements, a)
	return nil
}

func (s *MemoryStore) SetPublished(_ context.Context, courseID string, published bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[courseID]
	if !ok {
		return ErrNotFound
	}
	inst.IsPublished = published
	return nil
}

func (s *MemoryStore) TogglePublished(_ context.Context, courseID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[courseID]
	if !ok {
		return false, ErrNotFound
	}
	inst.IsPublished = !inst.IsPublished
	return inst.IsPublished, nil
}

func (s *MemoryStore) AddStudent(_ context.Context, courseID, uid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inst, ok := s.instances[courseID]
	if !ok {
		return ErrNotFound
	}
	if !slices.Contains(inst.Students, uid) {
		inst.Students = append(inst.Students, uid)
	}
	return nil
}
