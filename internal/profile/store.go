package profile

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned when no profile exists for a uid.
var ErrNotFound = errors.New("profile not found")

// Store persists profiles. MergeCompletedTopic and AddEnrolledCourse must be atomic
// add-unique updates: concurrent writers for the same uid never drop each other's entries.
type Store interface {
	Fetch(ctx context.Context, uid string) (*Profile, error)
	// Create writes p if no profile exists for p.UID yet. It is a no-op otherwise.
	Create(ctx context.Context, p Profile) error
	MergeCompletedTopic(ctx context.Context, uid, topicID string) error
	AddEnrolledCourse(ctx context.Context, uid, courseID string) error
	SetRole(ctx context.Context, uid string, role Role) error
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	profiles map[string]*Profile
	mu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]*Profile),
	}
}

func (s *MemoryStore) Fetch(_ context.Context, uid string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[uid]
	if !ok {
		return nil, ErrNotFound
	}
	out := p.Clone()
	out.Role = NormalizeRole(string(out.Role))
	return &out, nil
}

func (s *MemoryStore) Create(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.UID]; exists {
		return nil
	}
	stored := p.Clone()
	s.profiles[p.UID] = &stored
	return nil
}

func (s *MemoryStore) MergeCompletedTopic(_ context.Context, uid, topicID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[uid]
	if !ok {
		return ErrNotFound
	}
	p.MarkCompleted(topicID)
	return nil
}

func (s *MemoryStore) AddEnrolledCourse(_ context.Context, uid, courseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[uid]
	if !ok {
		return ErrNotFound
	}
	p.Enroll(courseID)
	return nil
}

func (s *MemoryStore) SetRole(_ context.Context, uid string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[uid]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	return nil
}

// FetchMany returns the profiles that exist among uids, in the order given.
func FetchMany(ctx context.Context, s Store, uids []string) ([]Profile, error) {
	out := make([]Profile, 0, len(uids))
	for _, uid := range uids {
		p, err := s.Fetch(ctx, uid)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}
