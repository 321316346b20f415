// Package profile holds the persisted record of a user's role, completed topics
// and course enrollments.
package profile

import (
	"encoding/json"
	"slices"
	"sort"
	"strings"
)

// Role is the closed set of portal roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleProfessor Role = "professor"
	RoleStudent   Role = "student"
)

// NormalizeRole maps a stored role value onto the closed enumeration.
// Missing or unrecognized values (profiles written before roles existed) become student.
func NormalizeRole(raw string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleProfessor:
		return RoleProfessor
	default:
		return RoleStudent
	}
}

// TopicSet is a set of topic ids. Insertion order is irrelevant.
type TopicSet map[string]struct{}

// NewTopicSet builds a set from ids, dropping duplicates.
func NewTopicSet(ids ...string) TopicSet {
	s := make(TopicSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id and reports whether it was absent.
func (s TopicSet) Add(id string) bool {
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Has reports whether id is in the set.
func (s TopicSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in lexical order.
func (s TopicSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s TopicSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *TopicSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewTopicSet(ids...)
	return nil
}

// Profile is the document keyed by user identity.
type Profile struct {
	UID             string   `json:"uid"`
	Email           string   `json:"email,omitempty"`
	Name            string   `json:"name,omitempty"`
	Role            Role     `json:"role"`
	CompletedTopics TopicSet `json:"completed_topics"`
	EnrolledCourses []string `json:"enrolled_courses"`
}

// New returns the default profile created on first authentication.
func New(uid, email, name string) Profile {
	return Profile{
		UID:             uid,
		Email:           email,
		Name:            DisplayName(name, email),
		Role:            RoleStudent,
		CompletedTopics: TopicSet{},
		EnrolledCourses: []string{},
	}
}

// HasCompleted reports whether topicID is in the completed set.
func (p *Profile) HasCompleted(topicID string) bool {
	return p != nil && p.CompletedTopics.Has(topicID)
}

// Completed returns the completed topic ids in sorted order.
func (p *Profile) Completed() []string {
	if p == nil {
		return []string{}
	}
	return p.CompletedTopics.Sorted()
}

// MarkCompleted adds topicID to the completed set and reports whether it was new.
func (p *Profile) MarkCompleted(topicID string) bool {
	if p.CompletedTopics == nil {
		p.CompletedTopics = TopicSet{}
	}
	return p.CompletedTopics.Add(topicID)
}

// Enroll appends courseID to the enrollment list unless already present.
func (p *Profile) Enroll(courseID string) bool {
	if slices.Contains(p.EnrolledCourses, courseID) {
		return false
	}
	p.EnrolledCourses = append(p.EnrolledCourses, courseID)
	return true
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	out := p
	out.CompletedTopics = NewTopicSet(p.CompletedTopics.Sorted()...)
	out.EnrolledCourses = append([]string{}, p.EnrolledCourses...)
	return out
}

// DisplayName falls back from the provider name to the email local part, then to "Estudiante".
func DisplayName(name, email string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	if local, _, ok := strings.Cut(email, "@"); ok && local != "" {
		return local
	}
	return "Estudiante"
}
