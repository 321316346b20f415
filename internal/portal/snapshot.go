package portal

import (
	"context"
	"log/slog"

	"github.com/planea/portal/internal/curriculum"
	"github.com/planea/portal/internal/profile"
)

// Snapshot is the rendered state of a session.
type Snapshot struct {
	SessionID string `json:"session_id"`
	// View is nil when a restricted view is active and nobody is signed in.
	View          *ViewSnapshot    `json:"view"`
	Modules       []ModuleSnapshot `json:"modules"`
	User          *UserSnapshot    `json:"user,omitempty"`
	Progress      *Progress        `json:"progress,omitempty"`
	LoginOpen     bool             `json:"login_open"`
	LoginBusy     bool             `json:"login_busy"`
	PendingTopic  string           `json:"pending_topic,omitempty"`
	AuthError     *AuthError       `json:"auth_error,omitempty"`
	ProgressError string           `json:"progress_error,omitempty"`
}

type ViewSnapshot struct {
	Kind       Kind            `json:"kind"`
	Module     *ModuleSnapshot `json:"module,omitempty"`
	Topic      *TopicSnapshot  `json:"topic,omitempty"`
	TemplateID string          `json:"template_id,omitempty"`
	CourseID   string          `json:"course_id,omitempty"`
}

type ModuleSnapshot struct {
	ID        int             `json:"id"`
	Title     string          `json:"title"`
	Topics    []TopicSnapshot `json:"topics"`
	Completed int             `json:"completed"`
}

type TopicSnapshot struct {
	ID        string                   `json:"id"`
	Title     string                   `json:"title"`
	Completed bool                     `json:"completed"`
	Content   *curriculum.TopicContent `json:"content,omitempty"`
}

type UserSnapshot struct {
	UID             string       `json:"uid"`
	Email           string       `json:"email,omitempty"`
	Name            string       `json:"name"`
	Role            profile.Role `json:"role"`
	CompletedTopics []string     `json:"completed_topics"`
	EnrolledCourses []string     `json:"enrolled_courses"`
}

type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}

// Snapshot renders the session and counts as activity. Completion flags are
// derived from the profile's completed set every time.
func (s *Session) Snapshot(ctx context.Context) Snapshot {
	pending, _, err := s.reconciler.Pending(ctx)
	if err != nil {
		slog.Warn("reading pending completion failed", "session_id", s.id, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = s.now()

	var p *profile.Profile
	if s.identity != nil {
		p = s.profile
	}

	snap := Snapshot{
		SessionID:     s.id,
		Modules:       s.moduleSnapshots(p),
		LoginOpen:     s.loginOpen,
		LoginBusy:     s.loginBusy,
		PendingTopic:  pending,
		ProgressError: s.progressErr,
	}
	if s.authErr != nil {
		ae := *s.authErr
		snap.AuthError = &ae
	}

	current := s.router.Current()
	if !Restricted(current) || s.identity != nil {
		snap.View = s.viewSnapshot(current, p)
	}

	if p != nil {
		snap.User = &UserSnapshot{
			UID:             p.UID,
			Email:           p.Email,
			Name:            profile.DisplayName(p.Name, p.Email),
			Role:            p.Role,
			CompletedTopics: p.Completed(),
			EnrolledCourses: append([]string{}, p.EnrolledCourses...),
		}
		snap.Progress = progressOf(snap.Modules)
	}
	return snap
}

func (s *Session) moduleSnapshots(p *profile.Profile) []ModuleSnapshot {
	modules := s.catalog.Modules()
	out := make([]ModuleSnapshot, 0, len(modules))
	for _, m := range modules {
		out = append(out, moduleSnapshot(m, p))
	}
	return out
}

func (s *Session) viewSnapshot(v View, p *profile.Profile) *ViewSnapshot {
	vs := &ViewSnapshot{Kind: v.Kind()}
	switch v := v.(type) {
	case ModuleView:
		ms := moduleSnapshot(v.Module, p)
		vs.Module = &ms
	case TopicView:
		ms := moduleSnapshot(v.Module, p)
		vs.Module = &ms
		ts := TopicSnapshot{ID: v.Topic.ID, Title: v.Topic.Title, Completed: p.HasCompleted(v.Topic.ID)}
		if c, ok := s.catalog.Content(v.Topic.ID); ok {
			ts.Content = &c
		}
		vs.Topic = &ts
	case TemplateEditor:
		vs.TemplateID = v.TemplateID
	case CourseEditor:
		vs.CourseID = v.CourseID
	case CourseViewer:
		vs.CourseID = v.CourseID
	}
	return vs
}

func moduleSnapshot(m curriculum.Module, p *profile.Profile) ModuleSnapshot {
	ms := ModuleSnapshot{ID: m.ID, Title: m.Title, Topics: make([]TopicSnapshot, 0, len(m.Topics))}
	for _, t := range m.Topics {
		done := p.HasCompleted(t.ID)
		if done {
			ms.Completed++
		}
		ms.Topics = append(ms.Topics, TopicSnapshot{ID: t.ID, Title: t.Title, Completed: done})
	}
	return ms
}

func progressOf(modules []ModuleSnapshot) *Progress {
	var pr Progress
	for _, m := range modules {
		pr.Total += len(m.Topics)
		pr.Completed += m.Completed
	}
	if pr.Total > 0 {
		pr.Percent = pr.Completed * 100 / pr.Total
	}
	return &pr
}
