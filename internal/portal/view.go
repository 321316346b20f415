// Package portal holds the per-session state of the learning portal: which view is
// shown, who is signed in and which topic completions are still waiting for a login.
package portal

import "github.com/planea/portal/internal/curriculum"

// Kind names a View case.
type Kind string

const (
	KindDashboard          Kind = "dashboard"
	KindModule             Kind = "module"
	KindTopic              Kind = "topic"
	KindAdminDashboard     Kind = "admin_dashboard"
	KindProfessorDashboard Kind = "professor_dashboard"
	KindTemplateEditor     Kind = "template_editor"
	KindCourseEditor       Kind = "course_editor"
	KindCourseViewer       Kind = "course_viewer"
)

// View is the closed set of navigational states. Exactly one is active per session.
type View interface {
	Kind() Kind
	view()
}

type (
	Dashboard struct{}

	ModuleView struct {
		Module curriculum.Module
	}

	// TopicView always carries the module it was entered from.
	TopicView struct {
		Module curriculum.Module
		Topic  curriculum.Topic
	}

	AdminDashboard struct{}

	ProfessorDashboard struct{}

	TemplateEditor struct {
		TemplateID string
	}

	CourseEditor struct {
		CourseID string
	}

	CourseViewer struct {
		CourseID string
	}
)

func (Dashboard) Kind() Kind          { return KindDashboard }
func (ModuleView) Kind() Kind         { return KindModule }
func (TopicView) Kind() Kind          { return KindTopic }
func (AdminDashboard) Kind() Kind     { return KindAdminDashboard }
func (ProfessorDashboard) Kind() Kind { return KindProfessorDashboard }
func (TemplateEditor) Kind() Kind     { return KindTemplateEditor }
func (CourseEditor) Kind() Kind       { return KindCourseEditor }
func (CourseViewer) Kind() Kind       { return KindCourseViewer }

func (Dashboard) view()          {}
func (ModuleView) view()         {}
func (TopicView) view()          {}
func (AdminDashboard) view()     {}
func (ProfessorDashboard) view() {}
func (TemplateEditor) view()     {}
func (CourseEditor) view()       {}
func (CourseViewer) view()       {}

// Restricted reports whether v is only rendered for a signed-in user.
func Restricted(v View) bool {
	switch v.(type) {
	case AdminDashboard, ProfessorDashboard, TemplateEditor, CourseEditor, CourseViewer:
		return true
	default:
		return false
	}
}
