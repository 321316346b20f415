package portal

import (
	"github.com/planea/portal/internal/curriculum"
	"github.com/planea/portal/internal/profile"
)

// ModuleFinder looks modules up by id.
type ModuleFinder interface {
	Module(id int) (curriculum.Module, bool)
}

// Router owns the current View and the transitions between views.
// It is not safe for concurrent use; Session serializes access.
type Router struct {
	modules ModuleFinder
	current View
}

// NewRouter starts on the Dashboard.
func NewRouter(modules ModuleFinder) *Router {
	return &Router{modules: modules, current: Dashboard{}}
}

// Current returns the active view.
func (r *Router) Current() View {
	return r.current
}

// SelectModule shows module id. Only unknown ids are refused.
func (r *Router) SelectModule(id int) bool {
	m, ok := r.modules.Module(id)
	if !ok {
		return false
	}
	r.current = ModuleView{Module: m}
	return true
}

// SelectTopic opens a topic of the module currently shown. The topic must belong to
// that module; otherwise, or when no module is shown, nothing changes.
func (r *Router) SelectTopic(topicID string) bool {
	mv, ok := r.current.(ModuleView)
	if !ok {
		return false
	}
	t, ok := mv.Module.FindTopic(topicID)
	if !ok {
		return false
	}
	r.current = TopicView{Module: mv.Module, Topic: t}
	return true
}

// JumpToTopic opens a topic from anywhere, looking it up in the target module rather
// than the one currently shown.
func (r *Router) JumpToTopic(moduleID int, topicID string) bool {
	m, ok := r.modules.Module(moduleID)
	if !ok {
		return false
	}
	t, ok := m.FindTopic(topicID)
	if !ok {
		return false
	}
	r.current = TopicView{Module: m, Topic: t}
	return true
}

// Back goes one level up. Dashboards have no parent and are left unchanged.
func (r *Router) Back() bool {
	switch v := r.current.(type) {
	case TopicView:
		r.current = ModuleView{Module: v.Module}
	case ModuleView:
		r.current = Dashboard{}
	case TemplateEditor:
		r.current = AdminDashboard{}
	case CourseEditor:
		r.current = ProfessorDashboard{}
	case CourseViewer:
		r.current = Dashboard{}
	default:
		return false
	}
	return true
}

// FinishTopic returns from a topic to its owning module.
func (r *Router) FinishTopic() bool {
	v, ok := r.current.(TopicView)
	if !ok {
		return false
	}
	r.current = ModuleView{Module: v.Module}
	return true
}

// Open switches to v unconditionally. Callers check authorization.
func (r *Router) Open(v View) {
	r.current = v
}

// DispatchRole moves to the landing view of a freshly authenticated role.
func (r *Router) DispatchRole(role profile.Role) {
	switch profile.NormalizeRole(string(role)) {
	case profile.RoleAdmin:
		r.current = AdminDashboard{}
	case profile.RoleProfessor:
		r.current = ProfessorDashboard{}
	default:
		r.current = Dashboard{}
	}
}

// Reset returns to the Dashboard.
func (r *Router) Reset() {
	r.current = Dashboard{}
}
