package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/planea/portal/internal/course"
	"github.com/planea/portal/internal/portal"
	"github.com/planea/portal/internal/profile"
)

var (
	errSignedOut = errors.New("sign-in required")
	errNotOwner  = errors.New("course belongs to another professor")
)

var (
	staff      = []profile.Role{profile.RoleAdmin, profile.RoleProfessor}
	adminsOnly = []profile.Role{profile.RoleAdmin}
)

// caller is the signed-in user behind a course request.
type caller struct {
	uid  string
	role profile.Role
}

// authorize resolves the session named by SessionHeader and checks its role.
// No roles means any signed-in user.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, roles ...profile.Role) (caller, bool) {
	id := r.Header.Get(SessionHeader)
	if id == "" {
		writeErr(w, r, errSignedOut)
		return caller{}, false
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if errors.Is(err, portal.ErrSessionNotFound) {
		writeErr(w, r, errSignedOut)
		return caller{}, false
	}
	if err != nil {
		writeErr(w, r, err)
		return caller{}, false
	}

	uid := sess.UID()
	if uid == "" {
		writeErr(w, r, errSignedOut)
		return caller{}, false
	}
	// The session caches its profile, so the role is read back from the store to
	// pick up changes made through handleSetRole.
	p, err := s.profiles.Fetch(r.Context(), uid)
	if errors.Is(err, profile.ErrNotFound) {
		writeErr(w, r, errSignedOut)
		return caller{}, false
	}
	if err != nil {
		writeErr(w, r, err)
		return caller{}, false
	}

	c := caller{uid: uid, role: p.Role}
	if len(roles) > 0 && !slices.Contains(roles, c.role) {
		writeErr(w, r, portal.ErrForbidden)
		return caller{}, false
	}
	return c, true
}

// ownedCourse loads the course in the path and checks that c may manage it.
func (s *Server) ownedCourse(w http.ResponseWriter, r *http.Request, c caller) (*course.Instance, bool) {
	inst, err := s.courses.GetCourse(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return nil, false
	}
	if c.role != profile.RoleAdmin && inst.ProfessorID != c.uid {
		writeErr(w, r, errNotOwner)
		return nil, false
	}
	return inst, true
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, staff...); !ok {
		return
	}
	templates, err := s.courses.ListTemplates(r.Context())
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": nonNil(templates)})
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r, adminsOnly...)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	t, err := s.courses.CreateTemplate(r.Context(), req.Title, req.Description, c.uid)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, staff...); !ok {
		return
	}
	t, err := s.courses.GetTemplate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleAddModule(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, adminsOnly...); !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
	}
	if !decode(w, r, &req) {
		return
	}
	m, err := s.courses.AddModuleToTemplate(r.Context(), r.PathValue("id"), req.Title)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleAddResource(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, adminsOnly...); !ok {
		return
	}
	var req struct {
		Title string              `json:"title"`
		URL   string              `json:"url"`
		Type  course.ResourceType `json:"type"`
	}
	if !decode(w, r, &req) {
		return
	}
	res, err := s.courses.AddResourceToTemplate(r.Context(), r.PathValue("id"), req.Title, req.URL, req.Type)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleTemplateContent(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r); !ok {
		return
	}
	c, err := s.courses.TemplateContent(r.Context(), r.PathValue("id"), r.PathValue("topic"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleListCourses lists the caller's own courses for staff and the published
// enrollments for students.
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r)
	if !ok {
		return
	}
	var (
		courses []course.Instance
		err     error
	)
	if c.role == profile.RoleStudent {
		courses, err = s.courses.StudentCourses(r.Context(), c.uid)
	} else {
		courses, err = s.courses.CoursesByProfessor(r.Context(), c.uid)
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"courses": nonNil(courses)})
}

func (s *Server) handleInstantiateCourse(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r, staff...)
	if !ok {
		return
	}
	var req struct {
		TemplateID string `json:"template_id"`
		Title      string `json:"title"`
		Section    string `json:"section"`
	}
	if !decode(w, r, &req) {
		return
	}
	inst, err := s.courses.InstantiateCourse(r.Context(), req.TemplateID, c.uid, req.Title, req.Section)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inst)
}

// handleGetCourse serves staff who manage the course and students enrolled in a
// published course.
func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r)
	if !ok {
		return
	}
	if c.role != profile.RoleStudent {
		inst, ok := s.ownedCourse(w, r, c)
		if ok {
			writeJSON(w, http.StatusOK, inst)
		}
		return
	}

	inst, err := s.courses.GetCourse(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return
	}
	if !inst.IsPublished || !slices.Contains(inst.Students, c.uid) {
		writeErr(w, r, fmt.Errorf("course %s: %w", inst.ID, course.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

func (s *Server) handleAddAnnouncement(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r, staff...)
	if !ok {
		return
	}
	inst, ok := s.ownedCourse(w, r, c)
	if !ok {
		return
	}
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if !decode(w, r, &req) {
		return
	}
	a, err := s.courses.AddAnnouncement(r.Context(), inst.ID, req.Title, req.Content)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleSetPublished(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r, staff...)
	if !ok {
		return
	}
	inst, ok := s.ownedCourse(w, r, c)
	if !ok {
		return
	}
	var req struct {
		Published bool `json:"published"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.courses.SetPublished(r.Context(), inst.ID, req.Published); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"published": req.Published})
}

func (s *Server) handleTogglePublished(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r, staff...)
	if !ok {
		return
	}
	inst, ok := s.ownedCourse(w, r, c)
	if !ok {
		return
	}
	published, err := s.courses.TogglePublished(r.Context(), inst.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"published": published})
}

func (s *Server) handleEnrollStudent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r, staff...)
	if !ok {
		return
	}
	inst, ok := s.ownedCourse(w, r, c)
	if !ok {
		return
	}
	var req struct {
		UID string `json:"uid"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := s.courses.EnrollStudent(r.Context(), inst.ID, req.UID); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	c, ok := s.authorize(w, r, staff...)
	if !ok {
		return
	}
	inst, ok := s.ownedCourse(w, r, c)
	if !ok {
		return
	}
	_, rows, err := s.courses.Roster(r.Context(), inst.ID)
	if err != nil {
		writeErr(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="roster-%s.xlsx"`, inst.ID))
	if err := course.ExportRoster(w, rows); err != nil {
		slog.Error("writing roster failed", "course_id", inst.ID, "error", err)
	}
}

func (s *Server) handleSetRole(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, adminsOnly...); !ok {
		return
	}
	var req struct {
		Role profile.Role `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}
	switch req.Role {
	case profile.RoleAdmin, profile.RoleProfessor, profile.RoleStudent:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown role %q", req.Role))
		return
	}
	uid := r.PathValue("uid")
	if err := s.profiles.SetRole(r.Context(), uid, req.Role); err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uid": uid, "role": string(req.Role)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
