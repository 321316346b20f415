package httpapi

import (
	"errors"
	"net/http"

	"github.com/planea/portal/internal/portal"
)

// sessionResponse is a session snapshot plus the resume token of the current sign-in.
type sessionResponse struct {
	portal.Snapshot
	Token string `json:"token,omitempty"`
}

type navigateRequest struct {
	Action     string `json:"action"`
	ModuleID   int    `json:"module_id"`
	TopicID    string `json:"topic_id"`
	TemplateID string `json:"template_id"`
	CourseID   string `json:"course_id"`
}

type navigateResponse struct {
	portal.Snapshot
	Changed bool `json:"changed"`
}

type loginRequest struct {
	// Method is "password", "register" or "federated".
	Method     string `json:"method"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Credential string `json:"credential"`
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*portal.Session, bool) {
	sess, err := s.sessions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, sess *portal.Session) {
	writeJSON(w, status, sessionResponse{Snapshot: sess.Snapshot(r.Context()), Token: sess.Token()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.sessions.Create(r.Context(), req.Token)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), r.PathValue("id")); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req navigateRequest
	if !decode(w, r, &req) {
		return
	}

	var (
		changed bool
		err     error
	)
	switch req.Action {
	case "select_module":
		changed = sess.SelectModule(req.ModuleID)
	case "select_topic":
		changed = sess.SelectTopic(req.TopicID)
	case "jump_to_topic":
		changed = sess.JumpToTopic(req.ModuleID, req.TopicID)
	case "back":
		changed = sess.Back()
	case "admin_dashboard":
		changed, err = opened(sess.OpenAdminDashboard())
	case "professor_dashboard":
		changed, err = opened(sess.OpenProfessorDashboard())
	case "template_editor":
		changed, err = opened(sess.OpenTemplateEditor(req.TemplateID))
	case "course_editor":
		changed, err = opened(sess.OpenCourseEditor(req.CourseID))
	case "course_viewer":
		changed, err = opened(sess.OpenCourseViewer(req.CourseID))
	default:
		writeError(w, http.StatusBadRequest, "unknown navigation action "+req.Action)
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, navigateResponse{Snapshot: sess.Snapshot(r.Context()), Changed: changed})
}

func opened(err error) (bool, error) {
	return err == nil, err
}

// handleFinish records the open topic. A failed profile write is reported in the
// snapshot's progress_error so the client can offer a retry.
func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.FinishTopic(r.Context()); err != nil && !errors.Is(err, portal.ErrProfileWrite) {
		writeErr(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, sess)
}

// handleLogin signs the session in. Provider failures are not HTTP errors: they
// show up as the snapshot's auth_error.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	var err error
	switch req.Method {
	case "password":
		err = sess.LoginWithPassword(r.Context(), req.Email, req.Password, false)
	case "register":
		err = sess.LoginWithPassword(r.Context(), req.Email, req.Password, true)
	case "federated":
		err = sess.LoginFederated(r.Context(), req.Credential)
	default:
		writeError(w, http.StatusBadRequest, "unknown login method "+req.Method)
		return
	}
	if err != nil {
		writeErr(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleOpenLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.OpenLogin()
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleCancelLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.CancelLogin()
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleClearAuthError(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	sess.ClearAuthError()
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Logout(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Refresh(r.Context()); err != nil {
		writeErr(w, r, err)
		return
	}
	s.writeSession(w, r, http.StatusOK, sess)
}

func (s *Server) handleModules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"modules": s.catalog.Modules()})
}

func (s *Server) handleTopicContent(w http.ResponseWriter, r *http.Request) {
	c, ok := s.catalog.Content(r.PathValue("topic"))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}
