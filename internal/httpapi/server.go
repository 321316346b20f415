// Package httpapi exposes portal sessions, curriculum content and course
// management over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/planea/portal/internal/course"
	"github.com/planea/portal/internal/portal"
	"github.com/planea/portal/internal/profile"
)

// SessionHeader carries the session id on course and admin requests.
const SessionHeader = "X-Session-ID"

const (
	maxBodyBytes = 1 << 20
	checkTimeout = 2 * time.Second
)

// HealthChecker is a dependency probed by /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Config wires the HTTP layer to the application services.
type Config struct {
	Sessions *portal.Manager
	Catalog  portal.Catalog
	Courses  *course.Service
	Profiles profile.Store
	// Checks are probed by /readyz, keyed by name.
	Checks map[string]HealthChecker
	// OriginPatterns are the hosts allowed to open the session stream cross-origin.
	OriginPatterns []string
	// StreamKeepAlive is the ping interval of the session stream. Zero means 30s.
	StreamKeepAlive time.Duration
}

// Server routes HTTP requests to sessions and services.
type Server struct {
	sessions *portal.Manager
	catalog  portal.Catalog
	courses  *course.Service
	profiles profile.Store
	checks   map[string]HealthChecker
	origins   []string
	keepAlive time.Duration
	mux       *http.ServeMux
}

// New builds the server and registers its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Sessions == nil || cfg.Catalog == nil || cfg.Courses == nil || cfg.Profiles == nil {
		return nil, fmt.Errorf("sessions, catalog, courses and profiles are required")
	}
	s := &Server{
		sessions: cfg.Sessions,
		catalog:  cfg.Catalog,
		courses:  cfg.Courses,
		profiles: cfg.Profiles,
		checks:   cfg.Checks,
		origins:   cfg.OriginPatterns,
		keepAlive: cfg.StreamKeepAlive,
		mux:       http.NewServeMux(),
	}
	if s.keepAlive <= 0 {
		s.keepAlive = streamKeepAlive
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)

	s.mux.HandleFunc("POST /v1/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleCloseSession)
	s.mux.HandleFunc("POST /v1/sessions/{id}/navigate", s.handleNavigate)
	s.mux.HandleFunc("POST /v1/sessions/{id}/finish", s.handleFinish)
	s.mux.HandleFunc("POST /v1/sessions/{id}/login", s.handleLogin)
	s.mux.HandleFunc("POST /v1/sessions/{id}/login-prompt", s.handleOpenLogin)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}/login-prompt", s.handleCancelLogin)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}/auth-error", s.handleClearAuthError)
	s.mux.HandleFunc("POST /v1/sessions/{id}/logout", s.handleLogout)
	s.mux.HandleFunc("POST /v1/sessions/{id}/refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /v1/sessions/{id}/ws", s.handleStream)

	s.mux.HandleFunc("GET /v1/modules", s.handleModules)
	s.mux.HandleFunc("GET /v1/topics/{topic}/content", s.handleTopicContent)

	s.mux.HandleFunc("GET /v1/templates", s.handleListTemplates)
	s.mux.HandleFunc("POST /v1/templates", s.handleCreateTemplate)
	s.mux.HandleFunc("GET /v1/templates/{id}", s.handleGetTemplate)
	s.mux.HandleFunc("POST /v1/templates/{id}/modules", s.handleAddModule)
	s.mux.HandleFunc("POST /v1/templates/{id}/resources", s.handleAddResource)
	s.mux.HandleFunc("GET /v1/templates/{id}/content/{topic}", s.handleTemplateContent)

	s.mux.HandleFunc("GET /v1/courses", s.handleListCourses)
	s.mux.HandleFunc("POST /v1/courses", s.handleInstantiateCourse)
	s.mux.HandleFunc("GET /v1/courses/{id}", s.handleGetCourse)
	s.mux.HandleFunc("POST /v1/courses/{id}/announcements", s.handleAddAnnouncement)
	s.mux.HandleFunc("PUT /v1/courses/{id}/published", s.handleSetPublished)
	s.mux.HandleFunc("POST /v1/courses/{id}/published/toggle", s.handleTogglePublished)
	s.mux.HandleFunc("POST /v1/courses/{id}/students", s.handleEnrollStudent)
	s.mux.HandleFunc("GET /v1/courses/{id}/roster.xlsx", s.handleRoster)

	s.mux.HandleFunc("PUT /v1/users/{uid}/role", s.handleSetRole)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	failed := map[string]string{}
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeErr maps service errors onto status codes. Unexpected errors are logged
// and reported without detail.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, portal.ErrSessionNotFound),
		errors.Is(err, course.ErrNotFound),
		errors.Is(err, profile.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, course.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, portal.ErrForbidden), errors.Is(err, errNotOwner):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, errSignedOut):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, portal.ErrBusy), errors.Is(err, portal.ErrNotInTopic):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, portal.ErrSessionClosed):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, portal.ErrProfileRead), errors.Is(err, portal.ErrProfileWrite),
		errors.Is(err, portal.ErrProfileNotLoaded):
		slog.Error("profile store unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "profile store unavailable")
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
