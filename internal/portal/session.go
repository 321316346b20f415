package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/planea/portal/internal/activity"
	"github.com/planea/portal/internal/curriculum"
	"github.com/planea/portal/internal/identity"
	"github.com/planea/portal/internal/profile"
)

var (
	// ErrBusy is returned when a login is attempted while another is in flight.
	ErrBusy = errors.New("login already in progress")
	// ErrForbidden is returned when the signed-in role may not open a view.
	ErrForbidden = errors.New("view not allowed for role")
	// ErrNotInTopic is returned by FinishTopic outside a topic view.
	ErrNotInTopic = errors.New("no topic is open")
	// ErrProfileNotLoaded is returned by FinishTopic while a signed-in user's
	// profile is still loading or failed to load. Nothing is written.
	ErrProfileNotLoaded = errors.New("profile not loaded")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

const (
	progressErrorMessage  = "No se pudo guardar tu progreso. Intenta nuevamente."
	federatedErrorMessage = "Error al iniciar sesión con Google. Intenta nuevamente."
)

// Catalog is the curriculum a session navigates.
type Catalog interface {
	ModuleFinder
	Modules() []curriculum.Module
	Content(topicID string) (curriculum.TopicContent, bool)
}

// AuthError is the user-facing login failure currently on display.
type AuthError struct {
	Category identity.Category `json:"category"`
	Message  string            `json:"message"`
}

// SessionConfig wires a Session to its collaborators.
type SessionConfig struct {
	ID       string
	Provider identity.Provider
	Profiles profile.Store
	Pending  PendingStore
	Catalog  Catalog
	Events   activity.Logger
	Now      func() time.Time
}

// Session is the explicit state of one browser session: identity, profile, current
// view, deferred completion and login prompt. Remote calls run without holding the
// session lock; their results are applied by the uid captured when they started.
type Session struct {
	id         string
	provider   identity.Provider
	profiles   profile.Store
	catalog    Catalog
	reconciler *Reconciler
	events     activity.Logger
	now        func() time.Time

	mu          sync.Mutex
	baseCtx     context.Context
	router      *Router
	identity    *identity.Identity
	profile     *profile.Profile
	authErr     *AuthError
	progressErr string
	loginOpen   bool
	loginBusy   bool
	lastActive  time.Time
	unsubscribe func()
	closed      bool

	subMu       sync.Mutex
	subscribers map[int]chan struct{}
	nextSub     int
}

// NewSession creates a session on the Dashboard. Call Start to begin observing identity.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("session id is required")
	}
	if cfg.Provider == nil || cfg.Profiles == nil || cfg.Pending == nil || cfg.Catalog == nil {
		return nil, fmt.Errorf("session %s: provider, profiles, pending store and catalog are required", cfg.ID)
	}
	if cfg.Events == nil {
		cfg.Events = activity.Nop{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Session{
		id:          cfg.ID,
		provider:    cfg.Provider,
		profiles:    cfg.Profiles,
		catalog:     cfg.Catalog,
		reconciler:  NewReconciler(cfg.Profiles, cfg.Pending, cfg.ID),
		events:      cfg.Events,
		now:         cfg.Now,
		baseCtx:     context.Background(),
		router:      NewRouter(cfg.Catalog),
		lastActive:  cfg.Now(),
		subscribers: make(map[int]chan struct{}),
	}, nil
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Start subscribes to identity changes. The provider reports the current identity
// immediately. Calling Start again is a no-op.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.unsubscribe != nil || s.closed {
		s.mu.Unlock()
		return
	}
	s.baseCtx = context.WithoutCancel(ctx)
	// Placeholder so a re-entrant Start during the first callback stays a no-op.
	s.unsubscribe = func() {}
	s.mu.Unlock()

	unsubscribe := s.provider.Observe(s.onIdentity)

	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
}

// Close unsubscribes from the provider, drops any pending completion and ends
// every change subscription.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if err := s.reconciler.Discard(ctx); err != nil {
		slog.Warn("dropping pending completion failed", "session_id", s.id, "error", err)
	}

	s.subMu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()
}

// LastActive returns when the session last handled an operation.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch marks the session as in use without changing its state.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.mu.Unlock()
}

// Subscribe returns a channel that receives a value after state changes. Bursts
// coalesce into one notification. The channel is closed when the session closes.
func (s *Session) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			close(c)
			delete(s.subscribers, id)
		}
	}
}

func (s *Session) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// navigate runs a router transition under the session lock.
func (s *Session) navigate(fn func(r *Router) bool) bool {
	s.mu.Lock()
	s.lastActive = s.now()
	changed := fn(s.router)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return changed
}

// SelectModule shows a module. Unknown ids are refused.
func (s *Session) SelectModule(moduleID int) bool {
	return s.navigate(func(r *Router) bool { return r.SelectModule(moduleID) })
}

// SelectTopic opens a topic of the module on screen.
func (s *Session) SelectTopic(topicID string) bool {
	return s.navigate(func(r *Router) bool { return r.SelectTopic(topicID) })
}

// JumpToTopic opens a topic of any module, as the sidebar does.
func (s *Session) JumpToTopic(moduleID int, topicID string) bool {
	return s.navigate(func(r *Router) bool { return r.JumpToTopic(moduleID, topicID) })
}

// Back goes one level up.
func (s *Session) Back() bool {
	return s.navigate(func(r *Router) bool { return r.Back() })
}

func (s *Session) OpenAdminDashboard() error {
	return s.open(AdminDashboard{}, profile.RoleAdmin)
}

func (s *Session) OpenProfessorDashboard() error {
	return s.open(ProfessorDashboard{}, profile.RoleProfessor, profile.RoleAdmin)
}

func (s *Session) OpenTemplateEditor(templateID string) error {
	return s.open(TemplateEditor{TemplateID: templateID}, profile.RoleAdmin)
}

func (s *Session) OpenCourseEditor(courseID string) error {
	return s.open(CourseEditor{CourseID: courseID}, profile.RoleProfessor, profile.RoleAdmin)
}

// OpenCourseViewer is open to every signed-in role.
func (s *Session) OpenCourseViewer(courseID string) error {
	return s.open(CourseViewer{CourseID: courseID})
}

func (s *Session) open(v View, roles ...profile.Role) error {
	s.mu.Lock()
	s.lastActive = s.now()
	if s.identity == nil || s.profile == nil {
		s.mu.Unlock()
		return ErrForbidden
	}
	if len(roles) > 0 && !slices.Contains(roles, s.profile.Role) {
		s.mu.Unlock()
		return ErrForbidden
	}
	s.router.Open(v)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Role returns the signed-in role, or "" when nobody is signed in.
func (s *Session) Role() profile.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return ""
	}
	return s.profile.Role
}

// UID returns the signed-in uid, or "".
func (s *Session) UID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.UID
}

// Token returns the resume token of the current sign-in, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return ""
	}
	return s.identity.Token
}

// FinishTopic records completion of the open topic. Signed in, the topic is merged
// into the profile and the view returns to the owning module. Signed out, the topic
// becomes the pending completion and the login prompt opens.
func (s *Session) FinishTopic(ctx context.Context) error {
	s.mu.Lock()
	s.lastActive = s.now()
	tv, ok := s.router.Current().(TopicView)
	if !ok {
		s.mu.Unlock()
		return ErrNotInTopic
	}
	var uid string
	if s.identity != nil {
		if s.profile == nil {
			s.mu.Unlock()
			return ErrProfileNotLoaded
		}
		uid = s.identity.UID
	}
	s.progressErr = ""
	s.mu.Unlock()

	topicID := tv.Topic.ID
	outcome, err := s.reconciler.Record(ctx, uid, topicID)
	if err != nil {
		slog.Error("recording topic completion failed",
			"session_id", s.id, "uid", uid, "topic_id", topicID, "error", err)
		s.mu.Lock()
		s.progressErr = progressErrorMessage
		s.mu.Unlock()
		s.notify()
		return err
	}

	if outcome == OutcomeDeferred {
		s.mu.Lock()
		s.loginOpen = true
		s.mu.Unlock()

		slog.Info("completion deferred until login", "session_id", s.id, "topic_id", topicID)
		s.logEvent(ctx, activity.TypeCompletionDeferred, "", map[string]any{"topic_id": topicID})
		s.notify()
		return nil
	}

	s.applyCompletion(uid, topicID, true)
	s.logEvent(ctx, activity.TypeTopicCompleted, uid, map[string]any{"topic_id": topicID})
	s.notify()
	return nil
}

// applyCompletion reflects a recorded completion in memory. It only touches the
// profile of the uid the write was issued for.
func (s *Session) applyCompletion(uid, topicID string, leaveTopic bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profile != nil && s.profile.UID == uid {
		s.profile.MarkCompleted(topicID)
	}
	if !leaveTopic {
		return
	}
	if tv, ok := s.router.Current().(TopicView); ok && tv.Topic.ID == topicID {
		s.router.FinishTopic()
	}
}

// OpenLogin shows the login prompt.
func (s *Session) OpenLogin() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.loginOpen = true
	s.mu.Unlock()
	s.notify()
}

// CancelLogin hides the login prompt. A pending completion is kept.
func (s *Session) CancelLogin() {
	s.mu.Lock()
	s.lastActive = s.now()
	s.loginOpen = false
	s.authErr = nil
	s.mu.Unlock()
	s.notify()
}

// ClearAuthError removes the displayed login failure.
func (s *Session) ClearAuthError() {
	s.mu.Lock()
	s.lastActive = s.now()
	changed := s.authErr != nil
	s.authErr = nil
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// LoginWithPassword signs in, or registers when register is set. Provider failures
// are kept as the session's AuthError and do not return an error.
func (s *Session) LoginWithPassword(ctx context.Context, email, password string, register bool) error {
	return s.login(ctx, "password", func() (*identity.Identity, error) {
		if register {
			return s.provider.RegisterWithPassword(ctx, email, password)
		}
		return s.provider.SignInWithPassword(ctx, email, password)
	})
}

// LoginFederated signs in with a credential from the federated provider.
func (s *Session) LoginFederated(ctx context.Context, credential string) error {
	return s.login(ctx, "federated", func() (*identity.Identity, error) {
		return s.provider.SignInFederated(ctx, credential)
	})
}

func (s *Session) login(ctx context.Context, method string, call func() (*identity.Identity, error)) error {
	s.mu.Lock()
	s.lastActive = s.now()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.loginBusy {
		s.mu.Unlock()
		return ErrBusy
	}
	s.loginBusy = true
	s.authErr = nil
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loginBusy = false
		s.mu.Unlock()
		s.notify()
	}()

	id, err := call()
	if err != nil {
		authErr := classifyLoginError(method, err)
		slog.Warn("login failed", "session_id", s.id, "method", method, "category", authErr.Category, "error", err)
		s.mu.Lock()
		s.authErr = &authErr
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.loginOpen = false
	s.mu.Unlock()

	slog.Info("login succeeded", "session_id", s.id, "uid", id.UID, "method", method)
	s.logEvent(ctx, activity.TypeLogin, id.UID, map[string]any{"method": method})

	topicID, err := s.reconciler.Resolve(ctx, id.UID)
	switch {
	case err != nil:
		slog.Error("recording pending completion failed",
			"session_id", s.id, "uid", id.UID, "topic_id", topicID, "error", err)
		if topicID != "" {
			s.mu.Lock()
			s.progressErr = progressErrorMessage
			s.mu.Unlock()
		}
	case topicID != "":
		slog.Info("pending completion recorded", "session_id", s.id, "uid", id.UID, "topic_id", topicID)
		s.applyCompletion(id.UID, topicID, false)
		s.logEvent(ctx, activity.TypeTopicCompleted, id.UID, map[string]any{"topic_id": topicID, "deferred": true})
	}
	return nil
}

func classifyLoginError(method string, err error) AuthError {
	if method == "federated" {
		return AuthError{Category: identity.CategoryUnknown, Message: federatedErrorMessage}
	}
	c := identity.Classify(err)
	return AuthError{Category: c, Message: c.Message()}
}

// Logout signs out and returns to the Dashboard regardless of the provider's answer.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.lastActive = s.now()
	var uid string
	if s.identity != nil {
		uid = s.identity.UID
	}
	s.mu.Unlock()

	if err := s.provider.SignOut(ctx); err != nil {
		slog.Warn("provider sign-out failed", "session_id", s.id, "error", err)
	}

	s.mu.Lock()
	s.identity = nil
	s.profile = nil
	s.authErr = nil
	s.progressErr = ""
	s.loginOpen = false
	s.router.Reset()
	s.mu.Unlock()

	if uid != "" {
		s.logEvent(ctx, activity.TypeLogout, uid, nil)
	}
	s.notify()
	return nil
}

// onIdentity handles every identity change pushed by the provider.
func (s *Session) onIdentity(id *identity.Identity) {
	s.mu.Lock()
	ctx := s.baseCtx
	if id == nil {
		s.identity = nil
		s.profile = nil
		s.mu.Unlock()
		s.notify()
		return
	}
	captured := *id
	s.identity = &captured
	s.profile = nil
	s.mu.Unlock()

	p, err := s.loadProfile(ctx, captured)

	s.mu.Lock()
	if s.identity == nil || s.identity.UID != captured.UID {
		s.mu.Unlock()
		return
	}
	if err != nil {
		slog.Error("loading profile failed", "session_id", s.id, "uid", captured.UID, "error", err)
		s.router.Reset()
		s.mu.Unlock()
		s.notify()
		return
	}
	s.profile = p
	s.router.DispatchRole(p.Role)
	s.mu.Unlock()

	slog.Debug("profile loaded", "session_id", s.id, "uid", p.UID, "role", p.Role)
	s.notify()
}

// loadProfile fetches the profile for id, creating the default one on first sign-in.
func (s *Session) loadProfile(ctx context.Context, id identity.Identity) (*profile.Profile, error) {
	p, err := s.profiles.Fetch(ctx, id.UID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, profile.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrProfileRead, err)
	}

	if err := s.profiles.Create(ctx, profile.New(id.UID, id.Email, id.Name)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileWrite, err)
	}
	p, err = s.profiles.Fetch(ctx, id.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileRead, err)
	}
	return p, nil
}

// Refresh reloads the signed-in profile from the store, picking up writes made by
// other sessions of the same user. A profile that failed to load at sign-in is
// loaded now and the role view is dispatched as on sign-in.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return nil
	}
	id := *s.identity
	s.mu.Unlock()

	p, err := s.loadProfile(ctx, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.identity != nil && s.identity.UID == id.UID {
		if s.profile == nil {
			s.router.DispatchRole(p.Role)
		}
		s.profile = p
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

func (s *Session) logEvent(ctx context.Context, eventType, uid string, data map[string]any) {
	err := s.events.Log(ctx, activity.Event{
		UID:       uid,
		SessionID: s.id,
		Type:      eventType,
		Data:      data,
		CreatedAt: s.now(),
	})
	if err != nil {
		slog.Warn("logging activity failed", "session_id", s.id, "type", eventType, "error", err)
	}
}
