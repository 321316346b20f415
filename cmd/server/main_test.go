package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/planea/portal/internal/identity"
	"github.com/planea/portal/internal/platform/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantJSON  bool
		wantDebug bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, true, false},
		{"text debug", config.LogConfig{Level: "debug", Format: "text"}, false, true},
		{"bad level falls back to info", config.LogConfig{Level: "loud", Format: "json"}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(tt.cfg, &buf)
			logger.Debug("debug line")
			logger.Info("info line", "k", "v")

			out := buf.String()
			if got := strings.Contains(out, "debug line"); got != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.wantDebug)
			}
			if got := strings.HasPrefix(out, "{") || strings.Contains(out, "\n{"); got != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %q", got, tt.wantJSON, out)
			}
		})
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("LEARN_CURRICULUM_PATH", "../../content")
	t.Setenv("LEARN_DATABASE_URL", "")
	t.Setenv("LEARN_CACHE_URL", "")
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return cfg
}

func TestNewApp_InMemory(t *testing.T) {
	cfg := testConfig(t)
	cfg.SeedTemplate = true

	a, err := newApp(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	defer a.close()
	defer a.sessions.CloseAll(context.Background())

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{"healthz returns 200", http.MethodGet, "/healthz", http.StatusOK, `"status":"ok"`},
		{"readyz returns 200", http.MethodGet, "/readyz", http.StatusOK, `"status":"ready"`},
		{"modules are served", http.MethodGet, "/v1/modules", http.StatusOK, `"Diagnósticos"`},
		{"session is created", http.MethodPost, "/v1/sessions", http.StatusCreated, `"kind":"dashboard"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			a.handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNewApp_BadCurriculumPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.CurriculumPath = t.TempDir() + "/missing"
	if _, err := newApp(context.Background(), cfg); err == nil {
		t.Error("newApp() with a missing curriculum should error")
	}
}

func TestNewAuth_RequiresSecret(t *testing.T) {
	if _, err := newAuth(config.AuthConfig{}, identity.NewMemoryAccountStore()); err == nil {
		t.Error("newAuth() without a secret should error")
	}
	auth, err := newAuth(config.AuthConfig{JWTSecret: "s", TokenTTL: 5, GoogleClientID: "client", MinPasswordLength: 8}, identity.NewMemoryAccountStore())
	if err != nil || auth == nil {
		t.Fatalf("newAuth() = %v, %v", auth, err)
	}
}

func TestNewAuth_AccountsSurviveRestart(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "s", TokenTTL: 5, MinPasswordLength: 6}
	accounts := identity.NewMemoryAccountStore()

	first, err := newAuth(cfg, accounts)
	if err != nil {
		t.Fatalf("newAuth() error = %v", err)
	}
	reg, err := first.NewClient().RegisterWithPassword(context.Background(), "ana@example.com", "secreto1")
	if err != nil {
		t.Fatalf("RegisterWithPassword() error = %v", err)
	}

	second, err := newAuth(cfg, accounts)
	if err != nil {
		t.Fatalf("newAuth() error = %v", err)
	}
	got, err := second.NewClient().SignInWithPassword(context.Background(), "ana@example.com", "secreto1")
	if err != nil {
		t.Fatalf("SignInWithPassword() error = %v", err)
	}
	if got.UID != reg.UID {
		t.Errorf("uid = %q, want %q", got.UID, reg.UID)
	}
}
