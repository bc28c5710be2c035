package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequireAuthAllowsReadsWithoutToken(t *testing.T) {
	am, err := NewAuthMiddleware(Security{Enabled: true, AllowedTokens: []string{"secret"}}, discardLogger())
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}

	called := false
	handler := am.RequireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodGet, "/tasks/1", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if !called {
		t.Error("expected a GET request to pass through without auth")
	}
}

func TestRequireAuthRejectsMissingTokenOnWrite(t *testing.T) {
	am, err := NewAuthMiddleware(Security{Enabled: true, AllowedTokens: []string{"secret"}}, discardLogger())
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}

	called := false
	handler := am.RequireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/tasks", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if called {
		t.Error("expected the handler to be rejected without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	am, err := NewAuthMiddleware(Security{Enabled: true, AllowedTokens: []string{"secret"}}, discardLogger())
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}

	called := false
	handler := am.RequireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if !called {
		t.Error("expected the handler to run with a valid token")
	}
}

func TestRequireAuthDisabledAllowsLocalRequests(t *testing.T) {
	am, err := NewAuthMiddleware(Security{Enabled: false, RequireLocalOnly: true}, discardLogger())
	if err != nil {
		t.Fatalf("NewAuthMiddleware: %v", err)
	}

	called := false
	handler := am.RequireAuth(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/tasks", nil)
	req.RemoteAddr = "127.0.0.1:12345"
	rec := httptest.NewRecorder()
	handler(rec, req)

	if !called {
		t.Error("expected a local request to pass when auth is disabled")
	}
}
