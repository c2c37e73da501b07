package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestInternalAuthMiddleware_RejectsWrongKey(t *testing.T) {
	next, called := okHandler()
	handler := InternalAuthMiddleware("secret-key")(next)

	req := httptest.NewRequest(http.MethodPost, "/internal/accounts", nil)
	req.Header.Set("X-Internal-API-Key", "wrong-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if *called {
		t.Fatal("handler must not run with a wrong key")
	}
}

func TestInternalAuthMiddleware_AcceptsMatchingKey(t *testing.T) {
	next, called := okHandler()
	handler := InternalAuthMiddleware("secret-key")(next)

	req := httptest.NewRequest(http.MethodPost, "/internal/accounts", nil)
	req.Header.Set("X-Internal-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !*called {
		t.Fatal("expected handler to run with the correct key")
	}
}

func TestInternalAuthMiddleware_EmptyConfiguredKeyLocksRoute(t *testing.T) {
	next, called := okHandler()
	handler := InternalAuthMiddleware("")(next)

	req := httptest.NewRequest(http.MethodPost, "/internal/accounts", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when no key is configured, got %d", rec.Code)
	}
	if *called {
		t.Fatal("handler must not run when no key is configured")
	}
}

func TestRequireAdmin_RejectsNonAdminRole(t *testing.T) {
	next, called := okHandler()
	handler := RequireAdmin(next)

	req := httptest.NewRequest(http.MethodGet, "/admin/deposits/pending", nil)
	req = req.WithContext(context.WithValue(req.Context(), roleKey, "user"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if *called {
		t.Fatal("handler must not run for non-admin role")
	}
}

func TestRequireAdmin_AllowsAdminRole(t *testing.T) {
	next, called := okHandler()
	handler := RequireAdmin(next)

	req := httptest.NewRequest(http.MethodGet, "/admin/deposits/pending", nil)
	req = req.WithContext(context.WithValue(req.Context(), roleKey, "admin"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !*called {
		t.Fatal("expected handler to run for admin role")
	}
}
