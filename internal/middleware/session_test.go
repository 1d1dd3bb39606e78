package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/detova/internal/model"
)

// --- モック定義 ---

type mockValidator struct {
	validateFn func(token string) (*model.UserProfile, bool)
}

func (m *mockValidator) ValidateToken(token string) (*model.UserProfile, bool) {
	if m.validateFn != nil {
		return m.validateFn(token)
	}
	return nil, false
}

var _ TokenValidator = (*mockValidator)(nil)

// --- テスト ---

func TestSessionMiddleware_ValidToken_InjectsProfile(t *testing.T) {
	profile := &model.UserProfile{ID: "github-1001", GithubUsername: "hanako_dev"}
	validator := &mockValidator{
		validateFn: func(token string) (*model.UserProfile, bool) {
			if token == "valid-token" {
				return profile, true
			}
			return nil, false
		},
	}

	var gotProfile *model.UserProfile
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := ProfileFromContext(r.Context())
		if err != nil {
			t.Fatalf("ProfileFromContext() error = %v", err)
		}
		gotProfile = p
		w.WriteHeader(http.StatusOK)
	})

	handler := NewSessionMiddleware(validator)(next)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-token"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotProfile != profile {
		t.Error("expected injected profile to match")
	}
}

func TestSessionMiddleware_MissingCookie_Returns401(t *testing.T) {
	handler := NewSessionMiddleware(&mockValidator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestSessionMiddleware_InvalidToken_Returns401(t *testing.T) {
	handler := NewSessionMiddleware(&mockValidator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "forged"})
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestProfileFromContext_WithoutProfile_ReturnsError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := ProfileFromContext(req.Context()); err == nil {
		t.Error("expected error for missing profile")
	}
}

func TestContextWithProfile_RoundTrips(t *testing.T) {
	profile := &model.UserProfile{ID: "github-1001"}
	ctx := ContextWithProfile(httptest.NewRequest(http.MethodGet, "/", nil).Context(), profile)

	got, err := ProfileFromContext(ctx)
	if err != nil {
		t.Fatalf("ProfileFromContext() error = %v", err)
	}
	if got != profile {
		t.Error("profile mismatch")
	}
}
