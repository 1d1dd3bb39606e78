package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/detova/internal/middleware"
	"github.com/hitoshi/detova/internal/model"
)

type mockHealthChecker struct {
	pingFn func() error
}

func (m *mockHealthChecker) Ping() error {
	if m.pingFn != nil {
		return m.pingFn()
	}
	return nil
}

var _ HealthChecker = (*mockHealthChecker)(nil)

func newTestRouter(t *testing.T, ctrl *mockController) http.Handler {
	t.Helper()

	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	return NewRouter(&RouterDeps{
		HealthChecker:     &mockHealthChecker{},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		Controller:        ctrl,
		AuthConfig:        testAuthConfig(),
		ProjectEngine: &mockProjectEngine{
			projectsFn: func() []model.Project {
				return []model.Project{sampleProject()}
			},
		},
		TaskEngine:       &mockTaskEngine{},
		NotificationFeed: &mockNotificationFeed{},
	})
}

func TestRouter_Health_ReturnsOK(t *testing.T) {
	router := newTestRouter(t, &mockController{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_Health_DatabaseDown_Returns503(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	router := NewRouter(&RouterDeps{
		HealthChecker: &mockHealthChecker{
			pingFn: func() error { return errors.New("connection refused") },
		},
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       limiter,
		Controller:        &mockController{},
		AuthConfig:        testAuthConfig(),
		ProjectEngine:     &mockProjectEngine{},
		TaskEngine:        &mockTaskEngine{},
		NotificationFeed:  &mockNotificationFeed{},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestRouter_APIWithoutSession_Returns401(t *testing.T) {
	router := newTestRouter(t, &mockController{})

	paths := []string{"/api/projects", "/api/tasks", "/api/notifications", "/api/resources"}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
	}
}

func TestRouter_APIWithValidSession_Succeeds(t *testing.T) {
	ctrl := &mockController{
		validateTokenFn: func(token string) (*model.UserProfile, bool) {
			if token == "valid-token" {
				return testProfile(), true
			}
			return nil, false
		},
	}
	router := newTestRouter(t, ctrl)

	req := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "valid-token"})
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp []projectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp) != 1 {
		t.Errorf("len = %d, want 1", len(resp))
	}
}

func TestRouter_AuthMe_AccessibleWithoutSession(t *testing.T) {
	router := newTestRouter(t, &mockController{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRouter_SecurityHeaders_Set(t *testing.T) {
	router := newTestRouter(t, &mockController{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestBannerRouter_AllPathsReturn503(t *testing.T) {
	configErr := model.NewConfigurationMissingError([]string{"DATABASE_URL", "SESSION_SECRET"})
	router := NewBannerRouter(configErr)

	for _, path := range []string{"/api/projects", "/auth/github/login", "/anything"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, rec.Code)
			continue
		}

		var body apiErrorBody
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: invalid JSON: %v", path, err)
		}
		if body.Code != model.ErrCodeConfigurationMissing {
			t.Errorf("%s: Code = %q", path, body.Code)
		}
	}
}

func TestBannerRouter_Health_ReportsConfigurationMissing(t *testing.T) {
	configErr := model.NewConfigurationMissingError([]string{"DATABASE_URL"})
	router := NewBannerRouter(configErr)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["status"] != "configuration_missing" {
		t.Errorf("status = %q", body["status"])
	}
}
