package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/detova/internal/middleware"
	"github.com/hitoshi/detova/internal/model"
)

type mockProjectEngine struct {
	projectsFn      func() []model.Project
	addProjectFn    func(ctx context.Context, title, description, ownerID string) (*model.Project, error)
	updateProjectFn func(ctx context.Context, id string, changes model.ProjectChanges) (*model.Project, error)
	deleteProjectFn func(ctx context.Context, id string, confirmed bool) error
}

func (m *mockProjectEngine) Projects() []model.Project {
	if m.projectsFn != nil {
		return m.projectsFn()
	}
	return nil
}

func (m *mockProjectEngine) AddProject(ctx context.Context, title, description, ownerID string) (*model.Project, error) {
	return m.addProjectFn(ctx, title, description, ownerID)
}

func (m *mockProjectEngine) UpdateProject(ctx context.Context, id string, changes model.ProjectChanges) (*model.Project, error) {
	return m.updateProjectFn(ctx, id, changes)
}

func (m *mockProjectEngine) DeleteProject(ctx context.Context, id string, confirmed bool) error {
	return m.deleteProjectFn(ctx, id, confirmed)
}

var _ ProjectEngineInterface = (*mockProjectEngine)(nil)

func testProfile() *model.UserProfile {
	return &model.UserProfile{
		ID:             "github-1001",
		GithubUsername: "hanako_dev",
		DisplayName:    "Hanako Yamada",
		Role:           model.RoleMember,
	}
}

// requestWithProfile は認証済みユーザーとしてリクエストを組み立てる。
func requestWithProfile(method, target string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(middleware.ContextWithProfile(req.Context(), testProfile()))
}

func sampleProject() model.Project {
	return model.Project{
		ID:          "project-1",
		Title:       "社内ナレッジベース",
		Description: "ドキュメント集約",
		Status:      model.ProjectStatusIdea,
		OwnerID:     "github-1001",
		ScoreMarket: 42,
		ScoreTech:   77,
		CreatedAt:   time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestListProjects_ReturnsSnapshot(t *testing.T) {
	engine := &mockProjectEngine{
		projectsFn: func() []model.Project {
			return []model.Project{sampleProject()}
		},
	}
	h := NewProjectHandler(engine)

	req := requestWithProfile(http.MethodGet, "/api/projects", nil)
	rec := httptest.NewRecorder()

	h.ListProjects(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp []projectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("len = %d, want 1", len(resp))
	}
	if resp[0].ID != "project-1" || resp[0].Status != "Idea" {
		t.Errorf("resp[0] = %+v", resp[0])
	}
}

func TestListProjects_EmptySnapshot_ReturnsEmptyArray(t *testing.T) {
	h := NewProjectHandler(&mockProjectEngine{})

	req := requestWithProfile(http.MethodGet, "/api/projects", nil)
	rec := httptest.NewRecorder()

	h.ListProjects(rec, req)

	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestCreateProject_UsesSessionUserAsOwner(t *testing.T) {
	engine := &mockProjectEngine{
		addProjectFn: func(ctx context.Context, title, description, ownerID string) (*model.Project, error) {
			if ownerID != "github-1001" {
				t.Errorf("ownerID = %q, want session user", ownerID)
			}
			p := sampleProject()
			p.Title = title
			p.Description = description
			return &p, nil
		},
	}
	h := NewProjectHandler(engine)

	body := []byte(`{"title":"社内ナレッジベース","description":"ドキュメント集約"}`)
	req := requestWithProfile(http.MethodPost, "/api/projects", body)
	rec := httptest.NewRecorder()

	h.CreateProject(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var resp projectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Title != "社内ナレッジベース" {
		t.Errorf("Title = %q", resp.Title)
	}
}

func TestCreateProject_WithoutProfile_Returns401(t *testing.T) {
	h := NewProjectHandler(&mockProjectEngine{})

	req := httptest.NewRequest(http.MethodPost, "/api/projects", bytes.NewReader([]byte(`{"title":"x"}`)))
	rec := httptest.NewRecorder()

	h.CreateProject(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestCreateProject_InvalidJSON_Returns400(t *testing.T) {
	h := NewProjectHandler(&mockProjectEngine{})

	req := requestWithProfile(http.MethodPost, "/api/projects", []byte(`{broken`))
	rec := httptest.NewRecorder()

	h.CreateProject(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateProject_RemoteFailure_Returns502(t *testing.T) {
	engine := &mockProjectEngine{
		addProjectFn: func(ctx context.Context, title, description, ownerID string) (*model.Project, error) {
			return nil, model.NewRemoteRequestFailedError("プロジェクトの作成")
		},
	}
	h := NewProjectHandler(engine)

	req := requestWithProfile(http.MethodPost, "/api/projects", []byte(`{"title":"x"}`))
	rec := httptest.NewRecorder()

	h.CreateProject(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var body apiErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Code != model.ErrCodeRemoteRequestFailed {
		t.Errorf("Code = %q", body.Code)
	}
}

func TestUpdateProject_PassesPartialChanges(t *testing.T) {
	engine := &mockProjectEngine{
		updateProjectFn: func(ctx context.Context, id string, changes model.ProjectChanges) (*model.Project, error) {
			if id != "project-1" {
				t.Errorf("id = %q", id)
			}
			if changes.Status == nil || *changes.Status != model.ProjectStatusApproved {
				t.Errorf("Status = %v, want Approved", changes.Status)
			}
			// 省略されたフィールドはnilのまま渡される
			if changes.Title != nil || changes.ScoreMarket != nil {
				t.Error("omitted fields must stay nil")
			}
			p := sampleProject()
			p.Status = model.ProjectStatusApproved
			return &p, nil
		},
	}
	h := NewProjectHandler(engine)

	router := chi.NewRouter()
	router.Patch("/api/projects/{id}", h.UpdateProject)

	req := requestWithProfile(http.MethodPatch, "/api/projects/project-1", []byte(`{"status":"Approved"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp projectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Status != "Approved" {
		t.Errorf("Status = %q", resp.Status)
	}
}

func TestUpdateProject_NotFound_Returns404(t *testing.T) {
	engine := &mockProjectEngine{
		updateProjectFn: func(ctx context.Context, id string, changes model.ProjectChanges) (*model.Project, error) {
			return nil, model.NewProjectNotFoundError(id)
		},
	}
	h := NewProjectHandler(engine)

	router := chi.NewRouter()
	router.Patch("/api/projects/{id}", h.UpdateProject)

	req := requestWithProfile(http.MethodPatch, "/api/projects/unknown", []byte(`{"title":"x"}`))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDeleteProject_PropagatesConfirmQuery(t *testing.T) {
	var gotConfirmed bool
	engine := &mockProjectEngine{
		deleteProjectFn: func(ctx context.Context, id string, confirmed bool) error {
			gotConfirmed = confirmed
			return nil
		},
	}
	h := NewProjectHandler(engine)

	router := chi.NewRouter()
	router.Delete("/api/projects/{id}", h.DeleteProject)

	req := requestWithProfile(http.MethodDelete, "/api/projects/project-1?confirm=true", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if !gotConfirmed {
		t.Error("confirmed = false, want true")
	}
}

func TestDeleteProject_WithoutConfirm_Returns400(t *testing.T) {
	engine := &mockProjectEngine{
		deleteProjectFn: func(ctx context.Context, id string, confirmed bool) error {
			if confirmed {
				t.Error("confirmed = true, want false")
			}
			return model.NewConfirmationRequiredError()
		},
	}
	h := NewProjectHandler(engine)

	router := chi.NewRouter()
	router.Delete("/api/projects/{id}", h.DeleteProject)

	req := requestWithProfile(http.MethodDelete, "/api/projects/project-1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body apiErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Code != model.ErrCodeConfirmationRequired {
		t.Errorf("Code = %q", body.Code)
	}
}

func TestHandleServiceError_UnknownError_Returns500(t *testing.T) {
	rec := httptest.NewRecorder()

	handleServiceError(rec, context.DeadlineExceeded)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	var body apiErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("Code = %q", body.Code)
	}
}
