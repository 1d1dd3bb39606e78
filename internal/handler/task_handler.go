package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/detova/internal/middleware"
	"github.com/hitoshi/detova/internal/model"
)

// TaskEngineInterface はタスクハンドラーが必要とする同期エンジンの操作。
type TaskEngineInterface interface {
	Tasks() []model.Task
	AddTask(ctx context.Context, description, projectID string, isBlocker bool, assignedTo string) (*model.Task, error)
	UpdateTask(ctx context.Context, id string, changes model.TaskChanges) (*model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// TaskHandler はタスク管理のHTTPハンドラー。
type TaskHandler struct {
	engine TaskEngineInterface
}

// NewTaskHandler はTaskHandlerを生成する。
func NewTaskHandler(engine TaskEngineInterface) *TaskHandler {
	return &TaskHandler{engine: engine}
}

// createTaskRequest はタスク作成リクエストのボディ。
type createTaskRequest struct {
	Description string `json:"description"`
	ProjectID   string `json:"project_id"`
	IsBlocker   bool   `json:"is_blocker"`
}

// updateTaskRequest はタスク部分更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateTaskRequest struct {
	Description *string `json:"description"`
	Status      *string `json:"status"`
	IsBlocker   *bool   `json:"is_blocker"`
}

// taskResponse はタスク情報のAPIレスポンス。
type taskResponse struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AssignedTo  string    `json:"assigned_to"`
	ProjectID   string    `json:"project_id"`
	Status      string    `json:"status"`
	IsBlocker   bool      `json:"is_blocker"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListTasks はローカルスナップショットのタスク一覧を返す。
// GET /api/tasks
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks := h.engine.Tasks()
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = toTaskResponse(&t)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// CreateTask はタスクを作成する。担当者は作成ユーザー自身となる。
// POST /api/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	profile, err := middleware.ProfileFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	created, err := h.engine.AddTask(r.Context(), req.Description, req.ProjectID, req.IsBlocker, profile.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toTaskResponse(created))
}

// UpdateTask はタスクを部分更新する。
// PATCH /api/tasks/:id
func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	changes := model.TaskChanges{
		Description: req.Description,
		IsBlocker:   req.IsBlocker,
	}
	if req.Status != nil {
		s := model.TaskStatus(*req.Status)
		changes.Status = &s
	}

	updated, err := h.engine.UpdateTask(r.Context(), id, changes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toTaskResponse(updated))
}

// DeleteTask はタスクを削除する。
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.engine.DeleteTask(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toTaskResponse はmodel.TaskからAPIレスポンスに変換する。
func toTaskResponse(t *model.Task) taskResponse {
	return taskResponse{
		ID:          t.ID,
		Description: t.Description,
		AssignedTo:  t.AssignedTo,
		ProjectID:   t.ProjectID,
		Status:      string(t.Status),
		IsBlocker:   t.IsBlocker,
		CreatedAt:   t.CreatedAt,
	}
}
