package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/detova/internal/middleware"
	"github.com/hitoshi/detova/internal/model"
)

// ProjectEngineInterface はプロジェクトハンドラーが必要とする同期エンジンの操作。
type ProjectEngineInterface interface {
	Projects() []model.Project
	AddProject(ctx context.Context, title, description, ownerID string) (*model.Project, error)
	UpdateProject(ctx context.Context, id string, changes model.ProjectChanges) (*model.Project, error)
	DeleteProject(ctx context.Context, id string, confirmed bool) error
}

// ProjectHandler はプロジェクト管理のHTTPハンドラー。
type ProjectHandler struct {
	engine ProjectEngineInterface
}

// NewProjectHandler はProjectHandlerを生成する。
func NewProjectHandler(engine ProjectEngineInterface) *ProjectHandler {
	return &ProjectHandler{engine: engine}
}

// createProjectRequest はプロジェクト作成リクエストのボディ。
type createProjectRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// updateProjectRequest はプロジェクト部分更新リクエストのボディ。
// 省略されたフィールドは変更しない。
type updateProjectRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	ScoreMarket *int    `json:"score_market"`
	ScoreTech   *int    `json:"score_tech"`
}

// projectResponse はプロジェクト情報のAPIレスポンス。
type projectResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	OwnerID     string    `json:"owner_id"`
	ScoreMarket int       `json:"score_market"`
	ScoreTech   int       `json:"score_tech"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListProjects はローカルスナップショットのプロジェクト一覧を返す。
// GET /api/projects
func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects := h.engine.Projects()
	out := make([]projectResponse, len(projects))
	for i, p := range projects {
		out[i] = toProjectResponse(&p)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// CreateProject はプロジェクトを作成する。
// POST /api/projects
func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	profile, err := middleware.ProfileFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	created, err := h.engine.AddProject(r.Context(), req.Title, req.Description, profile.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toProjectResponse(created))
}

// UpdateProject はプロジェクトを部分更新する。
// PATCH /api/projects/:id
func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("リクエストボディの解析に失敗しました"))
		return
	}

	changes := model.ProjectChanges{
		Title:       req.Title,
		Description: req.Description,
		ScoreMarket: req.ScoreMarket,
		ScoreTech:   req.ScoreTech,
	}
	if req.Status != nil {
		s := model.ProjectStatus(*req.Status)
		changes.Status = &s
	}

	updated, err := h.engine.UpdateProject(r.Context(), id, changes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toProjectResponse(updated))
}

// DeleteProject はプロジェクトを削除する。
// 明示的な確認（confirm=true）がない限りリモート呼び出しは発行されない。
// DELETE /api/projects/:id?confirm=true
func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	confirmed := r.URL.Query().Get("confirm") == "true"

	if err := h.engine.DeleteProject(r.Context(), id, confirmed); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toProjectResponse はmodel.ProjectからAPIレスポンスに変換する。
func toProjectResponse(p *model.Project) projectResponse {
	return projectResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Status:      string(p.Status),
		OwnerID:     p.OwnerID,
		ScoreMarket: p.ScoreMarket,
		ScoreTech:   p.ScoreTech,
		CreatedAt:   p.CreatedAt,
	}
}

// apiErrorBody は統一エラーフォーマットのレスポンス。
type apiErrorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeConfigurationMissing:
		return http.StatusServiceUnavailable
	case model.ErrCodeIdentityUnknown, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeDatabaseWrite, model.ErrCodeRemoteRequestFailed:
		return http.StatusBadGateway
	case model.ErrCodeConfirmationRequired:
		return http.StatusBadRequest
	case model.ErrCodeProjectNotFound, model.ErrCodeTaskNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
