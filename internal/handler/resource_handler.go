package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/detova/internal/config"
)

// ResourceHandler はチーム向け外部リソースリンクのHTTPハンドラー。
type ResourceHandler struct{}

// NewResourceHandler はResourceHandlerを生成する。
func NewResourceHandler() *ResourceHandler {
	return &ResourceHandler{}
}

// ListResources は静的なリソースリンク一覧を返す。
// GET /api/resources
func (h *ResourceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(config.Resources())
}
