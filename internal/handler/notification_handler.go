package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/detova/internal/model"
)

// NotificationFeedInterface は通知ハンドラーが必要とする通知フィードの操作。
type NotificationFeedInterface interface {
	Snapshot() []model.Notification
	Dismiss(id string)
}

// NotificationHandler は通知フィードのHTTPハンドラー。
type NotificationHandler struct {
	feed NotificationFeedInterface
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(feed NotificationFeedInterface) *NotificationHandler {
	return &NotificationHandler{feed: feed}
}

// ListNotifications は失効していない通知の一覧を追加順で返す。
// GET /api/notifications
func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications := h.feed.Snapshot()
	if notifications == nil {
		notifications = []model.Notification{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(notifications)
}

// DismissNotification は通知を明示的に破棄する。
// 存在しないIDでも成功として扱う。
// DELETE /api/notifications/:id
func (h *NotificationHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.feed.Dismiss(id)
	w.WriteHeader(http.StatusNoContent)
}
