package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/detova/internal/model"
)

type mockNotificationFeed struct {
	snapshotFn   func() []model.Notification
	dismissedIDs []string
}

func (m *mockNotificationFeed) Snapshot() []model.Notification {
	if m.snapshotFn != nil {
		return m.snapshotFn()
	}
	return nil
}

func (m *mockNotificationFeed) Dismiss(id string) {
	m.dismissedIDs = append(m.dismissedIDs, id)
}

var _ NotificationFeedInterface = (*mockNotificationFeed)(nil)

func TestListNotifications_ReturnsFeed(t *testing.T) {
	feed := &mockNotificationFeed{
		snapshotFn: func() []model.Notification {
			return []model.Notification{
				{ID: "n1", Type: model.NotificationSuccess, Message: "プロジェクトを追加しました。"},
				{ID: "n2", Type: model.NotificationError, Message: "保存に失敗しました。"},
			}
		},
	}
	h := NewNotificationHandler(feed)

	req := requestWithProfile(http.MethodGet, "/api/notifications", nil)
	rec := httptest.NewRecorder()

	h.ListNotifications(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp []model.Notification
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp) != 2 || resp[0].ID != "n1" || resp[1].ID != "n2" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestListNotifications_Empty_ReturnsEmptyArray(t *testing.T) {
	h := NewNotificationHandler(&mockNotificationFeed{})

	req := requestWithProfile(http.MethodGet, "/api/notifications", nil)
	rec := httptest.NewRecorder()

	h.ListNotifications(rec, req)

	if got := rec.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestDismissNotification_Returns204(t *testing.T) {
	feed := &mockNotificationFeed{}
	h := NewNotificationHandler(feed)

	router := chi.NewRouter()
	router.Delete("/api/notifications/{id}", h.DismissNotification)

	req := requestWithProfile(http.MethodDelete, "/api/notifications/n1", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(feed.dismissedIDs) != 1 || feed.dismissedIDs[0] != "n1" {
		t.Errorf("dismissedIDs = %v", feed.dismissedIDs)
	}
}

func TestDismissNotification_UnknownID_StillSucceeds(t *testing.T) {
	feed := &mockNotificationFeed{}
	h := NewNotificationHandler(feed)

	router := chi.NewRouter()
	router.Delete("/api/notifications/{id}", h.DismissNotification)

	req := requestWithProfile(http.MethodDelete, "/api/notifications/no-such-id", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}
