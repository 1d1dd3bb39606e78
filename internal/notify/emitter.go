// Package notify はプロセス全体で共有する一時通知フィードを提供する。
// すべてのミューテーション経路が成否の報告に使用する。
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/detova/internal/model"
)

// DefaultTTL は通知の表示期間のデフォルト値。
const DefaultTTL = 4 * time.Second

// entry は通知と失効時刻の組。
type entry struct {
	notification model.Notification
	expiresAt    time.Time
}

// Emitter は追記専用の通知キュー。
// 通知は作成後に変更されず、表示期間の経過または明示的な破棄で消える。
type Emitter struct {
	mu      sync.Mutex
	entries []entry
	ttl     time.Duration
	now     func() time.Time
}

// NewEmitter はEmitterを生成する。ttlが0以下の場合はDefaultTTLを使う。
func NewEmitter(ttl time.Duration) *Emitter {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Emitter{
		ttl: ttl,
		now: time.Now,
	}
}

// Success は成功通知を追加する。
func (e *Emitter) Success(message string) model.Notification {
	return e.push(message, model.NotificationSuccess)
}

// Error は失敗通知を追加する。
func (e *Emitter) Error(message string) model.Notification {
	return e.push(message, model.NotificationError)
}

// Info は情報通知を追加する。
func (e *Emitter) Info(message string) model.Notification {
	return e.push(message, model.NotificationInfo)
}

// Dismiss は指定IDの通知を明示的に破棄する。
// 存在しないIDは黙って無視する。
func (e *Emitter) Dismiss(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, ent := range e.entries {
		if ent.notification.ID == id {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			return
		}
	}
}

// Snapshot は失効していない通知の一覧を追加順で返す。
// 失効済みの通知はこのタイミングで取り除かれる。
func (e *Emitter) Snapshot() []model.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	live := e.entries[:0]
	for _, ent := range e.entries {
		if ent.expiresAt.After(now) {
			live = append(live, ent)
		}
	}
	e.entries = live

	out := make([]model.Notification, len(e.entries))
	for i, ent := range e.entries {
		out[i] = ent.notification
	}
	return out
}

// push は通知を追加して返す。
func (e *Emitter) push(message string, kind model.NotificationType) model.Notification {
	n := model.Notification{
		ID:      uuid.New().String(),
		Message: message,
		Type:    kind,
	}

	e.mu.Lock()
	e.entries = append(e.entries, entry{
		notification: n,
		expiresAt:    e.now().Add(e.ttl),
	})
	e.mu.Unlock()

	return n
}
