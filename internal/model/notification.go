// Package model はドメインモデルを定義する。
package model

// NotificationType は通知の種別を表す。
type NotificationType string

const (
	// NotificationSuccess は成功通知。
	NotificationSuccess NotificationType = "success"
	// NotificationError は失敗通知。
	NotificationError NotificationType = "error"
	// NotificationInfo は情報通知。
	NotificationInfo NotificationType = "info"
)

// Notification は画面に一時表示するメッセージを表す。
// 作成後は変更されず、表示期間の経過または明示的な破棄で消える。
type Notification struct {
	ID      string           `json:"id"`
	Message string           `json:"message"`
	Type    NotificationType `json:"type"`
}
