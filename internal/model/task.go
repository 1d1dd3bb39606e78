// Package model はドメインモデルを定義する。
package model

import "time"

// TaskStatus はタスクの進行状態を表す。
type TaskStatus string

const (
	// TaskStatusTodo は未着手。新規作成時の初期値。
	TaskStatusTodo TaskStatus = "Todo"
	// TaskStatusDone は完了。
	TaskStatusDone TaskStatus = "Done"
	// TaskStatusBlocked は停滞中。
	TaskStatusBlocked TaskStatus = "Blocked"
)

// ValidTaskStatus はタスクステータスとして有効な値か判定する。
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskStatusTodo, TaskStatusDone, TaskStatusBlocked:
		return true
	}
	return false
}

// Task はユーザーごとのタスクを表す。
// IsBlockerはStatusとは独立した深刻度フラグで、
// Todoのままブロッカー指定されることもある。
// 担当者の付け替え操作は存在しない。
type Task struct {
	ID          string
	Description string
	AssignedTo  string
	ProjectID   string
	Status      TaskStatus
	IsBlocker   bool
	CreatedAt   time.Time
}

// TaskChanges はタスクの部分更新を表す。
// nilフィールドは変更しない。
type TaskChanges struct {
	Description *string
	Status      *TaskStatus
	IsBlocker   *bool
}
