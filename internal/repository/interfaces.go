// Package repository はリモートストアへの永続化インターフェースを定義する。
// 同期エンジンとアイデンティティマッパーはこの汎用CRUDインターフェースのみを参照し、
// ストアのワイヤフォーマットには依存しない。
package repository

import (
	"context"

	"github.com/hitoshi/detova/internal/model"
)

// ProfileRepository はユーザープロファイルの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は外部セッションの安定IDでプロファイルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)

	// FindByUsername はGitHubユーザー名でプロファイルを検索する。
	// 事前シードされたプロファイル（Contributor以外のロール付与）の検出に使う。
	// 見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.UserProfile, error)

	// Create はプロファイルを新規作成する。
	// 初回ログイン時の遅延プロビジョニングで1回だけ呼ばれる。
	Create(ctx context.Context, profile *model.UserProfile) error
}

// ProjectRepository はプロジェクトコレクションのCRUDインターフェース。
type ProjectRepository interface {
	// ListAll は全プロジェクトをcreated_at降順で取得する。
	ListAll(ctx context.Context) ([]model.Project, error)

	// Insert はプロジェクトを作成し、サーバー採番のIDとタイムスタンプを含む
	// 正規レコードを返す。
	Insert(ctx context.Context, project *model.Project) (*model.Project, error)

	// UpdateByID は部分更新を適用し、更新後の正規レコードを返す。
	// 対象が存在しない場合はProjectNotFoundエラーを返す。
	UpdateByID(ctx context.Context, id string, changes model.ProjectChanges) (*model.Project, error)

	// DeleteByID は指定IDのプロジェクトを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// TaskRepository はタスクコレクションのCRUDインターフェース。
type TaskRepository interface {
	// ListAll は全タスクをcreated_at降順で取得する。
	ListAll(ctx context.Context) ([]model.Task, error)

	// Insert はタスクを作成し、サーバー採番のIDとタイムスタンプを含む
	// 正規レコードを返す。
	Insert(ctx context.Context, task *model.Task) (*model.Task, error)

	// UpdateByID は部分更新を適用し、更新後の正規レコードを返す。
	// 対象が存在しない場合はTaskNotFoundエラーを返す。
	UpdateByID(ctx context.Context, id string, changes model.TaskChanges) (*model.Task, error)

	// DeleteByID は指定IDのタスクを削除する。
	DeleteByID(ctx context.Context, id string) error
}
