// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sync, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeConfigurationMissing = "CONFIGURATION_MISSING"
	ErrCodeIdentityUnknown      = "IDENTITY_UNKNOWN"
	ErrCodeAccessDenied         = "ACCESS_DENIED"
	ErrCodeDatabaseWrite        = "DATABASE_WRITE_ERROR"
	ErrCodeRemoteRequestFailed  = "REMOTE_REQUEST_FAILED"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeProjectNotFound      = "PROJECT_NOT_FOUND"
	ErrCodeTaskNotFound         = "TASK_NOT_FOUND"
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
)

// NewConfigurationMissingError はリモートストア資格情報の欠落エラーを生成する。
// 起動時のみ発生し、すべての認証試行を無効化する。
// 欠落している環境変数名をそのままオペレーターに提示する。
func NewConfigurationMissingError(missing []string) *APIError {
	return &APIError{
		Code:     ErrCodeConfigurationMissing,
		Message:  fmt.Sprintf("必須の設定が不足しています: %v", missing),
		Category: "system",
		Action:   "環境変数を設定してからポータルを再起動してください。",
	}
}

// NewIdentityUnknownError はIdPレコードからユーザー名を導出できない場合のエラーを生成する。
func NewIdentityUnknownError() *APIError {
	return &APIError{
		Code:     ErrCodeIdentityUnknown,
		Message:  "外部プロバイダーのレコードからユーザー名を特定できませんでした。",
		Category: "auth",
		Action:   "GitHubアカウントにユーザー名またはメールアドレスが設定されているか確認してください。",
	}
}

// NewAccessDeniedError は許可リスト外ユーザーのアクセス拒否エラーを生成する。
func NewAccessDeniedError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  fmt.Sprintf("アクセスが拒否されました: %s", username),
		Category: "auth",
		Action:   "このポータルは許可されたメンバーのみ利用できます。管理者に連絡してください。",
	}
}

// NewDatabaseWriteError はプロファイル作成失敗エラーを生成する。
func NewDatabaseWriteError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeDatabaseWrite,
		Message:  fmt.Sprintf("プロファイルの保存に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度ログインしてください。",
	}
}

// NewRemoteRequestFailedError はコレクションCRUDの失敗エラーを生成する。
// ローカル状態はロールバックで復旧し、致命的エラーとしては扱わない。
func NewRemoteRequestFailedError(operation string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteRequestFailed,
		Message:  fmt.Sprintf("リモートストアへのリクエストに失敗しました: %s", operation),
		Category: "sync",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewConfirmationRequiredError はプロジェクト削除の確認不足エラーを生成する。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  "プロジェクトの削除には明示的な確認が必要です。",
		Category: "validation",
		Action:   "削除を確定する場合は confirm=true を指定してください。",
	}
}

// NewProjectNotFoundError はプロジェクト未検出エラーを生成する。
func NewProjectNotFoundError(projectID string) *APIError {
	return &APIError{
		Code:     ErrCodeProjectNotFound,
		Message:  fmt.Sprintf("指定されたプロジェクトが見つかりません: %s", projectID),
		Category: "sync",
		Action:   "プロジェクトIDを確認してください。",
	}
}

// NewTaskNotFoundError はタスク未検出エラーを生成する。
func NewTaskNotFoundError(taskID string) *APIError {
	return &APIError{
		Code:     ErrCodeTaskNotFound,
		Message:  fmt.Sprintf("指定されたタスクが見つかりません: %s", taskID),
		Category: "sync",
		Action:   "タスクIDを確認してください。",
	}
}

// NewInvalidInputError は入力検証エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力が不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}
