// Package model はドメインモデルを定義する。
package model

// Role はポータル内でのユーザーの役割を表す。
type Role string

const (
	// RoleAdmin は管理者。
	RoleAdmin Role = "Admin"
	// RoleMember は正規メンバー。
	RoleMember Role = "Member"
	// RoleContributor は外部コントリビューター。初回ログイン時のデフォルト。
	RoleContributor Role = "Contributor"
)

// UserProfile はポータル内部のユーザープロファイルを表す。
// IDは外部IdPセッションの安定IDと一致する。
// 一度永続化されたプロファイルはストアが正となり、
// 以降のログインでIdP側のメタデータが変わっても上書きしない。
type UserProfile struct {
	ID             string
	GithubUsername string
	DisplayName    string
	Role           Role
	AvatarURL      string
}

// ProviderUser は外部IdPから取得した生のユーザーレコードを表す。
// Loginが空の場合、Emailのローカル部からユーザー名を導出する。
type ProviderUser struct {
	ID        string
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

// ProviderSession は外部IdPが保持するセッションを表す。
// ポータル自身はこれを保持せず、プロバイダーへの問い合わせ
// またはイベント経由でのみ受け取る。
type ProviderSession struct {
	ID   string
	User ProviderUser
}
