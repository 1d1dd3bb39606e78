// Package auth は外部IdP（GitHub OAuth）との連携を提供する。
package auth

import (
	"context"

	"github.com/hitoshi/detova/internal/model"
)

// EventKind は認証イベントの種別を表す。
type EventKind string

const (
	// EventSignedIn はサインイン完了イベント。セッションペイロードを伴う。
	EventSignedIn EventKind = "signed-in"
	// EventSignedOut はサインアウトイベント。
	EventSignedOut EventKind = "signed-out"
)

// Event はプロバイダーから通知される離散的な認証イベント。
type Event struct {
	Kind    EventKind
	Session *model.ProviderSession // EventSignedInのときのみ非nil
}

// Provider は外部IdPのインターフェース。
// リダイレクト型OAuthフロー、現在セッションの問い合わせ、
// イベント購読、サインアウトを抽象化する。
type Provider interface {
	// AuthURL はOAuth認可URLを生成する。
	AuthURL(state string) string

	// ExchangeCode は認可コードをトークンに交換し、確立されたセッションを返す。
	// 成功時にはsigned-inイベントも発火する。
	ExchangeCode(ctx context.Context, code string) (*model.ProviderSession, error)

	// CurrentSession はプロバイダー側に保持されているセッションを返す。
	// 存在しない場合はnilを返す。
	CurrentSession(ctx context.Context) (*model.ProviderSession, error)

	// SignOut はプロバイダー側のセッションを破棄し、signed-outイベントを発火する。
	SignOut(ctx context.Context) error

	// Events は認証イベントの購読チャネルを返す。
	Events() <-chan Event
}
