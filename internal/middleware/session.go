// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/detova/internal/model"
)

// SessionCookieName はポータルセッショントークンを保持するCookie名。
const SessionCookieName = "portal_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// profileContextKey はリクエストコンテキストに認証済みプロファイルを格納するためのキー。
var profileContextKey = contextKey("profile")

// TokenValidator はポータルセッショントークンの検証インターフェース。
// session.Controllerの部分集合として定義する。
type TokenValidator interface {
	ValidateToken(token string) (*model.UserProfile, bool)
}

// NewSessionMiddleware はHTTP Only Cookieからポータルセッショントークンを読み取り、
// アクティブなセッションと照合するミドルウェアを返す。
// 認証済みプロファイルをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewSessionMiddleware(validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			profile, ok := validator.ValidateToken(cookie.Value)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), profileContextKey, profile)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ProfileFromContext はリクエストコンテキストから認証済みプロファイルを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func ProfileFromContext(ctx context.Context) (*model.UserProfile, error) {
	profile, ok := ctx.Value(profileContextKey).(*model.UserProfile)
	if !ok || profile == nil {
		return nil, fmt.Errorf("profile not found in context")
	}
	return profile, nil
}

// ContextWithProfile はコンテキストにプロファイルを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithProfile(ctx context.Context, profile *model.UserProfile) context.Context {
	return context.WithValue(ctx, profileContextKey, profile)
}
