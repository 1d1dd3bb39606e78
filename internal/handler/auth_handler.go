// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/detova/internal/middleware"
	"github.com/hitoshi/detova/internal/model"
	"github.com/hitoshi/detova/internal/session"
)

const oauthStateCookie = "oauth_state"

// SessionControllerInterface は認証ハンドラーが必要とするセッションコントローラーの操作。
type SessionControllerInterface interface {
	BeginSignIn(state string) (string, error)
	CompleteSignIn(ctx context.Context, code string) (string, error)
	SignOut(ctx context.Context) error
	State() session.State
	LastError() *model.APIError
	CurrentView() string
	SetView(view string)
	ValidateToken(token string) (*model.UserProfile, bool)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	controller SessionControllerInterface
	config     AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(controller SessionControllerInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		controller: controller,
		config:     config,
	}
}

// Login はGitHub OAuthフローを開始する。
// GET /auth/github/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	url, err := h.controller.BeginSignIn(state)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/github/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("query_state", state),
		)
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("stateパラメータが一致しません"))
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("認可コードがありません"))
		return
	}

	// 3. セッション確立。許可リスト拒否や身元不明もここで失敗として返る。
	token, err := h.controller.CompleteSignIn(r.Context(), code)
	if err != nil {
		slog.Warn("oauth callback failed", slog.String("error", err.Error()))
		// 失敗の詳細はLastError経由でログイン画面に提示されるため、
		// フロントエンドへはエラー付きでリダイレクトする。
		http.Redirect(w, r, h.config.BaseURL+"/?signin=failed", http.StatusTemporaryRedirect)
		return
	}

	// 4. ポータルセッションCookieを設定（HTTP Only）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 5. フロントエンドにリダイレクト
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.controller.SignOut(r.Context()); err != nil {
		slog.Error("failed to sign out", slog.String("error", err.Error()))
		// サインアウト失敗してもCookieはクリアする
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// meResponse は現在のセッション状態のAPIレスポンス。
// 未認証でも200で返し、直近のサインイン失敗をインライン提示できるようにする。
type meResponse struct {
	State       string           `json:"state"`
	User        *profileResponse `json:"user,omitempty"`
	CurrentView string           `json:"current_view"`
	Error       *apiErrorBody    `json:"error,omitempty"`
}

// profileResponse はユーザープロファイルのAPIレスポンス。
type profileResponse struct {
	ID             string `json:"id"`
	GithubUsername string `json:"github_username"`
	DisplayName    string `json:"display_name"`
	Role           string `json:"role"`
	AvatarURL      string `json:"avatar_url"`
}

// Me は現在のセッション状態とログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	resp := meResponse{
		State:       string(h.controller.State()),
		CurrentView: h.controller.CurrentView(),
	}

	if cookie, err := r.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		if profile, ok := h.controller.ValidateToken(cookie.Value); ok {
			resp.User = toProfileResponse(profile)
		}
	}

	if apiErr := h.controller.LastError(); apiErr != nil && resp.User == nil {
		resp.Error = &apiErrorBody{
			Code:     apiErr.Code,
			Message:  apiErr.Message,
			Category: apiErr.Category,
			Action:   apiErr.Action,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// toProfileResponse はmodel.UserProfileからAPIレスポンスに変換する。
func toProfileResponse(profile *model.UserProfile) *profileResponse {
	return &profileResponse{
		ID:             profile.ID,
		GithubUsername: profile.GithubUsername,
		DisplayName:    profile.DisplayName,
		Role:           string(profile.Role),
		AvatarURL:      profile.AvatarURL,
	}
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
