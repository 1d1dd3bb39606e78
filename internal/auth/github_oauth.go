package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/hitoshi/detova/internal/model"
)

const (
	defaultGithubAuthURL  = "https://github.com/login/oauth/authorize"
	defaultGithubTokenURL = "https://github.com/login/oauth/access_token"
	defaultGithubUserURL  = "https://api.github.com/user"

	// eventBufferSize はイベントチャネルのバッファサイズ。
	// 購読者（セッションコントローラー）が常時消費する前提。
	eventBufferSize = 16
)

// GithubOAuthConfig はGitHub OAuthプロバイダーの設定。
type GithubOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL  string
	TokenURL string
	UserURL  string
}

// GithubOAuthProvider はGitHub OAuth 2.0による認証を提供する。
// 交換済みセッションをプロセス内に1つだけ保持し、
// サインイン/サインアウトをイベントとして購読者に通知する。
type GithubOAuthProvider struct {
	config GithubOAuthConfig

	mu      sync.Mutex
	session *model.ProviderSession

	events chan Event
}

// NewGithubOAuthProvider はGithubOAuthProviderを生成する。
func NewGithubOAuthProvider(config GithubOAuthConfig) *GithubOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGithubAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGithubTokenURL
	}
	if config.UserURL == "" {
		config.UserURL = defaultGithubUserURL
	}
	return &GithubOAuthProvider{
		config: config,
		events: make(chan Event, eventBufferSize),
	}
}

// AuthURL はGitHub OAuthの認可URLを生成する。
// スコープはユーザー情報の読み取りのみ。
func (p *GithubOAuthProvider) AuthURL(state string) string {
	params := url.Values{
		"client_id":    {p.config.ClientID},
		"redirect_uri": {p.config.RedirectURL},
		"scope":        {"read:user user:email"},
		"state":        {state},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// githubTokenResponse はGitHubのトークンエンドポイントのレスポンス。
type githubTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// githubUser はGitHubのユーザーエンドポイントのレスポンス。
type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、セッションを確立する。
// 成功時にはsigned-inイベントを発火する。
func (p *GithubOAuthProvider) ExchangeCode(ctx context.Context, code string) (*model.ProviderSession, error) {
	// 1. 認可コードをアクセストークンに交換
	tokenResp, err := p.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークンでユーザー情報を取得
	user, err := p.fetchUser(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	session := &model.ProviderSession{
		ID: "github-" + strconv.FormatInt(user.ID, 10),
		User: model.ProviderUser{
			ID:        "github-" + strconv.FormatInt(user.ID, 10),
			Login:     user.Login,
			Name:      user.Name,
			Email:     user.Email,
			AvatarURL: user.AvatarURL,
		},
	}

	p.mu.Lock()
	p.session = session
	p.mu.Unlock()

	p.emit(Event{Kind: EventSignedIn, Session: session})

	return session, nil
}

// CurrentSession はプロバイダー側に保持されているセッションを返す。
// プロセス再起動をまたいだ永続化はせず、存在しない場合はnilを返す。
func (p *GithubOAuthProvider) CurrentSession(_ context.Context) (*model.ProviderSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session, nil
}

// SignOut はプロバイダー側のセッションを破棄し、signed-outイベントを発火する。
// セッションが存在しない場合は何もしない。
func (p *GithubOAuthProvider) SignOut(_ context.Context) error {
	p.mu.Lock()
	had := p.session != nil
	p.session = nil
	p.mu.Unlock()

	if had {
		p.emit(Event{Kind: EventSignedOut})
	}
	return nil
}

// Events は認証イベントの購読チャネルを返す。
func (p *GithubOAuthProvider) Events() <-chan Event {
	return p.events
}

// emit はイベントを非ブロッキングで送出する。
// 購読者が滞留している場合はイベントを破棄してログに残す。
func (p *GithubOAuthProvider) emit(ev Event) {
	select {
	case p.events <- ev:
	default:
		slog.Warn("auth event dropped: subscriber not consuming",
			slog.String("kind", string(ev.Kind)),
		)
	}
}

// exchangeToken は認可コードをアクセストークンに交換する。
func (p *GithubOAuthProvider) exchangeToken(ctx context.Context, code string) (*githubTokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp githubTokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.Error != "" {
		return nil, fmt.Errorf("token exchange rejected: %s (%s)", tokenResp.Error, tokenResp.ErrorDesc)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// fetchUser はアクセストークンでGitHubのユーザー情報を取得する。
func (p *GithubOAuthProvider) fetchUser(ctx context.Context, accessToken string) (*githubUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var user githubUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user response: %w", err)
	}

	if user.ID == 0 {
		return nil, fmt.Errorf("empty user id in response")
	}

	return &user, nil
}

// compile-time interface check
var _ Provider = (*GithubOAuthProvider)(nil)
