// Package session は認証ライフサイクルを所有するセッションコントローラーを提供する。
//
// 状態機械は Unauthenticated → Authenticating → Authenticated →
// Unauthenticated（サインアウト時）で遷移し、起動時にリモートストアの
// 資格情報が欠落している場合のみ終端状態 ConfigurationMissing をとる。
// 認証済みユーザーは常に高々1人で、サインアウト遷移後に同期エンジンが
// 前ユーザーのデータを保持することはない。
package session

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	stdsync "sync"

	"github.com/hitoshi/detova/internal/auth"
	"github.com/hitoshi/detova/internal/identity"
	"github.com/hitoshi/detova/internal/metrics"
	"github.com/hitoshi/detova/internal/model"
	syncpkg "github.com/hitoshi/detova/internal/sync"
)

// State はセッションコントローラーの状態を表す。
type State string

const (
	// StateUnauthenticated は未認証状態。
	StateUnauthenticated State = "unauthenticated"
	// StateAuthenticating はサインイン処理中。
	StateAuthenticating State = "authenticating"
	// StateAuthenticated は認証済み。
	StateAuthenticated State = "authenticated"
	// StateConfigurationMissing は設定欠落による終端状態。全認証試行を無効化する。
	StateConfigurationMissing State = "configuration_missing"
)

// defaultView はサインアウト時に戻るビュー。
const defaultView = "dashboard"

// Controller は認証ライフサイクルを所有する。
// 起動時のセッションプローブ、プロバイダーイベントの購読、
// サインイン/サインアウト操作、現在ユーザーの単一値の公開を担う。
type Controller struct {
	provider auth.Provider
	mapper   *identity.Mapper
	engine   *syncpkg.Engine
	notifier syncpkg.Notifier
	metrics  metrics.MetricsCollector
	secret   []byte // ポータルトークンのHMAC署名鍵（SESSION_SECRET）

	mu          stdsync.Mutex
	state       State
	user        *model.UserProfile
	providerSID string // 確立済みの外部セッションID
	token       string // HTTP層向けポータルセッショントークン
	epoch       uint64
	lastErr     *model.APIError // ログイン画面にインラインで提示する直近の失敗
	configErr   *model.APIError
	currentView string

	// 確立処理の単一代入セル。進行中の間establishingが立ち、
	// 解決時にestablishErrへ結果を入れてestablishDoneをクローズする。
	// 進行中に到着した後続トリガーはクローズを待って同じ結果を共有する。
	establishing  bool
	establishDone chan struct{}
	establishErr  error
}

// NewController はControllerを生成する。metricsはnilでもよい。
// secretはポータルトークンの署名に使うSESSION_SECRETを渡す。
func NewController(
	provider auth.Provider,
	mapper *identity.Mapper,
	engine *syncpkg.Engine,
	notifier syncpkg.Notifier,
	collector metrics.MetricsCollector,
	secret string,
) *Controller {
	return &Controller{
		provider:    provider,
		mapper:      mapper,
		engine:      engine,
		notifier:    notifier,
		metrics:     collector,
		secret:      []byte(secret),
		state:       StateUnauthenticated,
		currentView: defaultView,
	}
}

// NewConfigurationMissingController は設定欠落の終端状態のControllerを生成する。
// すべての認証試行は欠落エラーをそのまま返す。
func NewConfigurationMissingController(configErr *model.APIError) *Controller {
	return &Controller{
		state:       StateConfigurationMissing,
		configErr:   configErr,
		currentView: defaultView,
	}
}

// Initialize は起動時に1回呼ばれ、プロバイダー側の復元済みセッションをプローブする。
// セッションが存在すれば確立を試み、失敗時はプロバイダー側もサインアウトさせて
// 未認証のまま留まる。セッションが存在しない場合は何もしない。
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConfigurationMissing {
		err := c.configErr
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	ps, err := c.provider.CurrentSession(ctx)
	if err != nil {
		return fmt.Errorf("failed to probe provider session: %w", err)
	}
	if ps == nil {
		slog.Info("no restored provider session")
		return nil
	}

	if _, err := c.Establish(ctx, ps); err != nil {
		return err
	}
	return nil
}

// Run はプロバイダーの認証イベントストリームを購読する。
// ctxのキャンセルまでブロックするため、goroutineで起動する。
//
// 初期プローブとイベント購読は同一のサインインを二重に観測しうるが、
// 確立処理は単一フライトかつセッションID一致で冪等のため、
// IdentityMapperと一括リフレッシュは論理セッション確立ごとに高々1回しか走らない。
func (c *Controller) Run(ctx context.Context) {
	if c.provider == nil {
		return
	}
	events := c.provider.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case auth.EventSignedIn:
				if ev.Session == nil {
					slog.Warn("signed-in event without session payload")
					continue
				}
				if _, err := c.Establish(ctx, ev.Session); err != nil {
					slog.Warn("session establishment from event failed",
						slog.String("error", err.Error()),
					)
				}
			case auth.EventSignedOut:
				c.clearSession()
			}
		}
	}
}

// BeginSignIn は外部OAuthハンドシェイクを開始し、認可URLを返す。
// 状態はAuthenticatingへ遷移する。解決はここでは行われず、
// コールバックまたはプロバイダーのイベントストリーム経由で非同期に到着する。
func (c *Controller) BeginSignIn(state string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConfigurationMissing {
		return "", c.configErr
	}
	if c.state == StateAuthenticated {
		return "", model.NewInvalidInputError("既にサインイン済みです")
	}

	c.state = StateAuthenticating
	c.lastErr = nil
	return c.provider.AuthURL(state), nil
}

// CompleteSignIn はOAuthコールバックの認可コードを処理し、セッションを確立する。
// 成功時はHTTP層向けのポータルセッショントークンを返す。
func (c *Controller) CompleteSignIn(ctx context.Context, code string) (string, error) {
	c.mu.Lock()
	if c.state == StateConfigurationMissing {
		err := c.configErr
		c.mu.Unlock()
		return "", err
	}
	c.mu.Unlock()

	ps, err := c.provider.ExchangeCode(ctx, code)
	if err != nil {
		c.setLastError(model.NewRemoteRequestFailedError("認可コードの交換"))
		return "", fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	// ExchangeCode成功はsigned-inイベントも発火するが、
	// Establishは単一フライトのため二重確立にはならない。
	if _, err := c.Establish(ctx, ps); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token, nil
}

// Establish は外部セッションから認証済み状態への遷移を行う。
//
// 単一フライト: 確立処理が進行中の間、後続のトリガーは新たな確立を
// 起動せず、進行中の確立が解決するまで待ってその結果を共有する。
// 同一外部セッションの再確立も行わない。
// IdentityMapperの失敗はサインイン試行を終了させ、孤児となった
// 外部セッションを強制的にサインアウトさせる。
func (c *Controller) Establish(ctx context.Context, ps *model.ProviderSession) (_ *model.UserProfile, retErr error) {
	c.mu.Lock()
	if c.state == StateConfigurationMissing {
		err := c.configErr
		c.mu.Unlock()
		return nil, err
	}
	if c.establishing {
		// ExchangeCodeのsigned-inイベント経由の確立とコールバック側の確立が
		// 競合した場合、後着は先行の解決を待つ。早期リターンすると
		// 未代入のトークンをコールバックが読んでしまう。
		done := c.establishDone
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-done:
		}

		c.mu.Lock()
		user, err := c.user, c.establishErr
		c.mu.Unlock()
		return user, err
	}
	if c.state == StateAuthenticated && c.providerSID == ps.ID {
		user := c.user
		c.mu.Unlock()
		return user, nil
	}
	c.establishing = true
	c.establishDone = make(chan struct{})
	c.establishErr = nil
	c.state = StateAuthenticating
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.establishing = false
		c.establishErr = retErr
		close(c.establishDone)
		c.mu.Unlock()
	}()

	profile, err := c.mapper.Map(ctx, ps.User)
	if err != nil {
		c.failSignIn(ctx, err)
		return nil, err
	}

	token, err := c.issueToken()
	if err != nil {
		c.failSignIn(ctx, fmt.Errorf("failed to issue session token: %w", err))
		return nil, err
	}

	c.mu.Lock()
	c.epoch++
	epoch := c.epoch
	c.user = profile
	c.providerSID = ps.ID
	c.token = token
	c.state = StateAuthenticated
	c.lastErr = nil
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordSignInSuccess()
	}
	slog.Info("session established",
		slog.String("profile_id", profile.ID),
		slog.String("username", profile.GithubUsername),
		slog.String("role", string(profile.Role)),
	)

	// 認証成功ごとに1回の一括リフレッシュ。
	// 失敗しても認証状態は維持し、通知とログで報告する。
	c.engine.Activate(epoch)
	if err := c.engine.RefreshAll(ctx); err != nil {
		slog.Warn("initial refresh failed",
			slog.String("error", err.Error()),
		)
	}

	return profile, nil
}

// SignOut は外部セッションの破棄を要求し、現在ユーザーと両コレクションを
// 即座にクリアして、アクティブビューをデフォルトへ戻す。
func (c *Controller) SignOut(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateConfigurationMissing {
		err := c.configErr
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	if err := c.provider.SignOut(ctx); err != nil {
		slog.Error("provider sign-out failed", slog.String("error", err.Error()))
		// プロバイダー側の失敗に関わらずローカル状態はクリアする
	}

	c.clearSession()

	if c.metrics != nil {
		c.metrics.RecordSignOut()
	}
	return nil
}

// CurrentUser は現在の認証済みユーザーを返す。未認証の場合はnil。
func (c *Controller) CurrentUser() *model.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// State は現在の状態を返す。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError はログイン画面にインライン表示する直近のサインイン失敗を返す。
func (c *Controller) LastError() *model.APIError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConfigurationMissing {
		return c.configErr
	}
	return c.lastErr
}

// CurrentView は現在のアクティブビュー名を返す。
func (c *Controller) CurrentView() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentView
}

// SetView はアクティブビュー名を設定する。
func (c *Controller) SetView(view string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.currentView = view
}

// ValidateToken はポータルセッショントークンを検証し、
// 有効なら現在ユーザーを返す。
// HMAC署名の検証後にアクティブトークンとの一致を確認する。
func (c *Controller) ValidateToken(token string) (*model.UserProfile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAuthenticated || c.token == "" || token == "" {
		return nil, false
	}
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(c.signPayload(payload))) {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(c.token), []byte(token)) != 1 {
		return nil, false
	}
	return c.user, true
}

// failSignIn はサインイン失敗を記録し、孤児となった外部セッションを破棄する。
func (c *Controller) failSignIn(ctx context.Context, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		apiErr = model.NewRemoteRequestFailedError("sign-in")
	}

	c.setLastError(apiErr)
	if c.metrics != nil {
		c.metrics.RecordSignInFailure(apiErr.Code)
	}
	if c.notifier != nil {
		c.notifier.Error(apiErr.Message)
	}
	slog.Warn("sign-in attempt terminated",
		slog.String("code", apiErr.Code),
	)

	// 外部セッションは確立に失敗した時点で孤児となるため強制サインアウト。
	if signOutErr := c.provider.SignOut(ctx); signOutErr != nil {
		slog.Error("forced provider sign-out failed",
			slog.String("error", signOutErr.Error()),
		)
	}

	c.mu.Lock()
	c.state = StateUnauthenticated
	c.mu.Unlock()
}

// clearSession は現在ユーザーとポータルトークンをクリアし、
// エポックを進めて同期エンジンを無効化する。
// 進行中のラウンドトリップの遅延結果はエポック不一致で破棄される。
func (c *Controller) clearSession() {
	c.mu.Lock()
	alreadyClear := c.user == nil && c.state == StateUnauthenticated
	c.user = nil
	c.providerSID = ""
	c.token = ""
	c.epoch++
	c.state = StateUnauthenticated
	c.currentView = defaultView
	c.mu.Unlock()

	if c.engine != nil {
		c.engine.Deactivate()
	}

	if !alreadyClear {
		slog.Info("session cleared")
	}
}

// setLastError は直近のサインイン失敗を記録する。
func (c *Controller) setLastError(apiErr *model.APIError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = apiErr
}

// issueToken は乱数ペイロードにHMAC-SHA256署名を付けた
// ポータルセッショントークンを発行する。形式は "<payload>.<signature>"。
// SESSION_SECRETが異なるインスタンスの発行したトークンは検証で弾かれる。
func (c *Controller) issueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	payload := hex.EncodeToString(b)
	return payload + "." + c.signPayload(payload), nil
}

// signPayload はトークンペイロードのHMAC-SHA256署名を16進文字列で返す。
func (c *Controller) signPayload(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}
