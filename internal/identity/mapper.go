// Package identity は外部IdPのユーザーレコードを内部プロファイルへ変換する。
// 許可リストによる認可ゲートと、初回ログイン時の遅延プロビジョニングを担う。
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hitoshi/detova/internal/allowlist"
	"github.com/hitoshi/detova/internal/model"
	"github.com/hitoshi/detova/internal/repository"
)

// Mapper は外部セッションから内部プロファイルへの解決を行う。
type Mapper struct {
	allow    *allowlist.Allowlist
	profiles repository.ProfileRepository
}

// NewMapper はMapperを生成する。
func NewMapper(allow *allowlist.Allowlist, profiles repository.ProfileRepository) *Mapper {
	return &Mapper{
		allow:    allow,
		profiles: profiles,
	}
}

// Map は外部IdPのユーザーレコードを内部プロファイルへ解決する。
//
// 許可リストの照合はプロファイルの読み書きより前に必ず行う。
// 許可リストが唯一の認可ゲートであり、ここを通らない限り
// 認証済みアプリ状態には一切入らない。
//
// プロファイルが既に存在する場合はストア側のレコードをそのまま返す。
// IdP側のメタデータが変わっていても上書きしない。
// 存在しない場合は新規プロファイルを1回だけ書き込む。
// ユーザー名に対して事前シードされたレコードがあればそのロールを維持する。
func (m *Mapper) Map(ctx context.Context, user model.ProviderUser) (*model.UserProfile, error) {
	// 1. 候補ユーザー名の導出
	username := deriveUsername(user)
	if username == "" {
		return nil, model.NewIdentityUnknownError()
	}

	// 2. 許可リスト照合（プロファイルI/Oより前）
	if !m.allow.Contains(username) {
		slog.Warn("sign-in denied by allowlist",
			slog.String("username", username),
		)
		return nil, model.NewAccessDeniedError(username)
	}

	// 3. 安定IDで既存プロファイルを検索
	profile, err := m.profiles.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if profile != nil {
		// 4. 既存プロファイル: ストアが正。無変更で返す。
		slog.Info("existing profile resolved",
			slog.String("profile_id", profile.ID),
			slog.String("username", profile.GithubUsername),
		)
		return profile, nil
	}

	// 5a. 事前シードされたプロファイルの検出（ロール維持）
	seeded, err := m.profiles.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to find seeded profile: %w", err)
	}
	if seeded != nil {
		slog.Info("pre-seeded profile resolved",
			slog.String("profile_id", seeded.ID),
			slog.String("username", seeded.GithubUsername),
			slog.String("role", string(seeded.Role)),
		)
		return seeded, nil
	}

	// 5b. 初回ログイン: プロファイルを新規プロビジョニング
	newProfile := &model.UserProfile{
		ID:             user.ID,
		GithubUsername: username,
		DisplayName:    deriveDisplayName(user, username),
		Role:           model.RoleContributor,
		AvatarURL:      deriveAvatarURL(user, username),
	}

	if err := m.profiles.Create(ctx, newProfile); err != nil {
		slog.Error("profile provisioning failed",
			slog.String("username", username),
			slog.String("error", err.Error()),
		)
		return nil, model.NewDatabaseWriteError(err.Error())
	}

	slog.Info("new profile provisioned",
		slog.String("profile_id", newProfile.ID),
		slog.String("username", username),
	)
	return newProfile, nil
}

// deriveUsername は候補ユーザー名を導出する。
// 明示的なログイン名を優先し、なければメールアドレスのローカル部を使う。
// どちらも得られない場合は空文字列を返す。
func deriveUsername(user model.ProviderUser) string {
	if user.Login != "" {
		return user.Login
	}
	if at := strings.Index(user.Email, "@"); at > 0 {
		return user.Email[:at]
	}
	return ""
}

// deriveDisplayName は表示名を導出する。IdPメタデータがなければユーザー名を使う。
func deriveDisplayName(user model.ProviderUser, username string) string {
	if user.Name != "" {
		return user.Name
	}
	return username
}

// deriveAvatarURL はアバターURLを導出する。
// IdPメタデータがなければユーザー名ベースのプレースホルダーを使う。
func deriveAvatarURL(user model.ProviderUser, username string) string {
	if user.AvatarURL != "" {
		return user.AvatarURL
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(username)
}
