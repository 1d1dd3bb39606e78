package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/detova/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロファイルリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は外部セッションの安定IDでプロファイルを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	profile := &model.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, github_username, display_name, role, avatar_url
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&profile.ID, &profile.GithubUsername, &profile.DisplayName, &profile.Role, &profile.AvatarURL)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}

	return profile, nil
}

// FindByUsername はGitHubユーザー名でプロファイルを検索する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUsername(ctx context.Context, username string) (*model.UserProfile, error) {
	profile := &model.UserProfile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, github_username, display_name, role, avatar_url
		 FROM profiles WHERE github_username = $1`,
		username,
	).Scan(&profile.ID, &profile.GithubUsername, &profile.DisplayName, &profile.Role, &profile.AvatarURL)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by username: %w", err)
	}

	return profile, nil
}

// Create はプロファイルを新規作成する。
// IDの一意性はストアの主キー制約に委ねる（同時ログインの競合対策）。
func (r *PostgresProfileRepo) Create(ctx context.Context, profile *model.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, github_username, display_name, role, avatar_url)
		 VALUES ($1, $2, $3, $4, $5)`,
		profile.ID, profile.GithubUsername, profile.DisplayName, string(profile.Role), profile.AvatarURL,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
