package repository

import (
	"testing"

	"github.com/hitoshi/detova/internal/model"
)

// PostgresProfileRepoはProfileRepositoryインターフェースを満たすことを検証
func TestPostgresProfileRepo_ImplementsInterface(t *testing.T) {
	var _ ProfileRepository = (*PostgresProfileRepo)(nil)
}

// NewPostgresProfileRepoが正しく初期化されることを検証
func TestNewPostgresProfileRepo_Initializes(t *testing.T) {
	repo := NewPostgresProfileRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// UserProfileモデルのフィールドが正しく構築されることを検証
func TestPostgresProfileRepo_ProfileModel_Fields(t *testing.T) {
	profile := &model.UserProfile{
		ID:             "github-1001",
		GithubUsername: "hanako_dev",
		DisplayName:    "Hanako Yamada",
		Role:           model.RoleContributor,
		AvatarURL:      "https://avatars.githubusercontent.com/u/1001",
	}

	if profile.ID != "github-1001" {
		t.Errorf("profile.ID = %q, want %q", profile.ID, "github-1001")
	}
	if profile.GithubUsername != "hanako_dev" {
		t.Errorf("profile.GithubUsername = %q, want %q", profile.GithubUsername, "hanako_dev")
	}
	if profile.Role != model.RoleContributor {
		t.Errorf("profile.Role = %q, want %q", profile.Role, model.RoleContributor)
	}
}
