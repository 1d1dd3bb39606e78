package repository

import (
	"testing"
	"time"

	"github.com/hitoshi/detova/internal/model"
)

// PostgresProjectRepoはProjectRepositoryインターフェースを満たすことを検証
func TestPostgresProjectRepo_ImplementsInterface(t *testing.T) {
	var _ ProjectRepository = (*PostgresProjectRepo)(nil)
}

// NewPostgresProjectRepoが正しく初期化されることを検証
func TestNewPostgresProjectRepo_Initializes(t *testing.T) {
	repo := NewPostgresProjectRepo(nil)
	if repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

// Projectモデルのフィールドが正しく構築されることを検証
func TestPostgresProjectRepo_ProjectModel_Fields(t *testing.T) {
	now := time.Now()
	project := &model.Project{
		ID:          "project-1",
		Title:       "社内ナレッジベース",
		Description: "ドキュメント集約",
		Status:      model.ProjectStatusIdea,
		OwnerID:     "github-1001",
		ScoreMarket: 42,
		ScoreTech:   77,
		CreatedAt:   now,
	}

	if project.Status != model.ProjectStatusIdea {
		t.Errorf("project.Status = %q, want %q", project.Status, model.ProjectStatusIdea)
	}
	if project.ScoreMarket != 42 || project.ScoreTech != 77 {
		t.Errorf("scores = (%d, %d), want (42, 77)", project.ScoreMarket, project.ScoreTech)
	}
}

// ステータス検証関数がパイプライン段階のみ受理することを検証
func TestValidProjectStatus(t *testing.T) {
	valid := []model.ProjectStatus{
		model.ProjectStatusIdea,
		model.ProjectStatusApproved,
		model.ProjectStatusInProgress,
		model.ProjectStatusShipped,
	}
	for _, s := range valid {
		if !model.ValidProjectStatus(s) {
			t.Errorf("ValidProjectStatus(%q) = false, want true", s)
		}
	}

	if model.ValidProjectStatus("Cancelled") {
		t.Error(`ValidProjectStatus("Cancelled") = true, want false`)
	}
}
