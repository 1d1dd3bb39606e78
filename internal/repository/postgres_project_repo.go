package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/detova/internal/model"
)

// PostgresProjectRepo はPostgreSQLを使用したプロジェクトリポジトリ。
type PostgresProjectRepo struct {
	db *sql.DB
}

// NewPostgresProjectRepo はPostgresProjectRepoを生成する。
func NewPostgresProjectRepo(db *sql.DB) *PostgresProjectRepo {
	return &PostgresProjectRepo{db: db}
}

// ListAll は全プロジェクトをcreated_at降順で取得する。
func (r *PostgresProjectRepo) ListAll(ctx context.Context) ([]model.Project, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, title, description, status, owner_id, score_market, score_tech, created_at
		 FROM projects ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Status, &p.OwnerID,
			&p.ScoreMarket, &p.ScoreTech, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}

	return projects, nil
}

// Insert はプロジェクトを作成し、サーバー採番のIDとタイムスタンプを含む正規レコードを返す。
func (r *PostgresProjectRepo) Insert(ctx context.Context, project *model.Project) (*model.Project, error) {
	created := &model.Project{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO projects (title, description, status, owner_id, score_market, score_tech)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, title, description, status, owner_id, score_market, score_tech, created_at`,
		project.Title, project.Description, string(project.Status), project.OwnerID,
		project.ScoreMarket, project.ScoreTech,
	).Scan(&created.ID, &created.Title, &created.Description, &created.Status, &created.OwnerID,
		&created.ScoreMarket, &created.ScoreTech, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	return created, nil
}

// UpdateByID は部分更新を適用し、更新後の正規レコードを返す。
// nilフィールドはCOALESCEで既存値を維持する。
func (r *PostgresProjectRepo) UpdateByID(ctx context.Context, id string, changes model.ProjectChanges) (*model.Project, error) {
	var status *string
	if changes.Status != nil {
		s := string(*changes.Status)
		status = &s
	}

	updated := &model.Project{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE projects SET
		   title        = COALESCE($2, title),
		   description  = COALESCE($3, description),
		   status       = COALESCE($4, status),
		   score_market = COALESCE($5, score_market),
		   score_tech   = COALESCE($6, score_tech)
		 WHERE id = $1
		 RETURNING id, title, description, status, owner_id, score_market, score_tech, created_at`,
		id, changes.Title, changes.Description, status, changes.ScoreMarket, changes.ScoreTech,
	).Scan(&updated.ID, &updated.Title, &updated.Description, &updated.Status, &updated.OwnerID,
		&updated.ScoreMarket, &updated.ScoreTech, &updated.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, model.NewProjectNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return updated, nil
}

// DeleteByID は指定IDのプロジェクトを削除する。
func (r *PostgresProjectRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM projects WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewProjectNotFoundError(id)
	}
	return nil
}

// compile-time interface check
var _ ProjectRepository = (*PostgresProjectRepo)(nil)
