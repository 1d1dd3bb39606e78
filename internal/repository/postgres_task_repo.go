package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/detova/internal/model"
)

// PostgresTaskRepo はPostgreSQLを使用したタスクリポジトリ。
type PostgresTaskRepo struct {
	db *sql.DB
}

// NewPostgresTaskRepo はPostgresTaskRepoを生成する。
func NewPostgresTaskRepo(db *sql.DB) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: db}
}

// ListAll は全タスクをcreated_at降順で取得する。
func (r *PostgresTaskRepo) ListAll(ctx context.Context) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, assigned_to, project_id, status, is_blocker, created_at
		 FROM tasks ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		if err := rows.Scan(&t.ID, &t.Description, &t.AssignedTo, &t.ProjectID,
			&t.Status, &t.IsBlocker, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}

	return tasks, nil
}

// Insert はタスクを作成し、サーバー採番のIDとタイムスタンプを含む正規レコードを返す。
func (r *PostgresTaskRepo) Insert(ctx context.Context, task *model.Task) (*model.Task, error) {
	created := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO tasks (description, assigned_to, project_id, status, is_blocker)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, description, assigned_to, project_id, status, is_blocker, created_at`,
		task.Description, task.AssignedTo, task.ProjectID, string(task.Status), task.IsBlocker,
	).Scan(&created.ID, &created.Description, &created.AssignedTo, &created.ProjectID,
		&created.Status, &created.IsBlocker, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	return created, nil
}

// UpdateByID は部分更新を適用し、更新後の正規レコードを返す。
// nilフィールドはCOALESCEで既存値を維持する。
func (r *PostgresTaskRepo) UpdateByID(ctx context.Context, id string, changes model.TaskChanges) (*model.Task, error) {
	var status *string
	if changes.Status != nil {
		s := string(*changes.Status)
		status = &s
	}

	updated := &model.Task{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE tasks SET
		   description = COALESCE($2, description),
		   status      = COALESCE($3, status),
		   is_blocker  = COALESCE($4, is_blocker)
		 WHERE id = $1
		 RETURNING id, description, assigned_to, project_id, status, is_blocker, created_at`,
		id, changes.Description, status, changes.IsBlocker,
	).Scan(&updated.ID, &updated.Description, &updated.AssignedTo, &updated.ProjectID,
		&updated.Status, &updated.IsBlocker, &updated.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, model.NewTaskNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	return updated, nil
}

// DeleteByID は指定IDのタスクを削除する。
func (r *PostgresTaskRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return model.NewTaskNotFoundError(id)
	}
	return nil
}

// compile-time interface check
var _ TaskRepository = (*PostgresTaskRepo)(nil)
