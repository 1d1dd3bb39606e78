// Package sync は2つの管理コレクション（プロジェクト、タスク）の
// インメモリ状態とリモートストアの同期を提供する。
//
// すべてのミューテーションは1ユーザー操作につき1回のリトライなしラウンドトリップで行う。
// 更新は楽観的にローカルへ先行適用し、リモート失敗時はコレクション全体を
// 更新前スナップショットへ巻き戻して失敗通知を発行する。
// 作成はIDがサーバー採番のため楽観的挿入を行わず、成功時に正規レコードを先頭へ追加する。
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	stdsync "sync"
	"time"

	"github.com/hitoshi/detova/internal/metrics"
	"github.com/hitoshi/detova/internal/model"
	"github.com/hitoshi/detova/internal/repository"
	"github.com/hitoshi/detova/internal/scoring"
	"github.com/hitoshi/detova/internal/security"
)

// Notifier はミューテーション結果の通知先インターフェース。
// notify.Emitterの部分集合として定義する。
type Notifier interface {
	Success(message string) model.Notification
	Error(message string) model.Notification
	Info(message string) model.Notification
}

// Engine はコレクション同期エンジン。
//
// エポックは論理セッションの世代番号で、認証確立ごとにコントローラーが進める。
// 各ラウンドトリップは発行時点のエポックを持ち、完了時にエポックが
// 変わっていた場合は結果を破棄する。サインアウト後に遅延到着した結果が
// 別ユーザーの状態を汚染することを防ぐ。
type Engine struct {
	projects  repository.ProjectRepository
	tasks     repository.TaskRepository
	notifier  Notifier
	sanitizer security.TextSanitizerService
	scorer    scoring.Scorer
	metrics   metrics.MetricsCollector

	mu           stdsync.Mutex
	projectState []model.Project
	taskState    []model.Task
	activeEpoch  uint64 // 0は非アクティブ（未認証）

	locksMu stdsync.Mutex
	locks   map[string]*stdsync.Mutex
}

// NewEngine はEngineを生成する。metricsはnilでもよい。
func NewEngine(
	projects repository.ProjectRepository,
	tasks repository.TaskRepository,
	notifier Notifier,
	sanitizer security.TextSanitizerService,
	scorer scoring.Scorer,
	collector metrics.MetricsCollector,
) *Engine {
	return &Engine{
		projects:  projects,
		tasks:     tasks,
		notifier:  notifier,
		sanitizer: sanitizer,
		scorer:    scorer,
		metrics:   collector,
		locks:     make(map[string]*stdsync.Mutex),
	}
}

// Activate は指定エポックでエンジンを有効化する。
// 認証確立時にセッションコントローラーが呼ぶ。
func (e *Engine) Activate(epoch uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeEpoch = epoch
}

// Deactivate は両コレクションを即座に空にし、エンジンを無効化する。
// サインアウト時に呼ばれる。進行中のラウンドトリップの遅延結果は
// エポック不一致により破棄されるため、クリア後に状態が復活することはない。
func (e *Engine) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeEpoch = 0
	e.projectState = nil
	e.taskState = nil
}

// Projects は現在のプロジェクトスナップショットのコピーを返す。
func (e *Engine) Projects() []model.Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.projectState)
}

// Tasks は現在のタスクスナップショットのコピーを返す。
func (e *Engine) Tasks() []model.Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.taskState)
}

// RefreshAll は両コレクションをリモートストアから取得し、ローカル状態を全置換する。
// 認証成功ごとに1回呼ばれる。取得中にセッションが切り替わった場合、結果は破棄される。
func (e *Engine) RefreshAll(ctx context.Context) error {
	epoch := e.currentEpoch()
	if epoch == 0 {
		return model.NewUnauthorizedError()
	}

	start := time.Now()

	projects, err := e.projects.ListAll(ctx)
	if err != nil {
		return e.reportFailure("projects", "refresh", err)
	}

	tasks, err := e.tasks.ListAll(ctx)
	if err != nil {
		return e.reportFailure("tasks", "refresh", err)
	}

	e.mu.Lock()
	if e.activeEpoch != epoch {
		e.mu.Unlock()
		slog.Info("refresh result discarded: session changed")
		return nil
	}
	e.projectState = projects
	e.taskState = tasks
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordRefreshLatency(time.Since(start))
	}

	slog.Info("collections refreshed",
		slog.Int("projects", len(projects)),
		slog.Int("tasks", len(tasks)),
	)
	return nil
}

// AddProject はプロジェクトを作成する。
// ステータスはIdea、スコアはScorerによるプレースホルダー値。
// IDはサーバー採番のため楽観的挿入はせず、成功時に正規レコードを先頭へ追加する。
func (e *Engine) AddProject(ctx context.Context, title, description, ownerID string) (*model.Project, error) {
	title = e.sanitizer.Sanitize(title)
	description = e.sanitizer.Sanitize(description)
	if title == "" {
		return nil, model.NewInvalidInputError("タイトルは必須です")
	}

	epoch := e.currentEpoch()
	if epoch == 0 {
		return nil, model.NewUnauthorizedError()
	}

	market, tech := e.scorer.Score()
	created, err := e.projects.Insert(ctx, &model.Project{
		Title:       title,
		Description: description,
		Status:      model.ProjectStatusIdea,
		OwnerID:     ownerID,
		ScoreMarket: market,
		ScoreTech:   tech,
	})
	if err != nil {
		return nil, e.reportFailure("projects", "create", err)
	}

	e.prependProject(epoch, *created)
	e.recordMutation("projects", "create")
	e.notifier.Success(fmt.Sprintf("プロジェクト「%s」を作成しました。", created.Title))
	return created, nil
}

// UpdateProject は部分更新を楽観的に適用し、リモートへ送信する。
// リモート失敗時はコレクション全体を更新前スナップショットへ巻き戻す。
// 同一IDへのミューテーションは直列化される。
func (e *Engine) UpdateProject(ctx context.Context, id string, changes model.ProjectChanges) (*model.Project, error) {
	if changes.Title != nil {
		t := e.sanitizer.Sanitize(*changes.Title)
		if t == "" {
			return nil, model.NewInvalidInputError("タイトルは必須です")
		}
		changes.Title = &t
	}
	if changes.Description != nil {
		d := e.sanitizer.Sanitize(*changes.Description)
		changes.Description = &d
	}
	if changes.Status != nil && !model.ValidProjectStatus(*changes.Status) {
		return nil, model.NewInvalidInputError(fmt.Sprintf("不正なステータスです: %s", *changes.Status))
	}
	if err := validateScore(changes.ScoreMarket); err != nil {
		return nil, err
	}
	if err := validateScore(changes.ScoreTech); err != nil {
		return nil, err
	}

	unlock := e.lockEntity("project:" + id)
	defer unlock()

	// 楽観的適用。スナップショットはロールバック用。
	e.mu.Lock()
	epoch := e.activeEpoch
	if epoch == 0 {
		e.mu.Unlock()
		return nil, model.NewUnauthorizedError()
	}
	idx := slices.IndexFunc(e.projectState, func(p model.Project) bool { return p.ID == id })
	if idx < 0 {
		e.mu.Unlock()
		return nil, model.NewProjectNotFoundError(id)
	}
	snapshot := slices.Clone(e.projectState)
	applyProjectChanges(&e.projectState[idx], changes)
	e.mu.Unlock()

	updated, err := e.projects.UpdateByID(ctx, id, changes)
	if err != nil {
		e.rollbackProjects(epoch, snapshot)
		return nil, e.reportFailure("projects", "update", err)
	}

	e.recordMutation("projects", "update")
	return updated, nil
}

// DeleteProject はプロジェクトを削除する。
// 明示的な確認なしにはリモート呼び出し自体を発行しない。
// リモート削除に成功した場合のみローカルから取り除く（fails closed）。
func (e *Engine) DeleteProject(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return model.NewConfirmationRequiredError()
	}

	unlock := e.lockEntity("project:" + id)
	defer unlock()

	epoch := e.currentEpoch()
	if epoch == 0 {
		return model.NewUnauthorizedError()
	}

	if err := e.projects.DeleteByID(ctx, id); err != nil {
		return e.reportFailure("projects", "delete", err)
	}

	e.mu.Lock()
	if e.activeEpoch == epoch {
		e.projectState = slices.DeleteFunc(e.projectState, func(p model.Project) bool { return p.ID == id })
	}
	e.mu.Unlock()

	e.recordMutation("projects", "delete")
	e.notifier.Success("プロジェクトを削除しました。")
	return nil
}

// AddTask はタスクを作成する。担当者は作成ユーザー、ステータスはTodo。
func (e *Engine) AddTask(ctx context.Context, description, projectID string, isBlocker bool, assignedTo string) (*model.Task, error) {
	description = e.sanitizer.Sanitize(description)
	if description == "" {
		return nil, model.NewInvalidInputError("説明は必須です")
	}
	if projectID == "" {
		return nil, model.NewInvalidInputError("プロジェクトIDは必須です")
	}

	epoch := e.currentEpoch()
	if epoch == 0 {
		return nil, model.NewUnauthorizedError()
	}

	created, err := e.tasks.Insert(ctx, &model.Task{
		Description: description,
		AssignedTo:  assignedTo,
		ProjectID:   projectID,
		Status:      model.TaskStatusTodo,
		IsBlocker:   isBlocker,
	})
	if err != nil {
		return nil, e.reportFailure("tasks", "create", err)
	}

	e.prependTask(epoch, *created)
	e.recordMutation("tasks", "create")
	e.notifier.Success("タスクを作成しました。")
	return created, nil
}

// UpdateTask は部分更新を楽観的に適用し、リモートへ送信する。
// リモート失敗時はコレクション全体を更新前スナップショットへ巻き戻す。
// Doneへの遷移が確定した場合のみ成功通知を発行する。
func (e *Engine) UpdateTask(ctx context.Context, id string, changes model.TaskChanges) (*model.Task, error) {
	if changes.Description != nil {
		d := e.sanitizer.Sanitize(*changes.Description)
		if d == "" {
			return nil, model.NewInvalidInputError("説明は必須です")
		}
		changes.Description = &d
	}
	if changes.Status != nil && !model.ValidTaskStatus(*changes.Status) {
		return nil, model.NewInvalidInputError(fmt.Sprintf("不正なステータスです: %s", *changes.Status))
	}

	unlock := e.lockEntity("task:" + id)
	defer unlock()

	e.mu.Lock()
	epoch := e.activeEpoch
	if epoch == 0 {
		e.mu.Unlock()
		return nil, model.NewUnauthorizedError()
	}
	idx := slices.IndexFunc(e.taskState, func(t model.Task) bool { return t.ID == id })
	if idx < 0 {
		e.mu.Unlock()
		return nil, model.NewTaskNotFoundError(id)
	}
	snapshot := slices.Clone(e.taskState)
	prevStatus := e.taskState[idx].Status
	applyTaskChanges(&e.taskState[idx], changes)
	e.mu.Unlock()

	updated, err := e.tasks.UpdateByID(ctx, id, changes)
	if err != nil {
		e.rollbackTasks(epoch, snapshot)
		return nil, e.reportFailure("tasks", "update", err)
	}

	e.recordMutation("tasks", "update")
	if changes.Status != nil && *changes.Status == model.TaskStatusDone && prevStatus != model.TaskStatusDone {
		e.notifier.Success("タスクを完了しました。")
	}
	return updated, nil
}

// DeleteTask はタスクを削除する。
// リモート削除に成功した場合のみローカルから取り除く（fails closed）。
func (e *Engine) DeleteTask(ctx context.Context, id string) error {
	unlock := e.lockEntity("task:" + id)
	defer unlock()

	epoch := e.currentEpoch()
	if epoch == 0 {
		return model.NewUnauthorizedError()
	}

	if err := e.tasks.DeleteByID(ctx, id); err != nil {
		return e.reportFailure("tasks", "delete", err)
	}

	e.mu.Lock()
	if e.activeEpoch == epoch {
		e.taskState = slices.DeleteFunc(e.taskState, func(t model.Task) bool { return t.ID == id })
	}
	e.mu.Unlock()

	e.recordMutation("tasks", "delete")
	e.notifier.Success("タスクを削除しました。")
	return nil
}

// currentEpoch は現在のアクティブエポックを返す。
func (e *Engine) currentEpoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeEpoch
}

// prependProject はエポックが有効な場合のみ正規レコードを先頭へ追加する。
// 新規レコードを先頭に置く順序は表示上の慣習であり、
// サーバー側のcreated_at順と厳密に一致する保証はない。
func (e *Engine) prependProject(epoch uint64, p model.Project) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeEpoch != epoch {
		slog.Info("create result discarded: session changed", slog.String("project_id", p.ID))
		return
	}
	e.projectState = append([]model.Project{p}, e.projectState...)
}

// prependTask はエポックが有効な場合のみ正規レコードを先頭へ追加する。
func (e *Engine) prependTask(epoch uint64, t model.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeEpoch != epoch {
		slog.Info("create result discarded: session changed", slog.String("task_id", t.ID))
		return
	}
	e.taskState = append([]model.Task{t}, e.taskState...)
}

// rollbackProjects はエポックが有効な場合のみプロジェクト状態を巻き戻す。
func (e *Engine) rollbackProjects(epoch uint64, snapshot []model.Project) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeEpoch != epoch {
		return
	}
	e.projectState = snapshot
	if e.metrics != nil {
		e.metrics.RecordRollback("projects")
	}
}

// rollbackTasks はエポックが有効な場合のみタスク状態を巻き戻す。
func (e *Engine) rollbackTasks(epoch uint64, snapshot []model.Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.activeEpoch != epoch {
		return
	}
	e.taskState = snapshot
	if e.metrics != nil {
		e.metrics.RecordRollback("tasks")
	}
}

// lockEntity はエンティティ単位のミューテックスを取得し、解放関数を返す。
// 同一IDへの高速連続ミューテーションの競合（楽観的更新とロールバックの交錯）を防ぐ。
// エントリ数はエンティティ数で頭打ちになるため解放は行わない。
func (e *Engine) lockEntity(key string) func() {
	e.locksMu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &stdsync.Mutex{}
		e.locks[key] = l
	}
	e.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// reportFailure はリモート失敗をAPIエラーへ変換し、失敗通知とメトリクスを記録する。
func (e *Engine) reportFailure(collection, operation string, err error) *model.APIError {
	if e.metrics != nil {
		e.metrics.RecordMutationFailure(collection, operation)
	}

	apiErr := asAPIError(err, collection+" "+operation)
	slog.Error("remote request failed",
		slog.String("collection", collection),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	e.notifier.Error(apiErr.Message)
	return apiErr
}

// recordMutation はミューテーション成功をメトリクスに記録する。
func (e *Engine) recordMutation(collection, operation string) {
	if e.metrics != nil {
		e.metrics.RecordMutation(collection, operation)
	}
}

// asAPIError はエラーをAPIエラーへ変換する。
// 既にAPIエラーの場合はそのまま返し、それ以外はRemoteRequestFailedとして扱う。
func asAPIError(err error, operation string) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewRemoteRequestFailedError(operation)
}

// applyProjectChanges は部分更新をレコードへ適用する。nilフィールドは変更しない。
func applyProjectChanges(p *model.Project, changes model.ProjectChanges) {
	if changes.Title != nil {
		p.Title = *changes.Title
	}
	if changes.Description != nil {
		p.Description = *changes.Description
	}
	if changes.Status != nil {
		p.Status = *changes.Status
	}
	if changes.ScoreMarket != nil {
		p.ScoreMarket = *changes.ScoreMarket
	}
	if changes.ScoreTech != nil {
		p.ScoreTech = *changes.ScoreTech
	}
}

// applyTaskChanges は部分更新をレコードへ適用する。nilフィールドは変更しない。
func applyTaskChanges(t *model.Task, changes model.TaskChanges) {
	if changes.Description != nil {
		t.Description = *changes.Description
	}
	if changes.Status != nil {
		t.Status = *changes.Status
	}
	if changes.IsBlocker != nil {
		t.IsBlocker = *changes.IsBlocker
	}
}

// validateScore はスコアが0〜100の範囲か検証する。nilは変更なしとして許容する。
func validateScore(score *int) error {
	if score == nil {
		return nil
	}
	if *score < 0 || *score > 100 {
		return model.NewInvalidInputError(fmt.Sprintf("スコアは0〜100で指定してください: %d", *score))
	}
	return nil
}
