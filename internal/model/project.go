// Package model はドメインモデルを定義する。
package model

import "time"

// ProjectStatus はプロジェクトのパイプライン段階を表す。
type ProjectStatus string

const (
	// ProjectStatusIdea はアイデア段階。新規作成時の初期値。
	ProjectStatusIdea ProjectStatus = "Idea"
	// ProjectStatusApproved は承認済み段階。
	ProjectStatusApproved ProjectStatus = "Approved"
	// ProjectStatusInProgress は進行中段階。
	ProjectStatusInProgress ProjectStatus = "In Progress"
	// ProjectStatusShipped はリリース済み段階。
	ProjectStatusShipped ProjectStatus = "Shipped"
)

// ValidProjectStatus はプロジェクトステータスとして有効な値か判定する。
func ValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case ProjectStatusIdea, ProjectStatusApproved, ProjectStatusInProgress, ProjectStatusShipped:
		return true
	}
	return false
}

// Project はパイプラインで追跡するプロジェクトを表す。
// ScoreMarket / ScoreTech は0〜100のプレースホルダー評価値で、
// 将来のスコアリング連携の差し替え位置。
type Project struct {
	ID          string
	Title       string
	Description string
	Status      ProjectStatus
	OwnerID     string
	ScoreMarket int
	ScoreTech   int
	CreatedAt   time.Time
}

// ProjectChanges はプロジェクトの部分更新を表す。
// nilフィールドは変更しない。
type ProjectChanges struct {
	Title       *string
	Description *string
	Status      *ProjectStatus
	ScoreMarket *int
	ScoreTech   *int
}
