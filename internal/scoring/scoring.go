// Package scoring はプロジェクトの市場性・技術性スコアの供給源を定義する。
// 現状はプレースホルダーのランダム値で、将来のスコアリング連携の差し替え位置。
package scoring

import "math/rand/v2"

// Scorer は新規プロジェクトの市場性・技術性スコアを返す。
// 戻り値はいずれも0〜100の範囲。
type Scorer interface {
	Score() (market, tech int)
}

// ScorerFunc は関数をScorerとして使うためのアダプタ。
type ScorerFunc func() (market, tech int)

// Score はScorerインターフェースを実装する。
func (f ScorerFunc) Score() (market, tech int) {
	return f()
}

// NewRandomScorer は0〜100の一様乱数を返すプレースホルダーScorerを生成する。
func NewRandomScorer() Scorer {
	return ScorerFunc(func() (int, int) {
		return rand.IntN(101), rand.IntN(101)
	})
}
