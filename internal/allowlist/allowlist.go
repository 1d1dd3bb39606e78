// Package allowlist はポータルへのアクセスを許可するユーザー名の静的集合を提供する。
// 許可リストは唯一の認可ゲートであり、ロールやトークンによる二次チェックは存在しない。
package allowlist

// Allowlist は許可されたGitHubユーザー名の固定集合。
type Allowlist struct {
	members map[string]struct{}
}

// New は指定ユーザー名からAllowlistを生成する。
func New(usernames []string) *Allowlist {
	members := make(map[string]struct{}, len(usernames))
	for _, u := range usernames {
		members[u] = struct{}{}
	}
	return &Allowlist{members: members}
}

// Contains はユーザー名が許可リストに含まれるか判定する。
// 大文字小文字を区別した完全一致で照合する。
func (a *Allowlist) Contains(username string) bool {
	_, ok := a.members[username]
	return ok
}

// Len は許可リストの登録数を返す。
func (a *Allowlist) Len() int {
	return len(a.members)
}
