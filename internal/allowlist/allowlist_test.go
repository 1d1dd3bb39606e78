package allowlist

import "testing"

func TestContains_ExactMatch(t *testing.T) {
	a := New([]string{"hanako_dev", "demi_dev"})

	if !a.Contains("hanako_dev") {
		t.Error("Contains(hanako_dev) = false, want true")
	}
	if a.Contains("unknown") {
		t.Error("Contains(unknown) = true, want false")
	}
}

func TestContains_CaseSensitive(t *testing.T) {
	a := New([]string{"demi_dev"})

	// 大文字小文字は正規化しない
	if a.Contains("Demi_Dev") {
		t.Error("Contains(Demi_Dev) = true, want false")
	}
	if a.Contains("DEMI_DEV") {
		t.Error("Contains(DEMI_DEV) = true, want false")
	}
}

func TestLen_CountsUniqueMembers(t *testing.T) {
	a := New([]string{"a", "b", "a"})

	if got := a.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestContains_EmptyAllowlist(t *testing.T) {
	a := New(nil)

	if a.Contains("anyone") {
		t.Error("Contains(anyone) = true, want false")
	}
	if got := a.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}
