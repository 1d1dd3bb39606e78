package security

import "testing"

func TestSanitize_StripsAllHTMLTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "script tag removed",
			input: `<script>alert("xss")</script>新機能の検討`,
			want:  "新機能の検討",
		},
		{
			name:  "formatting tags removed",
			input: "<b>重要な</b>プロジェクト",
			want:  "重要なプロジェクト",
		},
		{
			name:  "anchor tag removed",
			input: `<a href="https://evil.example.com">リンク</a>`,
			want:  "リンク",
		},
		{
			name:  "plain text unchanged",
			input: "普通のタイトル",
			want:  "普通のタイトル",
		},
		{
			name:  "leading and trailing whitespace trimmed",
			input: "  タイトル  ",
			want:  "タイトル",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "tags only becomes empty",
			input: "<div></div>",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	s := NewTextSanitizer()

	input := "<b>タイトル</b>"
	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if once != twice {
		t.Errorf("Sanitize not idempotent: %q != %q", once, twice)
	}
}
