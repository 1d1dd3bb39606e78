package config

// Resource はチーム向けの外部リソースリンクを表す。
type Resource struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
	Icon     string `json:"icon"`
}

// Resources は静的なリソースリンク一覧を返す。
// いずれDBに移す可能性はあるが、変更頻度が低いため設定として持つ。
func Resources() []Resource {
	return []Resource{
		{ID: "r1", Name: "Bolt.new", URL: "https://bolt.new", Category: "Development", Icon: "⚡"},
		{ID: "r2", Name: "Replit", URL: "https://replit.com", Category: "IDE", Icon: "💻"},
		{ID: "r3", Name: "Supabase", URL: "https://supabase.com", Category: "Database", Icon: "🗄️"},
		{ID: "r4", Name: "Tailwind CSS", URL: "https://tailwindcss.com", Category: "Design", Icon: "🎨"},
	}
}
