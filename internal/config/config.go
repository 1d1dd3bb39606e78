package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/detova/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GithubClientID     string
	GithubClientSecret string
	GithubRedirectURL  string

	// Access control
	AllowedUsers []string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Notification
	NotificationTTL time.Duration

	// Rate Limit
	RateLimitGeneral  int
	RateLimitMutation int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// リモートストアやIdPの資格情報が未設定の場合はConfigurationMissingエラーを返す。
// このエラーは致命的だが、ポータルはバナーモードで起動を継続し、
// 欠落変数名をそのままオペレーターに提示する。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GithubClientID = os.Getenv("GITHUB_CLIENT_ID")
	if cfg.GithubClientID == "" {
		missing = append(missing, "GITHUB_CLIENT_ID")
	}

	cfg.GithubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	if cfg.GithubClientSecret == "" {
		missing = append(missing, "GITHUB_CLIENT_SECRET")
	}

	cfg.GithubRedirectURL = os.Getenv("GITHUB_REDIRECT_URL")
	if cfg.GithubRedirectURL == "" {
		missing = append(missing, "GITHUB_REDIRECT_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	allowed := os.Getenv("ALLOWED_USERS")
	if allowed == "" {
		missing = append(missing, "ALLOWED_USERS")
	}

	if len(missing) > 0 {
		return nil, model.NewConfigurationMissingError(missing)
	}

	cfg.AllowedUsers = splitAllowedUsers(allowed)

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.NotificationTTL = getEnvDuration("NOTIFICATION_TTL", 4*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitMutation = getEnvInt("RATE_LIMIT_MUTATION", 30)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// splitAllowedUsers はカンマ区切りの許可ユーザー名リストを分解する。
// 空要素は取り除くが、大文字小文字の正規化は行わない（完全一致で照合するため）。
func splitAllowedUsers(s string) []string {
	parts := strings.Split(s, ",")
	users := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			users = append(users, p)
		}
	}
	return users
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
