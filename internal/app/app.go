// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/detova/internal/allowlist"
	"github.com/hitoshi/detova/internal/auth"
	"github.com/hitoshi/detova/internal/config"
	"github.com/hitoshi/detova/internal/database"
	"github.com/hitoshi/detova/internal/handler"
	"github.com/hitoshi/detova/internal/identity"
	"github.com/hitoshi/detova/internal/logger"
	"github.com/hitoshi/detova/internal/metrics"
	"github.com/hitoshi/detova/internal/middleware"
	"github.com/hitoshi/detova/internal/model"
	"github.com/hitoshi/detova/internal/notify"
	"github.com/hitoshi/detova/internal/repository"
	"github.com/hitoshi/detova/internal/scoring"
	"github.com/hitoshi/detova/internal/security"
	"github.com/hitoshi/detova/internal/session"
	syncpkg "github.com/hitoshi/detova/internal/sync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
//
// 設定欠落はserveモードでは致命的エラーとせず、すべてのリクエストに
// 欠落内容を返すバナーモードで起動を継続する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		var apiErr *model.APIError
		if cmd == CommandServe && errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeConfigurationMissing {
			slog.Error("configuration missing, starting in banner mode",
				slog.String("error", apiErr.Message),
			)
			return runBanner(apiErr)
		}
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はポータルAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	profileRepo := repository.NewPostgresProfileRepo(db)
	projectRepo := repository.NewPostgresProjectRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)

	// 3. メトリクスと通知フィードの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	notifier := notify.NewEmitter(cfg.NotificationTTL)

	// 4. ドメインサービスの初期化
	allow := allowlist.New(cfg.AllowedUsers)
	mapper := identity.NewMapper(allow, profileRepo)
	sanitizer := security.NewTextSanitizer()
	scorer := scoring.NewRandomScorer()

	engine := syncpkg.NewEngine(projectRepo, taskRepo, notifier, sanitizer, scorer, collector)

	oauthProvider := auth.NewGithubOAuthProvider(auth.GithubOAuthConfig{
		ClientID:     cfg.GithubClientID,
		ClientSecret: cfg.GithubClientSecret,
		RedirectURL:  cfg.GithubRedirectURL,
	})

	controller := session.NewController(oauthProvider, mapper, engine, notifier, collector, cfg.SessionSecret)

	// 5. セッションライフサイクルの起動
	// 初期プローブで復元済みセッションの確立を試み、以降はイベントを購読する。
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := controller.Initialize(ctx); err != nil {
		slog.Warn("session probe failed", slog.String("error", err.Error()))
	}
	go controller.Run(ctx)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rateLimitPerMinute(cfg.RateLimitGeneral),
		GeneralBurst:    cfg.RateLimitGeneral,
		MutationRate:    rateLimitPerMinute(cfg.RateLimitMutation),
		MutationBurst:   cfg.RateLimitMutation,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Controller: controller,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProjectEngine: engine,
		TaskEngine:    engine,

		NotificationFeed: notifier,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	return serveHTTP(cfg.ServerPort, router)
}

// runBanner は設定欠落時のバナーモードで起動する。
// DBにもIdPにも接続せず、すべてのAPIリクエストに欠落エラーを返す。
func runBanner(configErr *model.APIError) error {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	router := handler.NewBannerRouter(configErr)
	return serveHTTP(port, router)
}

// serveHTTP はHTTPサーバーを起動し、シグナル受信までブロックする。
func serveHTTP(port string, router http.Handler) error {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// rateLimitPerMinute はreq/min単位の設定値をrate.Limit（req/sec）に変換する。
func rateLimitPerMinute(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
