package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/detova/internal/middleware"
	"github.com/hitoshi/detova/internal/model"
)

// HealthChecker はヘルスチェックに必要な最小インターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// セッション
	Controller SessionControllerInterface
	AuthConfig AuthHandlerConfig

	// コレクション同期
	ProjectEngine ProjectEngineInterface
	TaskEngine    TaskEngineInterface

	// 通知
	NotificationFeed NotificationFeedInterface

	// メトリクス（nilの場合は/metricsを公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → SessionMiddleware → RateLimit(General)
//
// 認証ルート（/auth/*）と/health、/metricsはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.LoggingMiddleware)

	authHandler := NewAuthHandler(deps.Controller, deps.AuthConfig)
	projectHandler := NewProjectHandler(deps.ProjectEngine)
	taskHandler := NewTaskHandler(deps.TaskEngine)
	notificationHandler := NewNotificationHandler(deps.NotificationFeed)
	resourceHandler := NewResourceHandler()

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.Login)
		r.Get("/github/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Controller))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		mutation := deps.RateLimiter.MutationMiddleware()

		// プロジェクト管理
		r.Route("/api/projects", func(r chi.Router) {
			r.Get("/", projectHandler.ListProjects)
			r.With(mutation).Post("/", projectHandler.CreateProject)

			r.Route("/{id}", func(r chi.Router) {
				r.With(mutation).Patch("/", projectHandler.UpdateProject)
				r.With(mutation).Delete("/", projectHandler.DeleteProject)
			})
		})

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			r.Get("/", taskHandler.ListTasks)
			r.With(mutation).Post("/", taskHandler.CreateTask)

			r.Route("/{id}", func(r chi.Router) {
				r.With(mutation).Patch("/", taskHandler.UpdateTask)
				r.With(mutation).Delete("/", taskHandler.DeleteTask)
			})
		})

		// 通知フィード
		r.Route("/api/notifications", func(r chi.Router) {
			r.Get("/", notificationHandler.ListNotifications)
			r.Delete("/{id}", notificationHandler.DismissNotification)
		})

		// リソースリンク
		r.Get("/api/resources", resourceHandler.ListResources)
	})

	return r
}

// NewBannerRouter は設定欠落時のバナーモード用ルーターを返す。
// すべてのパスで503と欠落エラーを返し、オペレーターに欠落変数名を提示する。
// /health だけは稼働確認のため200を返す。
func NewBannerRouter(configErr *model.APIError) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.LoggingMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "configuration_missing",
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, configErr)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeAPIErrorResponse(w, http.StatusServiceUnavailable, configErr)
	})

	return r
}

// healthHandler はヘルスチェックエンドポイントのハンドラーを返す。
// DB疎通を確認し、失敗時は503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if checker != nil {
			if err := checker.Ping(); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{
					"status": "unhealthy",
				})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status": "ok",
		})
	}
}
