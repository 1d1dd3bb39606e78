package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// LoggingMiddleware はリクエストごとに構造化ログを出力する。
// 認証済みセッションが存在する場合はuser_idを併記する。
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		attrs := []any{
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("remote_addr", r.RemoteAddr),
		}
		if profile, err := ProfileFromContext(r.Context()); err == nil {
			attrs = append(attrs, slog.String("user_id", profile.ID))
		}
		slog.Info("request completed", attrs...)
	})
}
