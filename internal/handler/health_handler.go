package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheckFunc はセッションストアなど依存先の疎通を確認する。
type HealthCheckFunc func(ctx context.Context) error

// NewHealthHandler はヘルスチェックのハンドラーを返す。
// GET /health
// checkがnilの場合はプロセスの生存のみを返す。
func NewHealthHandler(check HealthCheckFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
