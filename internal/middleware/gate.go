package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/hoteladmin/internal/access"
	"github.com/hitoshi/hoteladmin/internal/model"
)

// GateRecorder はアクセス判定の結果を記録するインターフェース。
type GateRecorder interface {
	RecordGateDecision(decision string)
}

// GateConfig はGateミドルウェアの設定。
type GateConfig struct {
	// Recorder はnilの場合は記録しない。
	Recorder GateRecorder
	// OnWait は認証状態の解決中に返すハンドラー。nilの場合は503を返す。
	OnWait http.Handler
	// JSON はリダイレクトの代わりに統一エラーフォーマットで応答するかどうか。
	JSON bool
	// SectionPath はロール判定に使うメニュー上のパスを返す。nilの場合はリクエストパスを使う。
	SectionPath func(r *http.Request) string
}

// NewGateMiddleware は保護領域へのリクエストごとにアクセス判定を行うミドルウェアを返す。
// 未ログインは/login、管理者ロールなしまたはロールが許可されていないパスは/access-deniedへ送る。
// 解決中は待機用のレスポンスを返し、リダイレクトしない。
func NewGateMiddleware(config GateConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			state := AuthStateFromContext(r.Context())

			path := r.URL.Path
			if config.SectionPath != nil {
				path = config.SectionPath(r)
			}

			decision := access.Decide(state)
			if decision.Kind == access.Render && !access.Allowed(path, state.AdminUser.Role) {
				decision = access.Decision{Kind: access.Redirect, Target: access.AccessDeniedPath}
			}

			if config.Recorder != nil {
				config.Recorder.RecordGateDecision(decision.Kind.String())
			}

			switch decision.Kind {
			case access.Render:
				next.ServeHTTP(w, r)
			case access.Wait:
				writeWait(w, r, config)
			case access.Redirect:
				slog.Debug("access gate redirect",
					slog.String("path", r.URL.Path),
					slog.String("target", decision.Target),
					slog.String("email", state.Email()),
				)
				if config.JSON {
					writeGateError(w, decision.Target)
					return
				}
				http.Redirect(w, r, decision.Target, http.StatusSeeOther)
			}
		})
	}
}

func writeWait(w http.ResponseWriter, r *http.Request, config GateConfig) {
	w.Header().Set("Retry-After", strconv.Itoa(1))
	if config.OnWait != nil && !config.JSON {
		config.OnWait.ServeHTTP(w, r)
		return
	}
	WriteErrorResponse(w, http.StatusServiceUnavailable, &model.APIError{
		Code:     "SESSION_LOADING",
		Message:  "Vérification de la session...",
		Category: "auth",
		Action:   "Réessayez dans un instant.",
	})
}

func writeGateError(w http.ResponseWriter, target string) {
	if target == access.LoginPath {
		WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}
	WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
}
