// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/hoteladmin/internal/model"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "hoteladmin_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// authStateContextKey はリクエストコンテキストに認証状態を格納するためのキー。
var authStateContextKey = contextKey("auth_state")

// AuthResolver はセッションIDから認証状態を解決するインターフェース。
// auth.Serviceが実装する。
type AuthResolver interface {
	Resolve(ctx context.Context, sessionID string) model.AuthState
}

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// すべてのリクエストで認証状態を解決してコンテキストに注入するミドルウェアを返す。
// 未認証でもリクエストは拒否せず、アクセス判定はGateミドルウェアが行う。
func NewSessionMiddleware(resolver AuthResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var state model.AuthState
			if id := SessionIDFromRequest(r); id != "" {
				state = resolver.Resolve(r.Context(), id)
			}

			setRequestEmail(r.Context(), state.Email())

			ctx := ContextWithAuthState(r.Context(), state)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromRequest はCookieからセッションIDを取り出す。Cookieがない場合は空文字列。
func SessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// AuthStateFromContext はリクエストコンテキストから認証状態を取得する。
// セッションミドルウェアを通過していない場合はゼロ値（未ログイン）を返す。
func AuthStateFromContext(ctx context.Context) model.AuthState {
	state, _ := ctx.Value(authStateContextKey).(model.AuthState)
	return state
}

// ContextWithAuthState はコンテキストに認証状態を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAuthState(ctx context.Context, state model.AuthState) context.Context {
	return context.WithValue(ctx, authStateContextKey, state)
}

// SetSessionCookie はセッションCookieを設定する。
func SetSessionCookie(w http.ResponseWriter, sessionID string, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie はセッションCookieを削除する。
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
