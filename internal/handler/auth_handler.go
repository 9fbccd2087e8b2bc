// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/hoteladmin/internal/access"
	"github.com/hitoshi/hoteladmin/internal/auth"
	"github.com/hitoshi/hoteladmin/internal/middleware"
	"github.com/hitoshi/hoteladmin/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error)
	SignInWithMagicLink(ctx context.Context, email string) error
	CompleteMagicLink(ctx context.Context, tokenHash, otpType string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
}

// AuthHandler はログイン・ログアウト関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	renderer *Renderer
	cookie   middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, renderer *Renderer, cookie middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		renderer: renderer,
		cookie:   cookie,
	}
}

// loginView はログインフォームの描画データ。
type loginView struct {
	Magic       bool
	Email       string
	Error       string
	Notice      string
	MinEmail    int
	MinPassword int
}

func newLoginView(magic bool) loginView {
	return loginView{
		Magic:       magic,
		MinEmail:    auth.MinEmailLength,
		MinPassword: auth.MinPasswordLength,
	}
}

// LoginPage はログインフォームを表示する。
// GET /login?mode=password|magic
// ログイン済みの場合はロールに応じて / または /access-denied へ誘導する。
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfSignedIn(w, r) {
		return
	}

	view := newLoginView(r.URL.Query().Get("mode") == "magic")
	if r.URL.Query().Get("error") == "link" {
		view.Error = auth.UserMessage(auth.ErrMissingTokenHash)
	}
	h.renderer.Render(w, http.StatusOK, pageLogin, newPage(r, "Connexion", "", view))
}

// LoginSubmit はログインフォームの送信を処理する。
// POST /login (mode=password|magic, email, password)
func (h *AuthHandler) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfSignedIn(w, r) {
		return
	}

	view := newLoginView(r.PostFormValue("mode") == "magic")
	email := r.PostFormValue("email")
	view.Email = strings.TrimSpace(email)

	if view.Magic {
		if err := h.service.SignInWithMagicLink(r.Context(), email); err != nil {
			slog.Warn("magic link request failed", slog.String("error", err.Error()))
			view.Error = auth.UserMessage(err)
			h.renderer.Render(w, http.StatusOK, pageLogin, newPage(r, "Connexion", "", view))
			return
		}
		view.Email = ""
		view.Notice = "Un lien de connexion vient d’être envoyé par email."
		h.renderer.Render(w, http.StatusOK, pageLogin, newPage(r, "Connexion", "", view))
		return
	}

	session, err := h.service.SignInWithPassword(r.Context(), email, r.PostFormValue("password"))
	if err != nil {
		slog.Warn("password sign-in failed", slog.String("error", err.Error()))
		view.Error = auth.UserMessage(err)
		h.renderer.Render(w, http.StatusOK, pageLogin, newPage(r, "Connexion", "", view))
		return
	}

	middleware.SetSessionCookie(w, session.ID, h.cookie)
	// ロールの判定はゲートに任せる
	http.Redirect(w, r, access.HomePath, http.StatusSeeOther)
}

// Callback はマジックリンクからの戻りを処理する。
// GET /auth/callback?token_hash=xxx&type=magiclink
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	otpType := q.Get("type")
	if otpType == "" {
		otpType = "magiclink"
	}

	session, err := h.service.CompleteMagicLink(r.Context(), q.Get("token_hash"), otpType)
	if err != nil {
		slog.Warn("magic link callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, access.LoginPath+"?error=link", http.StatusSeeOther)
		return
	}

	middleware.SetSessionCookie(w, session.ID, h.cookie)
	http.Redirect(w, r, access.HomePath, http.StatusSeeOther)
}

// Logout はセッションを破棄する。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if id := middleware.SessionIDFromRequest(r); id != "" {
		if err := h.service.SignOut(r.Context(), id); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	middleware.ClearSessionCookie(w, h.cookie)
	http.Redirect(w, r, access.LoginPath, http.StatusSeeOther)
}

// AccessDenied は管理者ロールを持たないアカウント向けのページを表示する。
// GET /access-denied
func (h *AuthHandler) AccessDenied(w http.ResponseWriter, r *http.Request) {
	page := newPage(r, "Accès refusé", "", nil)
	page.Menu = nil
	h.renderer.Render(w, http.StatusForbidden, pageAccessDenied, page)
}

// redirectIfSignedIn はログイン済みの場合にリダイレクトまたは待機ページを返し、trueを返す。
func (h *AuthHandler) redirectIfSignedIn(w http.ResponseWriter, r *http.Request) bool {
	state := middleware.AuthStateFromContext(r.Context())
	decision := access.DecideLoginPage(state)
	switch decision.Kind {
	case access.Wait:
		h.renderer.WaitHandler("Vérification de la session...").ServeHTTP(w, r)
		return true
	case access.Redirect:
		http.Redirect(w, r, decision.Target, http.StatusSeeOther)
		return true
	default:
		return false
	}
}
