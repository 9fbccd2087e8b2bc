// Package auth はログイン、ログアウト、リクエストごとの認証状態の解決を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hitoshi/hoteladmin/internal/identity"
	"github.com/hitoshi/hoteladmin/internal/model"
	"github.com/hitoshi/hoteladmin/internal/session"
)

// ログインフォームの入力規則
const (
	MinEmailLength    = 4
	MinPasswordLength = 6
)

// 入力検証エラー
var (
	ErrEmailTooShort    = errors.New("email is too short")
	ErrPasswordTooShort = errors.New("password is too short")
	ErrMissingTokenHash = errors.New("magic link token is missing")
)

// IdentityProvider は外部認証プロバイダーのインターフェース。
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*identity.Tokens, error)
	SignInWithMagicLink(ctx context.Context, email, redirectTo string) error
	VerifyOTP(ctx context.Context, tokenHash, otpType string) (*identity.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
}

// RoleFinder は管理者ロールを検索するインターフェース。
type RoleFinder interface {
	FindAdminUser(ctx context.Context, token, email string) (*model.AdminUser, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// CallbackURL はマジックリンクのリダイレクト先。
	CallbackURL string
	// RefreshSkew はトークン期限の何秒前から更新対象とみなすか。
	RefreshSkew time.Duration
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	idp      IdentityProvider
	roles    RoleFinder
	sessions *session.Store
	claims   *identity.ClaimsParser
	config   ServiceConfig
	now      func() time.Time

	mu         sync.Mutex
	refreshing map[string]struct{}
}

// NewService はServiceを生成する。
func NewService(
	idp IdentityProvider,
	roles RoleFinder,
	sessions *session.Store,
	claims *identity.ClaimsParser,
	config ServiceConfig,
) *Service {
	if config.RefreshSkew == 0 {
		config.RefreshSkew = 30 * time.Second
	}
	return &Service{
		idp:        idp,
		roles:      roles,
		sessions:   sessions,
		claims:     claims,
		config:     config,
		now:        time.Now,
		refreshing: make(map[string]struct{}),
	}
}

// ValidateLogin はログインフォームの入力を検証する。
// マジックリンクの場合はパスワードを検証しない。
func ValidateLogin(email, password string, magicLink bool) error {
	if len(strings.TrimSpace(email)) < MinEmailLength {
		return ErrEmailTooShort
	}
	if !magicLink && len(strings.TrimSpace(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// SignInWithPassword はメールアドレスとパスワードでログインし、セッションを発行する。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	if err := ValidateLogin(email, password, false); err != nil {
		return nil, err
	}

	tokens, err := s.idp.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	return s.startSession(ctx, tokens, "password")
}

// SignInWithMagicLink はログイン用リンクをメール送信する。
// 未登録のメールアドレスに対してアカウントは作成されない。
func (s *Service) SignInWithMagicLink(ctx context.Context, email string) error {
	if err := ValidateLogin(email, "", true); err != nil {
		return err
	}

	if err := s.idp.SignInWithMagicLink(ctx, strings.TrimSpace(email), s.config.CallbackURL); err != nil {
		return fmt.Errorf("failed to send magic link: %w", err)
	}

	slog.Info("magic link sent", slog.String("email", strings.TrimSpace(email)))
	return nil
}

// CompleteMagicLink はマジックリンクのトークンを検証し、セッションを発行する。
func (s *Service) CompleteMagicLink(ctx context.Context, tokenHash, otpType string) (*model.Session, error) {
	if tokenHash == "" {
		return nil, ErrMissingTokenHash
	}

	tokens, err := s.idp.VerifyOTP(ctx, tokenHash, otpType)
	if err != nil {
		return nil, fmt.Errorf("failed to verify magic link: %w", err)
	}

	return s.startSession(ctx, tokens, "magic_link")
}

// SignOut はセッションを破棄する。
// 認証プロバイダー側のログアウトに失敗してもローカルのセッションは破棄する。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if sess != nil && sess.AccessToken != "" {
		if err := s.idp.SignOut(ctx, sess.AccessToken); err != nil {
			slog.Warn("provider sign out failed",
				slog.String("email", sess.Email),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if sess != nil {
		slog.Info("admin signed out", slog.String("email", sess.Email))
	}
	return nil
}

// Resolve はセッションIDから現在の認証状態を解決する。
// アクセストークンが期限切れの場合は更新し、管理者ロールを取得する。
// 同じセッションの更新が別のリクエストで進行中の場合はLoadingを返す。
func (s *Service) Resolve(ctx context.Context, sessionID string) model.AuthState {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return model.AuthState{Err: err}
	}
	if sess == nil {
		return model.AuthState{}
	}

	if sess.TokenExpired(s.now(), s.config.RefreshSkew) {
		id := sess.ID
		if !s.beginRefresh(id) {
			return model.AuthState{Session: sess, Loading: true}
		}
		sess, err = s.refreshIfExpired(ctx, id)
		s.endRefresh(id)
		if err != nil {
			return model.AuthState{Err: err}
		}
		if sess == nil {
			return model.AuthState{}
		}
	}

	admin, err := s.roles.FindAdminUser(ctx, sess.AccessToken, sess.Email)
	if err != nil {
		slog.Warn("failed to fetch admin role",
			slog.String("email", sess.Email),
			slog.String("error", err.Error()),
		)
		return model.AuthState{Session: sess, Err: err}
	}

	return model.AuthState{Session: sess, AdminUser: admin}
}

// refreshIfExpired は更新の権利を得た後にセッションを読み直し、まだ期限切れの場合だけ更新する。
// 読み込みから権利取得までの間に別のリクエストが更新を終えていれば、
// ローテーション済みのリフレッシュトークンを再送しない。
func (s *Service) refreshIfExpired(ctx context.Context, id string) (*model.Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil || sess == nil {
		return nil, err
	}
	if !sess.TokenExpired(s.now(), s.config.RefreshSkew) {
		return sess, nil
	}
	if err := s.refresh(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// refresh はセッションのトークンを更新する。
// 認証プロバイダーがリフレッシュトークンを拒否した場合はセッションを破棄する。
func (s *Service) refresh(ctx context.Context, sess *model.Session) error {
	tokens, err := s.idp.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		var authErr *identity.AuthError
		if errors.As(err, &authErr) {
			if delErr := s.sessions.Delete(ctx, sess.ID); delErr != nil {
				slog.Warn("failed to delete rejected session", slog.String("error", delErr.Error()))
			}
		}
		return fmt.Errorf("failed to refresh token: %w", err)
	}

	if err := s.sessions.Refresh(ctx, sess, tokens.AccessToken, tokens.RefreshToken, s.tokenExpiry(tokens)); err != nil {
		return err
	}

	slog.Debug("access token refreshed", slog.String("email", sess.Email))
	return nil
}

func (s *Service) beginRefresh(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.refreshing[id]; ok {
		return false
	}
	s.refreshing[id] = struct{}{}
	return true
}

func (s *Service) endRefresh(id string) {
	s.mu.Lock()
	delete(s.refreshing, id)
	s.mu.Unlock()
}

// startSession はトークンからローカルセッションを作成する。
// レスポンスにユーザー情報が欠けている場合はアクセストークンのクレームで補う。
func (s *Service) startSession(ctx context.Context, tokens *identity.Tokens, method string) (*model.Session, error) {
	creds := session.Credentials{
		UserID:         tokens.User.ID,
		Email:          tokens.User.Email,
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: s.tokenExpiry(tokens),
	}

	if creds.UserID == "" || creds.Email == "" {
		claims, err := s.claims.Parse(tokens.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to read token claims: %w", err)
		}
		if creds.UserID == "" {
			creds.UserID = claims.Subject
		}
		if creds.Email == "" {
			creds.Email = claims.Email
		}
	}
	if creds.Email == "" {
		return nil, errors.New("token does not carry an email address")
	}

	sess, err := s.sessions.Create(ctx, creds)
	if err != nil {
		return nil, err
	}

	slog.Info("admin signed in",
		slog.String("email", sess.Email),
		slog.String("method", method),
	)
	return sess, nil
}

func (s *Service) tokenExpiry(tokens *identity.Tokens) time.Time {
	if exp := tokens.Expiry(s.now()); !exp.IsZero() {
		return exp
	}
	if claims, err := s.claims.Parse(tokens.AccessToken); err == nil {
		return claims.Expiry()
	}
	return time.Time{}
}

var messagePolicy = bluemonday.StrictPolicy()

// UserMessage はエラーをログイン画面に表示する文言に変換する。
// 認証プロバイダーのメッセージはマークアップを除去して表示する。
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		if msg := strings.TrimSpace(messagePolicy.Sanitize(authErr.Message)); msg != "" {
			return msg
		}
		return "Identifiants invalides."
	}
	switch {
	case errors.Is(err, ErrEmailTooShort):
		return "Adresse email invalide."
	case errors.Is(err, ErrPasswordTooShort):
		return fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères.", MinPasswordLength)
	case errors.Is(err, ErrMissingTokenHash):
		return "Lien de connexion invalide ou expiré."
	}
	return "Erreur lors de la connexion. Réessayez dans quelques instants."
}
