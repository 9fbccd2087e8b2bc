// Package model はドメインモデルを定義する。
package model

import "time"

// Role は管理者ロールを表す。
type Role string

const (
	// RoleAdmin は全機能にアクセスできる管理者。
	RoleAdmin Role = "admin"
	// RoleManager は予約とレポートを扱うマネージャー。
	RoleManager Role = "manager"
	// RoleStaff はダッシュボードのみ閲覧できるスタッフ。
	RoleStaff Role = "staff"
)

// Valid は定義済みロールであるかを判定する。
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleStaff
}

// AdminUser はadmin_usersテーブルに登録された管理者ロールを表す。
// レコードが存在しない場合、有効なセッションがあっても管理画面へはアクセスできない。
type AdminUser struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Session は管理画面のログインセッションを表す。
// 外部認証プロバイダーが発行したトークンをセッション自身が保持する。
type Session struct {
	ID             string
	UserID         string
	Email          string
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// TokenExpired はアクセストークンが期限切れかどうかを判定する。
// 期限の直前（skew以内）も期限切れとみなす。
func (s *Session) TokenExpired(now time.Time, skew time.Duration) bool {
	if s.TokenExpiresAt.IsZero() {
		return false
	}
	return !now.Add(skew).Before(s.TokenExpiresAt)
}

// AuthState はアクセス判定に必要な認証状態を表す。
// Loadingの間はセッション解決中であり、リダイレクトを行わない。
type AuthState struct {
	Session   *Session
	AdminUser *AdminUser
	Loading   bool
	Err       error
}

// HasAdminAccess は管理者ロールが解決済みかどうかを返す。
func (s AuthState) HasAdminAccess() bool {
	return s.AdminUser != nil
}

// Email はセッションのメールアドレスを返す。未ログインの場合は空文字列。
func (s AuthState) Email() string {
	if s.Session == nil {
		return ""
	}
	return s.Session.Email
}
