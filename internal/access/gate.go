// Package access は管理画面へのアクセス判定（ゲート）とロール別メニューを提供する。
package access

import (
	"github.com/hitoshi/hoteladmin/internal/model"
)

// 判定で使用するルート。
const (
	LoginPath        = "/login"
	AccessDeniedPath = "/access-denied"
	HomePath         = "/"
)

// DecisionKind はゲート判定の種別を表す。
type DecisionKind int

const (
	// Render は保護領域の描画を許可する。
	Render DecisionKind = iota
	// Wait はセッション解決中のため待機画面を描画する。
	Wait
	// Redirect は別ルートへリダイレクトする。
	Redirect
)

// String はメトリクスやログ向けの判定名を返す。
func (k DecisionKind) String() string {
	switch k {
	case Render:
		return "render"
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Decision はゲート判定結果を表す。RedirectのときのみTargetが設定される。
type Decision struct {
	Kind   DecisionKind
	Target string
}

// Decide は認証状態から保護領域へのアクセス可否を判定する。
//
// 判定順序:
//  1. 解決中（Loading）: 待機。ログイン画面への一瞬のリダイレクトを防ぐ。
//  2. セッションなし: /login へリダイレクト。
//  3. 管理者ロールなし: /access-denied へリダイレクト。
//  4. それ以外: 描画。
//
// ロール取得の失敗はAdminUser=nilとして扱われるため、「ロールなし」と同じ結果になる。
func Decide(state model.AuthState) Decision {
	if state.Loading {
		return Decision{Kind: Wait}
	}
	if state.Session == nil {
		return Decision{Kind: Redirect, Target: LoginPath}
	}
	if !state.HasAdminAccess() {
		return Decision{Kind: Redirect, Target: AccessDeniedPath}
	}
	return Decision{Kind: Render}
}

// DecideLoginPage はログイン画面を表示すべきかを判定する。
// 既にログイン済みの場合は、ロールの有無に応じて / または /access-denied へ誘導する。
func DecideLoginPage(state model.AuthState) Decision {
	if state.Loading {
		return Decision{Kind: Wait}
	}
	if state.Session == nil {
		return Decision{Kind: Render}
	}
	if state.HasAdminAccess() {
		return Decision{Kind: Redirect, Target: HomePath}
	}
	return Decision{Kind: Redirect, Target: AccessDeniedPath}
}
