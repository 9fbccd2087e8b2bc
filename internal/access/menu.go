package access

import (
	"slices"
	"strings"

	"github.com/hitoshi/hoteladmin/internal/model"
)

// MenuItem はナビゲーションメニューの1項目を表す。
// Rolesに含まれるロールのみが項目を閲覧・遷移できる。
type MenuItem struct {
	Label string
	Path  string
	Roles []model.Role
}

// AllowsRole は項目が指定ロールに公開されているかを返す。
func (m MenuItem) AllowsRole(role model.Role) bool {
	return slices.Contains(m.Roles, role)
}

// Menu は管理画面のメニュー定義。ルートのアクセス制御もこの定義に従う。
var Menu = []MenuItem{
	{Label: "Tableau de bord", Path: "/", Roles: []model.Role{model.RoleAdmin, model.RoleManager, model.RoleStaff}},
	{Label: "Réservations", Path: "/reservations", Roles: []model.Role{model.RoleAdmin, model.RoleManager}},
	{Label: "Rapports", Path: "/reports", Roles: []model.Role{model.RoleAdmin, model.RoleManager}},
	{Label: "Utilisateurs", Path: "/users", Roles: []model.Role{model.RoleAdmin}},
}

// VisibleMenu は指定ロールが閲覧できるメニュー項目を定義順に返す。
func VisibleMenu(role model.Role) []MenuItem {
	var items []MenuItem
	for _, item := range Menu {
		if item.AllowsRole(role) {
			items = append(items, item)
		}
	}
	return items
}

// SectionFor はパスが属するメニュー項目を返す。
// "/reservations/abc" は "/reservations" に属する。どの項目にも属さない場合はfalse。
func SectionFor(path string) (MenuItem, bool) {
	if path == "" {
		path = HomePath
	}
	var best MenuItem
	found := false
	for _, item := range Menu {
		if !pathWithin(path, item.Path) {
			continue
		}
		if !found || len(item.Path) > len(best.Path) {
			best = item
			found = true
		}
	}
	return best, found
}

// Allowed はロールがパス配下のルートへアクセスできるかを判定する。
// メニュー経由でもURL直接指定でも同じ判定が適用される。
func Allowed(path string, role model.Role) bool {
	item, ok := SectionFor(path)
	if !ok {
		return false
	}
	return item.AllowsRole(role)
}

// pathWithin はpathがprefixのルート配下にあるかを判定する。
func pathWithin(path, prefix string) bool {
	if prefix == HomePath {
		return path == HomePath
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
