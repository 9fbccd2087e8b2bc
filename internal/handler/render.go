package handler

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/hoteladmin/internal/access"
	"github.com/hitoshi/hoteladmin/internal/messaging"
	"github.com/hitoshi/hoteladmin/internal/middleware"
	"github.com/hitoshi/hoteladmin/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// ページ名。templates/<name>.html に対応する。
const (
	pageLogin             = "login"
	pageWait              = "wait"
	pageAccessDenied      = "access_denied"
	pageDashboard         = "dashboard"
	pageReservations      = "reservations"
	pageReservationDetail = "reservation_detail"
	pageReports           = "reports"
	pageUsers             = "users"
)

var pageNames = []string{
	pageLogin, pageWait, pageAccessDenied, pageDashboard,
	pageReservations, pageReservationDetail, pageReports, pageUsers,
}

var templateFuncs = template.FuncMap{
	"statusLabel": func(s model.BookingStatus) string { return s.Label() },
	"modeLabel": func(m *model.BookingMode) string {
		if m == nil {
			return model.BookingMode("").Label()
		}
		return m.Label()
	},
	"statuses": model.BookingStatuses,
	"deref":    derefString,
	"orDash": func(s *string) string {
		if v := derefString(s); v != "" {
			return v
		}
		return "-"
	},
	"amount": func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%.2f TND", *v)
	},
	"percent": func(n, total int) string {
		if total <= 0 {
			return "0 %"
		}
		return fmt.Sprintf("%.0f %%", float64(n)*100/float64(total))
	},
}

// Renderer は埋め込みテンプレートからHTMLページを描画する。
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer は全ページのテンプレートを解析する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Page はレイアウトに渡す共通の描画データ。
// Menuが空の場合はナビゲーションなしで描画する。
type Page struct {
	Title     string
	Email     string
	Role      model.Role
	Menu      []access.MenuItem
	Active    string
	CSRFToken string
	Refresh   int
	Data      any
}

// newPage はリクエストの認証状態からPageを組み立てる。
func newPage(r *http.Request, title, active string, data any) Page {
	state := middleware.AuthStateFromContext(r.Context())
	p := Page{
		Title:     title,
		Email:     state.Email(),
		Active:    active,
		CSRFToken: middleware.CSRFTokenFromContext(r.Context()),
		Data:      data,
	}
	if state.AdminUser != nil {
		p.Role = state.AdminUser.Role
		p.Menu = access.VisibleMenu(state.AdminUser.Role)
	}
	return p
}

// Render はページを描画する。描画に失敗した場合は500を返す。
func (rr *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) {
	t, ok := rr.pages[name]
	if !ok {
		slog.Error("unknown page template", slog.String("page", name))
		middleware.WriteInternalServerError(w)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", page); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// WaitHandler はセッション解決中に表示する待機ページのハンドラーを返す。
// 1秒後に同じURLを再読み込みする。
func (rr *Renderer) WaitHandler(message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := newPage(r, "Chargement", "", message)
		page.Menu = nil
		page.Refresh = 1
		rr.Render(w, http.StatusOK, pageWait, page)
	})
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// copyAckMillis はコピー完了表示を元に戻すまでのミリ秒。
var copyAckMillis = messaging.CopyAckWindow.Milliseconds()
