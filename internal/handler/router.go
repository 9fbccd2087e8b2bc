package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hoteladmin/internal/access"
	"github.com/hitoshi/hoteladmin/internal/middleware"
)

// Recorder はHTTP層のメトリクスを記録するインターフェース。
type Recorder interface {
	middleware.GateRecorder
	middleware.StatusRecorder
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger   *slog.Logger
	Renderer *Renderer

	// ミドルウェア依存
	AuthResolver      middleware.AuthResolver
	RateLimiter       *middleware.RateLimiter
	Recorder          Recorder
	Cookie            middleware.CookieConfig
	CORSAllowedOrigin string

	// 認証
	AuthService AuthServiceInterface

	// 予約
	BookingService BookingServiceInterface
	Views          ListViewRegistry

	// 運用
	HealthCheck    HealthCheckFunc
	MetricsHandler http.Handler
}

// NewRouter は全ページ・APIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → Session → CSRF → RateLimit(General) → Gate
//
// /health と /metrics はセッション解決の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var gateRecorder middleware.GateRecorder
	var statusRecorder middleware.StatusRecorder
	if deps.Recorder != nil {
		gateRecorder = deps.Recorder
		statusRecorder = deps.Recorder
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, statusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Method(http.MethodGet, "/health", NewHealthHandler(deps.HealthCheck))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Renderer, deps.Cookie)
	bookingHandler := NewBookingHandler(deps.BookingService, deps.Views, deps.Renderer)
	apiHandler := NewAPIHandler(deps.BookingService)

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.Cookie.Secure,
		CookieDomain: deps.Cookie.Domain,
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.AuthResolver))
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- ゲートの外 ---
		loginLimit := deps.RateLimiter.LoginMiddleware()
		r.With(loginLimit).Get(access.LoginPath, authHandler.LoginPage)
		r.With(loginLimit).Post(access.LoginPath, authHandler.LoginSubmit)
		r.Get("/auth/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get(access.AccessDeniedPath, authHandler.AccessDenied)

		// --- 管理画面 ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewGateMiddleware(middleware.GateConfig{
				Recorder: gateRecorder,
				OnWait:   deps.Renderer.WaitHandler("Chargement de votre accès..."),
			}))

			r.Get("/", bookingHandler.Dashboard)
			r.Route("/reservations", func(r chi.Router) {
				r.Get("/", bookingHandler.List)
				r.Get("/{id}", bookingHandler.Detail)
				r.Post("/{id}/status", bookingHandler.UpdateStatus)
			})
			r.Get("/reports", bookingHandler.Reports)
			r.Get("/users", bookingHandler.Users)
		})

		// --- JSON API ---
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
			r.Use(middleware.NewGateMiddleware(middleware.GateConfig{
				Recorder:    gateRecorder,
				JSON:        true,
				SectionPath: apiSection,
			}))

			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))
			r.Get("/me", apiHandler.Me)
			r.Route("/bookings", func(r chi.Router) {
				r.Get("/", apiHandler.ListBookings)
				r.Get("/{id}", apiHandler.GetBooking)
				r.Patch("/{id}/status", apiHandler.UpdateStatus)
			})
		})
	})

	// 未定義のルートはトップへ
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, access.HomePath, http.StatusSeeOther)
	})

	return r
}
