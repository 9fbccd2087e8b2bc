package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/hoteladmin/internal/auth"
	"github.com/hitoshi/hoteladmin/internal/booking"
	"github.com/hitoshi/hoteladmin/internal/config"
	"github.com/hitoshi/hoteladmin/internal/database"
	"github.com/hitoshi/hoteladmin/internal/handler"
	"github.com/hitoshi/hoteladmin/internal/identity"
	"github.com/hitoshi/hoteladmin/internal/metrics"
	"github.com/hitoshi/hoteladmin/internal/middleware"
	"github.com/hitoshi/hoteladmin/internal/repository"
	"github.com/hitoshi/hoteladmin/internal/session"
	"github.com/hitoshi/hoteladmin/internal/store"
	"github.com/hitoshi/hoteladmin/internal/telemetry"
)

var errNoBackend = errors.New("session backend is required")

// sessionBackend はセッションの保存先と、その疎通確認・終了処理をまとめたもの。
type sessionBackend struct {
	repo   repository.SessionRepository
	health handler.HealthCheckFunc
	close  func() error
}

// Close は接続を閉じる。
func (b *sessionBackend) Close() {
	if b.close == nil {
		return
	}
	if err := b.close(); err != nil {
		slog.Error("failed to close session store", slog.String("error", err.Error()))
	}
}

// openSessionBackend はSESSION_STOREに応じたセッションリポジトリを開く。
func openSessionBackend(ctx context.Context, cfg *config.Config) (*sessionBackend, error) {
	switch cfg.SessionStore {
	case config.SessionStorePostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return &sessionBackend{
			repo:   repository.NewPostgresSessionRepo(db),
			health: pingDB(db),
			close:  db.Close,
		}, nil

	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("redis connection established")
		return &sessionBackend{
			repo: repository.NewRedisSessionRepo(client),
			health: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
			close: client.Close,
		}, nil

	case config.SessionStoreMemory:
		return &sessionBackend{repo: repository.NewMemorySessionRepo()}, nil

	default:
		return nil, fmt.Errorf("unsupported SESSION_STORE: %q", cfg.SessionStore)
	}
}

func pingDB(db *sql.DB) handler.HealthCheckFunc {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// newMetrics はプロセス・ランタイムのメトリクスを含むレジストリとCollectorを生成する。
func newMetrics() (*metrics.Collector, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewCollector(registry), registry
}

// server はワイヤリング済みのHTTPハンドラーと、終了時に解放するリソース。
type server struct {
	handler   http.Handler
	sessions  *session.Store
	collector *metrics.Collector
	closers   []func()
}

// Close はレートリミッターのクリーンアップやセッション購読を停止する。
func (s *server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// newServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
func newServer(cfg *config.Config, backend *sessionBackend) (*server, error) {
	if backend == nil || backend.repo == nil {
		return nil, errNoBackend
	}

	srv := &server{}
	collector, registry := newMetrics()
	srv.collector = collector

	// 1. 外部サービスのクライアント
	upstream := telemetry.NewHTTPClient(&http.Client{Timeout: cfg.UpstreamTimeout})
	storeClient := store.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, upstream, collector, slog.Default())
	idpClient := identity.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, upstream, collector, slog.Default())

	// 2. セッション
	sessions := session.NewStore(backend.repo, time.Duration(cfg.SessionMaxAge)*time.Second)
	srv.sessions = sessions

	// 3. ドメインサービス
	authService := auth.NewService(
		idpClient, storeClient, sessions,
		identity.NewClaimsParser(cfg.SupabaseJWTSecret),
		auth.ServiceConfig{CallbackURL: cfg.BaseURL + "/auth/callback"},
	)
	bookingService := booking.NewService(storeClient, collector, cfg.PageSize)

	// ログアウトしたセッションの一覧ビューを破棄する
	views := booking.NewViews(bookingService.List, 0)
	srv.closers = append(srv.closers, sessions.Subscribe(views.HandleSessionEvent))

	// 4. ミドルウェア依存
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	srv.closers = append(srv.closers, rateLimiter.Stop)

	renderer, err := handler.NewRenderer()
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	// 5. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:       slog.Default(),
		Renderer:     renderer,
		AuthResolver: authService,
		RateLimiter:  rateLimiter,
		Recorder:     collector,
		Cookie: middleware.CookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
			MaxAge: cfg.SessionMaxAge,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AuthService:       authService,
		BookingService:    bookingService,
		Views:             views,
		HealthCheck:       backend.health,
		MetricsHandler:    metrics.Handler(registry),
	})

	srv.handler = telemetry.WrapHandler(router, serviceName)
	return srv, nil
}
