package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mitsuki/nemuri/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス（/metrics のハンドラー。nilの場合はルートを張らない）
	MetricsHandler http.Handler

	// サービス
	UserService     UserServiceInterface
	SleepService    SleepServiceInterface
	PresenceService PresenceServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → CORS → RateLimit（/api のみ）
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	healthHandler := NewHealthHandler(deps.HealthChecker)
	userHandler := NewUserHandler(deps.UserService)
	sleepHandler := NewSleepHandler(deps.SleepService)
	presenceHandler := NewPresenceHandler(deps.PresenceService)

	// --- 運用ルート（レート制限なし） ---

	r.Get("/health", healthHandler.Health)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/", userHandler.ListUsers)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/sleep", sleepHandler.GetSleep)
				r.Get("/presence", presenceHandler.ListUserEvents)
			})
		})

		r.Get("/api/presence/online", presenceHandler.ListRecentOnline)
	})

	return r
}
