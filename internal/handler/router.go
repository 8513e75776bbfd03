package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/soulgood/internal/metrics"
	"github.com/hitoshi/soulgood/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	TrustProxyHeaders bool
	RateLimiter       *middleware.RateLimiter
	TokenVerifier     middleware.TokenVerifier
	// RequireToken がtrueの場合、お気に入りとカートのAPIはトークン必須になる。
	RequireToken bool

	// メトリクス（Gathererがnilの場合は/metricsを公開しない）
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// サービス
	UserService     UserServiceInterface
	FavoriteService FavoriteServiceInterface
	CartService     CartServiceInterface
	Menu            MenuCatalog
	DB              Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → (RealIP) → Logging → Recovery → SecurityHeaders → CORS → Metrics
//	  → Token → RateLimit(General)
//
// /api/login はトークン検証の外に置き、ログイン専用のレート制限のみ適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	mc := deps.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewMetricsMiddleware(mc))

	userHandler := NewUserHandler(deps.UserService)
	favoriteHandler := NewFavoriteHandler(deps.FavoriteService)
	cartHandler := NewCartHandler(deps.CartService)
	menuHandler := NewMenuHandler(deps.Menu)
	healthHandler := NewHealthHandler(deps.DB)

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Get("/api/health", healthHandler.Health)

	// ログイン（トークン不要）
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/api/login", userHandler.Login)

	// メニュー（トークン任意）
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTokenMiddleware(deps.TokenVerifier, false))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/menu", menuHandler.List)
		r.Get("/api/menu/{id}", menuHandler.Get)
	})

	// トークン必須
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTokenMiddleware(deps.TokenVerifier, true))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Get("/api/me", userHandler.Me)
	})

	// お気に入り・カート（RequireToken設定に従う）
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewTokenMiddleware(deps.TokenVerifier, deps.RequireToken))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/favorites", func(r chi.Router) {
			r.Get("/", favoriteHandler.List)
			r.Post("/", favoriteHandler.Add)
			r.Delete("/", favoriteHandler.Remove)
		})

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.List)
			r.Post("/", cartHandler.Add)
			r.Put("/{id}", cartHandler.UpdateQuantity)
			r.Delete("/{id}", cartHandler.Delete)
		})
	})

	return r
}
