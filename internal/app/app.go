package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/soulgood/internal/auth"
	"github.com/hitoshi/soulgood/internal/cache"
	"github.com/hitoshi/soulgood/internal/cart"
	"github.com/hitoshi/soulgood/internal/catalog"
	"github.com/hitoshi/soulgood/internal/config"
	"github.com/hitoshi/soulgood/internal/database"
	"github.com/hitoshi/soulgood/internal/favorite"
	"github.com/hitoshi/soulgood/internal/handler"
	"github.com/hitoshi/soulgood/internal/logger"
	"github.com/hitoshi/soulgood/internal/metrics"
	"github.com/hitoshi/soulgood/internal/middleware"
	"github.com/hitoshi/soulgood/internal/repository"
	"github.com/hitoshi/soulgood/internal/security"
	"github.com/hitoshi/soulgood/internal/user"
	"github.com/hitoshi/soulgood/internal/worker/cleanup"
)

// defaultServerPort はSERVER_PORT未設定時のポート。
const defaultServerPort = "3001"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck と client はサーバー設定を必要としないため、フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = defaultServerPort
		}
		return runHealthcheck(port)
	case CommandClient:
		return runClient(w, args[1:])
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// server はserveモードで組み立てた依存関係一式。
type server struct {
	handler http.Handler
	db      *database.DB
	redis   *cache.RedisCache
	limiter *middleware.RateLimiter
}

// Close は保持しているリソースを解放する。
func (s *server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			slog.Warn("failed to close redis", slog.String("error", err.Error()))
		}
	}
	if s.db != nil {
		s.db.Close()
	}
}

// newServer はDB接続を開き、全依存関係をワイヤリングしてHTTPハンドラーを構築する。
func newServer(ctx context.Context, cfg *config.Config) (*server, error) {
	srv := &server{}

	// 1. マイグレーションとDB接続
	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	srv.db = db

	if err := db.PingContext(ctx); err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established", slog.String("dialect", string(db.Dialect)))

	// 2. キャッシュ（REDIS_URL未設定なら使用しない）
	var listCache cache.Cache
	if cfg.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL)
		if err != nil {
			srv.Close()
			return nil, err
		}
		srv.redis = rc
		listCache = rc
		slog.Info("redis cache enabled", slog.Duration("ttl", cfg.CacheTTL))
	}

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mc := metrics.NewCollector(reg)

	// 4. リポジトリとサービス
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	userService := user.NewService(repository.NewSQLUserRepo(db), tokens, mc)
	favoriteService := favorite.NewService(repository.NewSQLFavoriteRepo(db), listCache, cfg.CacheTTL, mc)
	cartService := cart.NewService(
		repository.NewSQLCartRepo(db), security.NewFieldSanitizer(),
		listCache, cfg.CacheTTL, mc,
	)

	menu, err := catalog.Load()
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to load menu catalog: %w", err)
	}

	// 5. ルーター
	srv.limiter = middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)

	srv.handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		RateLimiter:       srv.limiter,
		TokenVerifier:     tokens,
		RequireToken:      cfg.RequireToken,
		Metrics:           mc,
		Gatherer:          reg,
		UserService:       userService,
		FavoriteService:   favoriteService,
		CartService:       cartService,
		Menu:              menu,
		DB:                db,
	})

	return srv, nil
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	srv, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if cfg.CartSweepInterval > 0 {
		sweepCtx, cancelSweep := context.WithCancel(ctx)
		defer cancelSweep()
		go cleanup.NewCartSweepJob(srv.db, slog.Default()).Start(sweepCtx, cfg.CartSweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /api/health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/api/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// SQLiteのファイルパスはそのまま返す。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User == nil {
		return raw
	}
	u.User = url.User("***")
	return u.String()
}
