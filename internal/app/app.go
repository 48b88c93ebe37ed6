package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mitsuki/nemuri/internal/collector"
	"github.com/mitsuki/nemuri/internal/config"
	"github.com/mitsuki/nemuri/internal/database"
	"github.com/mitsuki/nemuri/internal/handler"
	"github.com/mitsuki/nemuri/internal/logger"
	"github.com/mitsuki/nemuri/internal/metrics"
	"github.com/mitsuki/nemuri/internal/middleware"
	"github.com/mitsuki/nemuri/internal/pipeline"
	"github.com/mitsuki/nemuri/internal/presence"
	"github.com/mitsuki/nemuri/internal/repository"
	"github.com/mitsuki/nemuri/internal/security"
	"github.com/mitsuki/nemuri/internal/sleep"
	"github.com/mitsuki/nemuri/internal/user"
	aggregatepkg "github.com/mitsuki/nemuri/internal/worker/aggregate"
)

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

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "18080"
		}
		return runHealthcheck(port)
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
	case CommandServe:
		return runServe(cfg)
	case CommandCollector:
		return runCollector(cfg)
	case CommandAggregate:
		return runAggregate(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通確認を行う。
func openDatabase(cfg *config.Config) (*repositories, error) {
	db, err := database.Open(cfg.DatabaseURL, cfg.DBLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	return &repositories{
		db:       db,
		user:     repository.NewPostgresUserRepo(db),
		event:    repository.NewPostgresPresenceEventRepo(db),
		interval: repository.NewPostgresOfflineIntervalRepo(db),
		window:   repository.NewPostgresSleepWindowRepo(db),
		anomaly:  repository.NewPostgresAnomalyRepo(db),
	}, nil
}

// repositories はDB接続と全リポジトリをまとめた構造体。
type repositories struct {
	db       *sql.DB
	user     repository.UserRepository
	event    repository.PresenceEventRepository
	interval repository.OfflineIntervalRepository
	window   repository.SleepWindowRepository
	anomaly  repository.AnomalyRepository
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	repos, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer repos.db.Close()

	// ドメインサービスの初期化
	userService := user.NewService(repos.user)
	sleepService := sleep.NewService(repos.user, repos.window, repos.anomaly)
	presenceService := presence.NewService(repos.user, repos.event)

	// メトリクスレジストリ（/metrics はAPIプロセスから公開する）
	registry := prometheus.NewRegistry()
	metrics.NewCollector(registry)

	// レート制限とルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HealthChecker:     repos.db,
		MetricsHandler:    metrics.Handler(registry),
		UserService:       userService,
		SleepService:      sleepService,
		PresenceService:   presenceService,
	}

	router := handler.NewRouter(deps)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runCollector はプレゼンス収集ワーカーモードで起動する。
// プレゼンスプラットフォームのポーリングと集計パイプラインの
// 定期実行を同一プロセスで行う。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runCollector(cfg *config.Config) error {
	repos, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer repos.db.Close()

	// 収集先の検証（内部ネットワーク宛のベースURLは起動時に拒否する）
	guard := security.NewEgressGuard()
	if err := guard.ValidateBaseURL(cfg.PresenceAPIBaseURL); err != nil {
		return fmt.Errorf("invalid PRESENCE_API_BASE_URL: %w", err)
	}

	if len(cfg.UserTimezones) == 0 {
		return fmt.Errorf("USER_TIMEZONES is empty: no users to monitor")
	}

	// メトリクス（収集と集計の両方が同じCollectorに記録する）
	registry := prometheus.NewRegistry()
	metricsCollector := metrics.NewCollector(registry)

	// ポーラーの初期化
	httpClient := guard.NewSafeClient(cfg.PresenceAPITimeout)
	client := collector.NewClient(httpClient, cfg.PresenceAPIBaseURL, cfg.PresenceAPIToken, slog.Default())
	sanitizer := security.NewProfileSanitizer()
	poller := collector.NewPoller(
		client, repos.user, repos.event, sanitizer,
		cfg.UserTimezones, slog.Default(), metricsCollector,
	)

	// 集計パイプラインの初期化
	aggregator := pipeline.NewAggregator(
		repos.user, repos.event, repos.interval, repos.window, repos.anomaly,
		slog.Default(), metricsCollector,
	)
	scheduler := aggregatepkg.NewScheduler(aggregator, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down collector...")
		cancel()
	}()

	// 監視対象ユーザーの行を確定してから収集を始める
	if err := poller.EnsureUsers(ctx); err != nil {
		return fmt.Errorf("failed to ensure users: %w", err)
	}

	slog.Info("collector starting",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Duration("aggregate_interval", cfg.AggregateInterval),
		slog.Int("user_count", len(cfg.UserTimezones)),
	)

	// 集計スケジューラをバックグラウンドで起動
	go scheduler.Start(ctx, cfg.AggregateInterval)

	// ポーラーをメインgoroutineで実行（ブロッキング）
	poller.Start(ctx, cfg.PollInterval)

	slog.Info("collector stopped gracefully")
	return nil
}

// runAggregate は集計パイプラインを1回だけ実行して終了する。
// バックフィルや再計算の手動実行用。
func runAggregate(cfg *config.Config) error {
	repos, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer repos.db.Close()

	aggregator := pipeline.NewAggregator(
		repos.user, repos.event, repos.interval, repos.window, repos.anomaly,
		slog.Default(), nil,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := aggregator.RunAll(ctx); err != nil {
		return fmt.Errorf("aggregation failed: %w", err)
	}

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
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
