package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"salesbot/internal/artifacts"
	"salesbot/internal/bot"
	"salesbot/internal/charts"
	"salesbot/internal/config"
	"salesbot/internal/loader"
	"salesbot/internal/middleware"
	"salesbot/internal/observability"
	"salesbot/internal/server"
	"salesbot/internal/services"
	"salesbot/internal/session"
	"salesbot/internal/ui/templates"
)

const (
	version       = "1.0.0"
	renderTimeout = 10 * time.Second
	cacheMaxAge   = "public, max-age=300"
	sweepInterval = time.Minute
)

func handleDashboard(analytics *services.Analytics) http.HandlerFunc {
	data := templates.DashboardData{
		Title:  "Sales report",
		Months: analytics.Table().Months(),
	}
	if dr := analytics.DateRange(); !dr.IsZero() {
		data.FirstDate = dr.From.Format(services.DayLayout)
		data.LastDate = dr.To.Format(services.DayLayout)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
		defer cancel()

		w.Header().Set("Cache-Control", cacheMaxAge)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Dashboard(data).Render(ctx, w); err != nil {
			http.Error(w, "render error", http.StatusInternalServerError)
		}
	}
}

// loadTable reads the four source tables and joins them. Any failure here
// is fatal to startup.
func loadTable(cfg config.DatabaseConfig, logger *slog.Logger) (*services.Table, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.LoadTimeout)
	defer cancel()

	start := time.Now()
	db, err := loader.Open(ctx, cfg.Driver, cfg.DataSourceName())
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := loader.New(db, logger).Load(ctx)
	if err != nil {
		return nil, err
	}

	table, err := services.BuildTable(*rows)
	if err != nil {
		return nil, err
	}

	if dropped := table.Dropped(); dropped > 0 {
		logger.Warn("orders without matching customer, item or category were dropped",
			"dropped", dropped,
			"orders", len(rows.Orders),
		)
	}
	logger.Info("sales data loaded",
		"records", table.Len(),
		"months", len(table.Months()),
		"duration", time.Since(start),
	)
	return table, nil
}

func newHandler(cfg *config.Config, srv http.Handler, limiter *middleware.RateLimiter, logger *slog.Logger) http.Handler {
	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(limiter, logger),
	)
	return middlewareChain(srv)
}

// newSessionStore returns the configured store and a function releasing
// its resources.
func newSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, func() error, error) {
	if cfg.Backend != "redis" {
		return session.NewMemoryStore(), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	store := session.NewRedisStore(client, cfg.RedisPrefix, cfg.TTL)
	if err := store.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return store, client.Close, nil
}

func newBot(ctx context.Context, cfg *config.Config, analytics *services.Analytics, renderer *charts.Renderer, sessions session.Store, logger *slog.Logger) (*bot.Bot, error) {
	files, err := artifacts.NewFileStore(cfg.Artifacts.Dir, logger)
	if err != nil {
		return nil, err
	}

	api, err := bot.NewTelegramAPI(cfg.Bot)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to telegram", "bot", api.Self.UserName)

	controller := bot.NewController(analytics, renderer, sessions, logger)
	b := bot.NewBot(api, controller, files, cfg.Bot, logger)

	if cfg.Artifacts.ArchiveBucket != "" {
		archive, err := artifacts.NewS3ArchiveFromConfig(ctx, cfg.Artifacts, logger)
		if err != nil {
			return nil, err
		}
		b.WithArchive(archive)
		logger.Info("chart archiving enabled", "bucket", cfg.Artifacts.ArchiveBucket)
	}
	return b, nil
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", version,
		"bot_enabled", cfg.Bot.Enabled,
		"server_enabled", cfg.Server.Enabled,
		"db_driver", cfg.Database.Driver,
		"session_backend", cfg.Sessions.Backend,
	)

	table, err := loadTable(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("load sales data: %w", err)
	}

	analytics := services.NewAnalytics(table, logger)
	renderer := charts.NewRenderer(table, logger)

	var httpServer *http.Server
	var limiter *middleware.RateLimiter
	if cfg.Server.Enabled {
		templateHandlers := &server.TemplateHandlers{
			Dashboard: handleDashboard(analytics),
		}
		srv := server.NewServer(analytics, renderer, logger, templateHandlers).WithVersion(version)
		limiter = middleware.NewRateLimiter(cfg.Security)

		httpServer = &http.Server{
			Addr:         cfg.Address(),
			Handler:      newHandler(cfg, srv, limiter, logger),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)
	if limiter != nil {
		gracefulServer.Go(func(ctx context.Context) error {
			limiter.Run(ctx, sweepInterval)
			return nil
		})
	}

	return serve(gracefulServer, cfg, analytics, renderer, logger)
}

func serve(gs *server.GracefulServer, cfg *config.Config, analytics *services.Analytics, renderer *charts.Renderer, logger *slog.Logger) error {
	if cfg.Bot.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.LoadTimeout)
		defer cancel()

		sessions, closeSessions, err := newSessionStore(ctx, cfg.Sessions)
		if err != nil {
			return err
		}
		gs.RegisterShutdownHook(func(ctx context.Context) error {
			logger.Info("closing session store")
			return closeSessions()
		})

		b, err := newBot(ctx, cfg, analytics, renderer, sessions, logger)
		if err != nil {
			return err
		}
		gs.Go(b.Run)
	}

	logger.Info("starting graceful server")
	if err := gs.ListenAndServe(); err != nil {
		return err
	}

	logger.Info("application stopped gracefully")
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}
