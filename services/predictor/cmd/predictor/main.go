package main

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/example/comment-radar/internal/platform/db"
	"github.com/example/comment-radar/internal/platform/httpserver"
	"github.com/example/comment-radar/internal/platform/logging"
	"github.com/example/comment-radar/internal/platform/ratelimit"
	"github.com/example/comment-radar/internal/platform/run"
	"github.com/example/comment-radar/services/predictor/internal/config"
	"github.com/example/comment-radar/services/predictor/internal/handlers"
	"github.com/example/comment-radar/services/predictor/internal/script"
	"github.com/example/comment-radar/services/predictor/internal/sink"
)

func main() {
	// .env is optional; the environment always wins
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	logSink, ping, closeSink := initSink(cfg, log)
	if closeSink != nil {
		defer closeSink()
	}

	limiter := ratelimit.NewBucket(cfg.RateLimitRPS, cfg.RateBurst)
	limiter.OnLimit = handlers.RateLimited

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: ping})
	r.Get("/status", handlers.Status())
	r.With(limiter.Middleware).Post("/predict", handlers.Predict(handlers.Deps{
		Script: script.Runner{
			Command: cfg.Command,
			Args:    cfg.Args,
			Dir:     cfg.ScriptDir,
			Timeout: cfg.ScriptTimeout,
		},
		Sink:        logSink,
		Log:         log,
		SinkTimeout: cfg.SinkTimeout,
	}))

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go func() {
			<-ctx.Done()
			runner.Graceful(srv.Shutdown)
		}()
		return srv.Start()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initSink selects the comment log backend.
// In production (APP_ENV=production) it requires a working Postgres connection
// and terminates the process otherwise.
func initSink(cfg config.Config, log *zap.Logger) (sink.Sink, func() error, func()) {
	if cfg.DatabaseURL == "" {
		if cfg.IsProduction() {
			log.Error("DATABASE_URL is required in production")
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("DATABASE_URL not set, using in-memory comment log (development only)")
		return sink.NewInMemorySink(), nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if cfg.IsProduction() {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			run.Exit(1)
		}
		log.Warn("postgres unavailable, falling back to in-memory comment log", zap.Error(err))
		return sink.NewInMemorySink(), nil, nil
	}

	pg := sink.NewPostgresSink(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		log.Warn("comment_log schema", zap.Error(err))
	}
	log.Info("comment log: postgres")
	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pool.Ping(ctx)
	}
	return pg, ping, pool.Close
}
