package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/comment-radar/internal/platform/auth"
	"github.com/example/comment-radar/internal/platform/httpserver"
	"github.com/example/comment-radar/internal/platform/logging"
	"github.com/example/comment-radar/internal/platform/natsconn"
	"github.com/example/comment-radar/internal/platform/notify"
	"github.com/example/comment-radar/internal/platform/run"
	"github.com/example/comment-radar/services/radar/internal/classify"
	"github.com/example/comment-radar/services/radar/internal/config"
	"github.com/example/comment-radar/services/radar/internal/fingerprint"
	"github.com/example/comment-radar/services/radar/internal/page"
	"github.com/example/comment-radar/services/radar/internal/reconcile"
	"github.com/example/comment-radar/services/radar/internal/reportq"
	"github.com/example/comment-radar/services/radar/internal/router"
	"github.com/example/comment-radar/services/radar/internal/scan"
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

	store, err := reconcile.NewStore(cfg.RedisURL, cfg.LogsKey, cfg.StoreRetries, cfg.IsProduction())
	if err != nil {
		log.Error("record store", zap.Error(err))
		_ = log.Sync()
		run.Exit(1)
	}
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, using in-memory record store (development only)")
	}

	// notifications and commands are optional; the radar still scans without NATS
	nc, err := natsconn.Connect(natsconn.Options{URL: cfg.NATSURL, Name: cfg.ServiceName})
	var conn notify.Conn
	if err != nil {
		log.Warn("nats unavailable, notifications disabled", zap.Error(err))
	} else {
		conn = nc
		defer nc.Close()
	}
	pub := notify.New(conn, cfg.ServiceName, log)

	cb := classify.NewBreaker(cfg.CBFailureThreshold, cfg.CBTimeout, log)
	cls := classify.New(cfg.PredictorURL, classify.ClientConfig{
		MaxRetries:     cfg.MaxRetries,
		RetryBaseDelay: cfg.RetryBaseDelay,
		Timeout:        cfg.PredictorTimeout,
	}, classify.WithCircuitBreaker(cb), classify.WithLogger(log))

	rec := reconcile.New(store, pub, log)

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		tab, err := page.Open(ctx, page.OpenOptions{
			ControlURL:    cfg.ChromeURL,
			Headless:      cfg.Headless,
			URL:           cfg.PageURL,
			AttachMatch:   cfg.AttachMatch,
			ActionTimeout: cfg.ActionTimeout,
		}, log)
		if err != nil {
			return fmt.Errorf("open page: %w", err)
		}
		defer func() { _ = tab.Close() }()

		scanner := scan.New(tab, cls, rec, pub, log, scan.Options{
			Throttle:    cfg.ScanThrottle,
			Interval:    cfg.ScanInterval,
			StartDelay:  cfg.ScanStartDelay,
			Fingerprint: fingerprint.Options{StableFallback: cfg.StableFallback},
		})

		qopts := reportq.DefaultOptions()
		qopts.MenuTimeout = cfg.MenuTimeout
		qopts.AdvanceDelay = cfg.AdvanceDelay
		queue := reportq.New(tab, rec, pub, log, qopts)

		dialogs := page.WatchDialog(ctx, tab.DialogOpen, cfg.DialogPoll, log)
		go func() { _ = queue.Run(ctx, dialogs) }()
		go func() { _ = scanner.Run(ctx, queue.Busy) }()

		rt := router.New(ctx, scanner, queue, rec, tab, log)
		if nc != nil {
			if _, err := rt.Listen(ctx, nc, cfg.CommandPrefix, 0); err != nil {
				log.Warn("command listener", zap.Error(err))
			}
		}

		go announce(ctx, tab, pub, log)

		r := chi.NewRouter()
		httpserver.SetupRouter(r, httpserver.RouterConfig{ReadyFunc: readiness(store, nc)})
		rt.Mount(r, auth.JWTVerifier{Secret: []byte(cfg.JWTSecret)})
		srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

		go func() {
			<-ctx.Done()
			runner.Graceful(srv.Shutdown)
		}()
		return srv.Start()
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// announce publishes contentScriptReady once the page has settled.
func announce(ctx context.Context, p page.Page, pub *notify.Publisher, log *zap.Logger) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(2 * time.Second):
	}
	info, err := p.Info(ctx)
	if err != nil {
		log.Warn("page info failed", zap.Error(err))
		return
	}
	pub.Publish(notify.EventContentScriptReady, map[string]string{
		"pageTitle": info.Title,
		"url":       info.URL,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func readiness(store reconcile.Store, nc *nats.Conn) func() error {
	return func() error {
		if rs, ok := store.(*reconcile.RedisStore); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := rs.Ping(ctx); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
		}
		if nc != nil && !nc.IsConnected() {
			return fmt.Errorf("nats: %s", nc.Status())
		}
		return nil
	}
}
