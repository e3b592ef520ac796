package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	"github.com/hamed0406/domainwatch/internal/bot"
	"github.com/hamed0406/domainwatch/internal/config"
	"github.com/hamed0406/domainwatch/internal/httpapi"
	apimw "github.com/hamed0406/domainwatch/internal/httpapi/middleware"
	"github.com/hamed0406/domainwatch/internal/logging"
	"github.com/hamed0406/domainwatch/internal/monitor"
	"github.com/hamed0406/domainwatch/internal/notify"
	"github.com/hamed0406/domainwatch/internal/probe"
	"github.com/hamed0406/domainwatch/internal/repo"
	"github.com/hamed0406/domainwatch/internal/repo/memory"
	"github.com/hamed0406/domainwatch/internal/repo/postgres"
	"github.com/hamed0406/domainwatch/internal/repo/sqlite"
	"github.com/hamed0406/domainwatch/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("ignoring .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel, cfg.LogStderr)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exit", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store_close_error", zap.Error(err))
		}
	}()

	var tb *tele.Bot
	if cfg.TelegramToken != "" {
		tb, err = tele.NewBot(tele.Settings{
			Token:  cfg.TelegramToken,
			Poller: &tele.LongPoller{Timeout: 10 * time.Second},
			OnError: func(err error, c tele.Context) {
				logger.Warn("bot_handler_error", zap.Error(err))
			},
		})
		if err != nil {
			return fmt.Errorf("telegram: %w", err)
		}
	}

	svc := monitor.NewService(store, newProber(cfg, logger), newNotifier(cfg, tb, logger), cfg.Policy(), logger)
	sweeper := scheduler.NewSweeper(logger, store, svc, cfg.SweepInterval, cfg.MaxConcurrent)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sweeper.Run(gctx)
		return nil
	})

	if cfg.Addr != "" {
		api := httpapi.NewServer(logger, svc, sweeper)
		keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			logger.Info("api_listen", zap.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	if tb != nil {
		bot.NewHandler(svc, store, logger).Attach(gctx, tb)
		g.Go(func() error {
			bot.Run(gctx, tb, logger)
			return nil
		})
	} else {
		logger.Warn("telegram_disabled", zap.String("reason", "TELEGRAM_TOKEN not set"))
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logger.Warn("sd_notify_error", zap.Error(err))
	} else if ok {
		logger.Debug("sd_notify_ready")
	}
	logger.Info("domainwatch_started",
		zap.String("store", cfg.StoreDriver),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Duration("alert_threshold", cfg.AlertThreshold),
	)

	<-gctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	logger.Info("domainwatch_stopping")
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.EndpointStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL, logger)
	case config.DriverMemory:
		logger.Warn("store_memory", zap.String("note", "state is lost on restart"))
		return memory.New(), nil
	default:
		return sqlite.Open(ctx, cfg.SQLitePath, 5*time.Second, logger)
	}
}

// newProber builds GET http://{domain} with optional retries; DNS is only
// consulted to explain a failure in the log.
func newProber(cfg config.Config, logger *zap.Logger) probe.Prober {
	var chk probe.Checker = probe.NewHTTPChecker(cfg.ProbeTimeout, cfg.Accept2xx)
	if cfg.RetryAttempts > 1 {
		chk = &probe.RetryChecker{Inner: chk, Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
	}
	return probe.NewHTTPProber(chk, logger, probe.NewDNSChecker())
}

func newNotifier(cfg config.Config, tb *tele.Bot, logger *zap.Logger) notify.Notifier {
	var sinks notify.Multi
	if tb != nil {
		sinks = append(sinks, notify.NewRateLimited(notify.NewTelegram(tb), cfg.NotifyRate, 1))
	}
	if s := notify.NewSlack(cfg.SlackWebhook); s != nil {
		sinks = append(sinks, s)
	}
	if e := notify.NewEmail(cfg.BrevoAPIKey, cfg.BrevoFrom, cfg.BrevoTo); e != nil {
		sinks = append(sinks, e)
	}
	if len(sinks) == 0 {
		logger.Warn("notify_log_only", zap.String("reason", "no delivery channel configured"))
		return notify.Log{Logger: logger}
	}
	return sinks
}
