package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/engine"
	"github.com/ganeshchavan786/vega-crm/internal/events"
	apphttp "github.com/ganeshchavan786/vega-crm/internal/http"
	"github.com/ganeshchavan786/vega-crm/internal/http/router"
	"github.com/ganeshchavan786/vega-crm/internal/notification"
	"github.com/ganeshchavan786/vega-crm/internal/scheduler"
	"github.com/ganeshchavan786/vega-crm/platform/config"
	"github.com/ganeshchavan786/vega-crm/platform/db"
	"github.com/ganeshchavan786/vega-crm/platform/logger"
	"github.com/ganeshchavan786/vega-crm/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

const migrationsDir = "migrations"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting api", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrationsDir)
	}); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	notifier := newNotifier(cfg, log)

	jobs, closeJobs := newJobScheduler(cfg, log)
	if closeJobs != nil {
		defer closeJobs()
	}

	engineModule, err := engine.NewModule(pool, eventBus, notifier, jobs, val, cfg, log)
	if err != nil {
		log.Error("failed to initialize engine module", "error", err)
		panic("failed to initialize engine module: " + err.Error())
	}

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			engineModule,
		},
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router.New(app),
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	case err := <-srvErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// newJobScheduler builds the background job enqueue client, or nil when no
// redis is configured. The admin /jobs routes return 503 in that case.
func newJobScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.Enqueuer, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; background job endpoints disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize job scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// newNotifier builds the escalation mailer, or the no-op sink when SMTP is
// not configured.
func newNotifier(cfg config.EmailConfig, log *logger.Logger) notification.Notifier {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		log.Warn("email disabled; escalation notifications will be dropped")
		return notification.Noop{}
	}

	notifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
		Host:     cfg.GetSMTPHost(),
		Port:     cfg.GetSMTPPort(),
		Username: cfg.GetSMTPUsername(),
		Password: cfg.GetSMTPPassword(),
		From:     cfg.GetEmailFromAddress(),
	}, log)
	if err != nil {
		log.Error("failed to initialize email notifier, falling back to noop", "error", err)
		return notification.Noop{}
	}
	return notifier
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if attempt < attempts {
			delay := baseDelay * time.Duration(1<<(attempt-1))
			log.Warn("retrying after failure", "name", name, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return fmt.Errorf("%s: %w", name, lastErr)
}
