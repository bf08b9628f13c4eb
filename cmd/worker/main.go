package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/engine"
	"github.com/ganeshchavan786/vega-crm/internal/events"
	"github.com/ganeshchavan786/vega-crm/internal/notification"
	"github.com/ganeshchavan786/vega-crm/internal/scheduler"
	"github.com/ganeshchavan786/vega-crm/platform/config"
	"github.com/ganeshchavan786/vega-crm/platform/db"
	"github.com/ganeshchavan786/vega-crm/platform/logger"
	"github.com/ganeshchavan786/vega-crm/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	engineModule, err := engine.NewModule(pool, eventBus, notifier, nil, val, cfg, log)
	if err != nil {
		log.Error("failed to initialize engine module", "error", err)
		panic("failed to initialize engine module: " + err.Error())
	}

	worker, err := scheduler.NewWorker(cfg, engineModule.Nurturing(), engineModule.Batch(), log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	worker.Run(ctx)
}

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
