package scheduler

import (
	"context"
	"fmt"

	"github.com/ganeshchavan786/vega-crm/internal/engine/batch"
	"github.com/ganeshchavan786/vega-crm/internal/engine/nurturing"
	"github.com/ganeshchavan786/vega-crm/platform/config"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// WorkerConfig is the configuration slice the worker needs.
type WorkerConfig interface {
	config.SchedulerConfig
	config.BatchConfig
}

// Worker consumes engine background jobs. One sweep or recompute runs per
// company at a time; overlapping deliveries skip instead of piling up.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	nurturing *nurturing.Service
	batch     *batch.Service
	lock      *JobLock
	cfg       WorkerConfig
	log       *logger.Logger
}

// NewWorker builds the asynq server and registers the engine handlers.
func NewWorker(cfg WorkerConfig, nurturingSvc *nurturing.Service, batchSvc *batch.Service, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	lock, err := NewJobLock(cfg.GetRedisURL())
	if err != nil {
		return nil, err
	}

	mux := asynq.NewServeMux()
	w := &Worker{
		server:    server,
		mux:       mux,
		nurturing: nurturingSvc,
		batch:     batchSvc,
		lock:      lock,
		cfg:       cfg,
		log:       log,
	}

	mux.HandleFunc(TaskNurtureSweep, w.handleNurtureSweep)
	mux.HandleFunc(TaskRecomputeScores, w.handleRecomputeScores)
	mux.HandleFunc(TaskRecomputeAccounts, w.handleRecomputeAccounts)

	return w, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("engine worker stopped", "error", err)
	}

	_ = w.lock.Close()
}

func (w *Worker) handleNurtureSweep(ctx context.Context, task *asynq.Task) error {
	companyID, payload, release, err := w.claim(ctx, task, "nurture_sweep")
	if err != nil || release == nil {
		return err
	}
	defer release()

	report, err := w.nurturing.SweepCompany(ctx, companyID, payload.DryRun)
	if err != nil {
		return err
	}
	w.log.WithCompany(companyID).Info("nurture sweep task finished",
		"followUps", report.FollowUpsCreated,
		"escalated", report.TasksEscalated,
		"deprioritized", report.Deprioritized,
		"dryRun", report.DryRun,
	)
	return nil
}

func (w *Worker) handleRecomputeScores(ctx context.Context, task *asynq.Task) error {
	return w.handleRecompute(ctx, task, "recompute_scores", w.batch.RecomputeScores)
}

func (w *Worker) handleRecomputeAccounts(ctx context.Context, task *asynq.Task) error {
	return w.handleRecompute(ctx, task, "recompute_accounts", w.batch.RecomputeAccounts)
}

func (w *Worker) handleRecompute(ctx context.Context, task *asynq.Task, job string, run func(ctx context.Context, companyID uuid.UUID, opts batch.Options) (batch.Report, error)) error {
	companyID, payload, release, err := w.claim(ctx, task, job)
	if err != nil || release == nil {
		return err
	}
	defer release()

	report, err := run(ctx, companyID, batch.Options{
		DryRun:    payload.DryRun,
		ChunkSize: w.cfg.GetBatchChunkSize(),
		Workers:   w.cfg.GetBatchWorkers(),
	})
	if err != nil {
		return err
	}
	w.log.WithCompany(companyID).Info("recompute task finished",
		"job", job,
		"processed", report.Processed,
		"updated", report.Updated,
		"failed", report.Failed,
		"dryRun", report.DryRun,
	)
	return nil
}

// claim parses the payload and takes the per-company job lease. A held
// lease is not an error: the task is dropped, not retried, because the
// running job covers the same work.
func (w *Worker) claim(ctx context.Context, task *asynq.Task, job string) (uuid.UUID, CompanyJobPayload, func(), error) {
	payload, err := ParseCompanyJobPayload(task)
	if err != nil {
		return uuid.Nil, payload, nil, err
	}

	companyID, err := uuid.Parse(payload.CompanyID)
	if err != nil {
		return uuid.Nil, payload, nil, err
	}

	key := fmt.Sprintf("engine:lock:%s:%s", job, companyID)
	acquired, err := w.lock.TryAcquire(ctx, key)
	if err != nil {
		return uuid.Nil, payload, nil, err
	}
	if !acquired {
		w.log.WithCompany(companyID).Info("job already running, skipping", "job", job)
		return uuid.Nil, payload, nil, nil
	}

	return companyID, payload, func() { w.lock.Release(context.Background(), key) }, nil
}
