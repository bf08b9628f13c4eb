// Command recompute runs a one-shot company-wide recompute of lead scores
// and account state. Intended for operators after a rule change or data
// import.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ganeshchavan786/vega-crm/internal/engine"
	"github.com/ganeshchavan786/vega-crm/internal/engine/batch"
	"github.com/ganeshchavan786/vega-crm/internal/events"
	"github.com/ganeshchavan786/vega-crm/platform/config"
	"github.com/ganeshchavan786/vega-crm/platform/db"
	"github.com/ganeshchavan786/vega-crm/platform/logger"
	"github.com/ganeshchavan786/vega-crm/platform/validator"

	"github.com/google/uuid"
)

func main() {
	var (
		companyFlag = flag.String("company", "", "company UUID to recompute (required)")
		jobFlag     = flag.String("job", "all", "job to run: scores, accounts, or all")
		dryRunFlag  = flag.Bool("dry-run", false, "report what would change without writing")
		chunkFlag   = flag.Int("chunk", 0, "override batch chunk size")
		workersFlag = flag.Int("workers", 0, "override batch worker count")
	)
	flag.Parse()

	companyID, err := uuid.Parse(*companyFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "a valid -company UUID is required")
		flag.Usage()
		os.Exit(2)
	}

	if *jobFlag != "scores" && *jobFlag != "accounts" && *jobFlag != "all" {
		fmt.Fprintf(os.Stderr, "unknown -job %q\n", *jobFlag)
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	engineModule, err := engine.NewModule(pool, eventBus, nil, nil, validator.New(), cfg, log)
	if err != nil {
		log.Error("failed to initialize engine module", "error", err)
		os.Exit(1)
	}

	opts := batch.Options{
		DryRun:    *dryRunFlag,
		ChunkSize: *chunkFlag,
		Workers:   *workersFlag,
	}
	if opts.ChunkSize == 0 {
		opts.ChunkSize = cfg.GetBatchChunkSize()
	}
	if opts.Workers == 0 {
		opts.Workers = cfg.GetBatchWorkers()
	}

	failed := false
	if *jobFlag == "scores" || *jobFlag == "all" {
		report, err := engineModule.Batch().RecomputeScores(ctx, companyID, opts)
		failed = printReport(log, "scores", report, err) || failed
	}
	if *jobFlag == "accounts" || *jobFlag == "all" {
		report, err := engineModule.Batch().RecomputeAccounts(ctx, companyID, opts)
		failed = printReport(log, "accounts", report, err) || failed
	}

	if failed {
		os.Exit(1)
	}
}

func printReport(log *logger.Logger, job string, report batch.Report, err error) bool {
	if err != nil {
		log.Error("recompute aborted", "job", job, "error", err)
		return true
	}

	log.Info("recompute finished",
		"job", job,
		"processed", report.Processed,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"failed", report.Failed,
		"dryRun", report.DryRun,
	)
	for id, msg := range report.Errors {
		log.Warn("item failed", "job", job, "id", id, "error", msg)
	}
	return report.Failed > 0
}
