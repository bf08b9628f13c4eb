// Package batch re-derives scores and account state for a whole company in
// chunked, rate-limited, idempotent passes. A rerun over correct data
// reports every row unchanged, so a partially failed batch is safe to retry.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/health"
	"github.com/ganeshchavan786/vega-crm/internal/engine/scoring"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultChunkSize = 200
	defaultWorkers   = 4
	defaultRate      = 100

	scoreLookback  = 30 * 24 * time.Hour
	healthLookback = 90 * 24 * time.Hour
)

// Options tune one batch run.
type Options struct {
	// DryRun computes and counts without writing anything.
	DryRun    bool
	ChunkSize int
	Workers   int
	// RatePerSecond caps item throughput to protect live traffic.
	RatePerSecond int
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = defaultChunkSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = defaultRate
	}
	return o
}

// Report summarizes a batch run. Errors maps failed entity IDs to messages.
type Report struct {
	Processed int                  `json:"processed"`
	Updated   int                  `json:"updated"`
	Unchanged int                  `json:"unchanged"`
	Failed    int                  `json:"failed"`
	DryRun    bool                 `json:"dryRun"`
	Errors    map[uuid.UUID]string `json:"errors,omitempty"`
}

// Store is the persistence surface batch jobs need.
type Store interface {
	repository.LeadReader
	repository.LeadWriter
	repository.AccountStore
	repository.DealStore
	repository.ActivityStore
}

// Service runs company-wide recomputations.
type Service struct {
	store Store
	clk   clock.Clock
	log   *logger.Logger
}

// New creates a batch service.
func New(store Store, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{store: store, clk: clk, log: log}
}

// RecomputeScores rescores every active lead in the company.
func (s *Service) RecomputeScores(ctx context.Context, companyID uuid.UUID, opts Options) (Report, error) {
	return s.run(ctx, opts, "recompute_scores",
		func(ctx context.Context, afterID uuid.UUID, limit int) ([]uuid.UUID, error) {
			return s.store.ListLeadIDs(ctx, companyID, afterID, limit)
		},
		func(ctx context.Context, id uuid.UUID, dryRun bool) (bool, error) {
			return s.rescoreLead(ctx, companyID, id, dryRun)
		},
	)
}

// RecomputeAccounts re-derives health and lifecycle stage for every account.
func (s *Service) RecomputeAccounts(ctx context.Context, companyID uuid.UUID, opts Options) (Report, error) {
	return s.run(ctx, opts, "recompute_accounts",
		func(ctx context.Context, afterID uuid.UUID, limit int) ([]uuid.UUID, error) {
			return s.store.ListAccountIDs(ctx, companyID, afterID, limit)
		},
		func(ctx context.Context, id uuid.UUID, dryRun bool) (bool, error) {
			return s.refreshAccount(ctx, companyID, id, dryRun)
		},
	)
}

// run drives keyset-paged chunks through a bounded worker pool. Per-item
// errors land in the report; only context cancellation aborts the batch.
func (s *Service) run(
	ctx context.Context,
	opts Options,
	job string,
	page func(ctx context.Context, afterID uuid.UUID, limit int) ([]uuid.UUID, error),
	process func(ctx context.Context, id uuid.UUID, dryRun bool) (bool, error),
) (Report, error) {
	opts = opts.withDefaults()
	limiter := rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RatePerSecond)

	report := Report{DryRun: opts.DryRun, Errors: make(map[uuid.UUID]string)}
	var mu sync.Mutex

	var afterID uuid.UUID
	for {
		ids, err := page(ctx, afterID, opts.ChunkSize)
		if err != nil {
			return report, err
		}
		if len(ids) == 0 {
			break
		}
		afterID = ids[len(ids)-1]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}
				updated, err := process(gctx, id, opts.DryRun)

				mu.Lock()
				defer mu.Unlock()
				report.Processed++
				switch {
				case err != nil:
					report.Failed++
					report.Errors[id] = err.Error()
				case updated:
					report.Updated++
				default:
					report.Unchanged++
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return report, err
		}

		s.log.BatchProgress(job, report.Processed, report.Updated, report.Unchanged, report.Failed)

		if len(ids) < opts.ChunkSize {
			break
		}
	}

	return report, nil
}

// rescoreLead recomputes one lead's score and writes it when it drifted.
// Inactive leads (converted, disqualified, lost) are left untouched.
func (s *Service) rescoreLead(ctx context.Context, companyID, leadID uuid.UUID, dryRun bool) (bool, error) {
	lead, err := s.store.GetLead(ctx, companyID, leadID)
	if err != nil {
		return false, err
	}
	if !domain.IsActiveLeadStatus(lead.Status) {
		return false, nil
	}

	now := s.clk.Now()
	activities, err := s.store.ListLeadActivities(ctx, companyID, leadID, now.Add(-scoreLookback))
	if err != nil {
		return false, err
	}

	breakdown := scoring.Score(lead, activities, now)
	if breakdown.Total == lead.LeadScore {
		return false, nil
	}
	if dryRun {
		return true, nil
	}
	return true, s.store.UpdateLeadScore(ctx, companyID, leadID, breakdown.Total)
}

// refreshAccount recomputes one account's derived state, writing on drift.
func (s *Service) refreshAccount(ctx context.Context, companyID, accountID uuid.UUID, dryRun bool) (bool, error) {
	account, err := s.store.GetAccount(ctx, companyID, accountID)
	if err != nil {
		return false, err
	}

	now := s.clk.Now()
	activities, err := s.store.ListAccountActivities(ctx, companyID, accountID, now.Add(-healthLookback))
	if err != nil {
		return false, err
	}
	deals, err := s.store.ListDealsByAccount(ctx, companyID, accountID)
	if err != nil {
		return false, err
	}

	breakdown := health.ComputeHealth(account, activities, deals, now)
	stage := health.DetermineLifecycleStage(account, deals, activities, now)
	if breakdown.Rating == account.HealthScore && stage == account.LifecycleStage {
		return false, nil
	}
	if dryRun {
		return true, nil
	}
	return true, s.store.UpdateAccountDerived(ctx, companyID, accountID, breakdown.Rating, stage)
}
