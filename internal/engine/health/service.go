// Package health derives the categorical account health rating and the
// lifecycle stage. Both are pure recomputations over current data, safe to
// re-run at any time.
package health

import (
	"context"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
)

const (
	maxActivityScore        = 40
	maxDealScore            = 30
	maxLastInteractionScore = 20
	maxStatusScore          = 10

	// lookback is the activity window for both health and churn detection.
	lookback = 90 * 24 * time.Hour
)

// Breakdown carries the component values behind a health rating.
type Breakdown struct {
	Activity        int                `json:"activity"`
	Deals           int                `json:"deals"`
	LastInteraction int                `json:"lastInteraction"`
	Status          int                `json:"status"`
	Total           int                `json:"total"`
	Rating          domain.HealthScore `json:"rating"`
}

// ComputeHealth scores the account from four capped components and maps the
// total to a rating: green >=70, yellow >=40, red >=20, black below.
func ComputeHealth(account repository.Account, activities []repository.Activity, deals []repository.Deal, now time.Time) Breakdown {
	b := Breakdown{
		Activity:        scoreActivity(activities, now),
		Deals:           scoreDeals(deals),
		LastInteraction: scoreLastInteraction(activities, now),
		Status:          scoreStatus(account),
	}
	b.Total = b.Activity + b.Deals + b.LastInteraction + b.Status
	switch {
	case b.Total >= 70:
		b.Rating = domain.HealthGreen
	case b.Total >= 40:
		b.Rating = domain.HealthYellow
	case b.Total >= 20:
		b.Rating = domain.HealthRed
	default:
		b.Rating = domain.HealthBlack
	}
	return b
}

// scoreActivity weights recent interactions by recency, newer counting more.
func scoreActivity(activities []repository.Activity, now time.Time) int {
	score := 0
	for _, a := range activities {
		age := now.Sub(a.ActivityDate)
		if age < 0 || age > lookback {
			continue
		}
		switch {
		case age <= 30*24*time.Hour:
			score += 8
		case age <= 60*24*time.Hour:
			score += 5
		default:
			score += 3
		}
	}
	return clamp(score, maxActivityScore)
}

func scoreDeals(deals []repository.Deal) int {
	score := 0
	for _, d := range deals {
		switch {
		case d.Status == domain.DealStatusWon:
			score += 15
		case d.Status == domain.DealStatusOpen && domain.IsAdvancedDealStage(d.Stage):
			score += 10
		case d.Status == domain.DealStatusOpen:
			score += 5
		}
	}
	return clamp(score, maxDealScore)
}

func scoreLastInteraction(activities []repository.Activity, now time.Time) int {
	var last time.Time
	for _, a := range activities {
		if a.ActivityDate.After(last) {
			last = a.ActivityDate
		}
	}
	if last.IsZero() {
		return 0
	}
	switch age := now.Sub(last); {
	case age <= 7*24*time.Hour:
		return maxLastInteractionScore
	case age <= 30*24*time.Hour:
		return 15
	case age <= 60*24*time.Hour:
		return 10
	case age <= lookback:
		return 5
	default:
		return 0
	}
}

func scoreStatus(account repository.Account) int {
	if account.IsActive {
		return maxStatusScore
	}
	return 0
}

func clamp(v, max int) int {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}

// DetermineLifecycleStage walks a priority-ordered decision list, first
// match wins. Pure and idempotent; there is no persisted transition table.
func DetermineLifecycleStage(account repository.Account, deals []repository.Deal, activities []repository.Activity, now time.Time) domain.LifecycleStage {
	var hasWon, hasOpen, hasAdvancedOpen bool
	for _, d := range deals {
		switch {
		case d.Status == domain.DealStatusWon:
			hasWon = true
		case d.Status == domain.DealStatusOpen:
			hasOpen = true
			if domain.IsAdvancedDealStage(d.Stage) {
				hasAdvancedOpen = true
			}
		}
	}

	recentActivity := false
	for _, a := range activities {
		if now.Sub(a.ActivityDate) <= lookback {
			recentActivity = true
			break
		}
	}

	switch {
	case hasWon:
		return domain.StageCustomer
	case hasAdvancedOpen:
		return domain.StageSQA
	case hasOpen:
		return domain.StageSQA
	case account.HealthScore == domain.HealthBlack && !recentActivity && now.Sub(account.CreatedAt) > lookback:
		return domain.StageChurned
	case recentActivity:
		return domain.StageMQA
	case !account.IsActive:
		return domain.StageChurned
	default:
		return domain.StageMQA
	}
}

// Store is the persistence surface the refresher needs.
type Store interface {
	repository.AccountStore
	repository.DealStore
	repository.ActivityStore
}

// Service recomputes and persists derived account state.
type Service struct {
	store Store
	clk   clock.Clock
	log   *logger.Logger
}

// New creates a health service.
func New(store Store, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{store: store, clk: clk, log: log}
}

// Refresh recomputes health and lifecycle stage for the account and writes
// them only when either changed. Returns the breakdown and whether a write
// happened, so batch jobs can count no-ops.
func (s *Service) Refresh(ctx context.Context, companyID, accountID uuid.UUID) (Breakdown, bool, error) {
	account, err := s.store.GetAccount(ctx, companyID, accountID)
	if err != nil {
		if err == repository.ErrNotFound {
			return Breakdown{}, false, apperr.NotFound("account not found")
		}
		return Breakdown{}, false, err
	}

	now := s.clk.Now()
	activities, err := s.store.ListAccountActivities(ctx, companyID, accountID, now.Add(-lookback))
	if err != nil {
		return Breakdown{}, false, apperr.Wrap(apperr.KindInternal, "listing account activities", err).WithOp("health.Refresh")
	}
	deals, err := s.store.ListDealsByAccount(ctx, companyID, accountID)
	if err != nil {
		return Breakdown{}, false, apperr.Wrap(apperr.KindInternal, "listing account deals", err).WithOp("health.Refresh")
	}

	breakdown := ComputeHealth(account, activities, deals, now)
	stage := DetermineLifecycleStage(account, deals, activities, now)

	if breakdown.Rating == account.HealthScore && stage == account.LifecycleStage {
		return breakdown, false, nil
	}

	if err := s.store.UpdateAccountDerived(ctx, companyID, accountID, breakdown.Rating, stage); err != nil {
		return Breakdown{}, false, err
	}
	s.log.AutomationEvent("account_refreshed", accountID,
		"health", string(breakdown.Rating), "stage", string(stage),
		"prevHealth", string(account.HealthScore), "prevStage", string(account.LifecycleStage),
	)
	return breakdown, true, nil
}
