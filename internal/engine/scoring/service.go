// Package scoring computes the 0-100 lead score from five independently
// capped factors and applies bounded score adjustments.
package scoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
)

// Factor caps and bounds.
const (
	maxSourceScore       = 20
	maxBANTScore         = 30
	maxEngagementScore   = 30
	maxCompletenessScore = 10
	maxBonusScore        = 10

	// MaxIncrementDelta bounds a single score adjustment in either direction.
	MaxIncrementDelta = 25

	// engagementWindow is how far back activity counts toward the score.
	engagementWindow = 30 * 24 * time.Hour
)

// source quality tiers, matched by substring against the lower-cased source.
var sourceTiers = []struct {
	keywords []string
	score    int
}{
	{[]string{"referral", "partner"}, 20},
	{[]string{"website", "organic", "webinar", "event"}, 15},
	{[]string{"google", "search", "ppc", "adwords"}, 12},
	{[]string{"linkedin", "facebook", "instagram", "social"}, 10},
	{[]string{"cold", "purchased", "list"}, 5},
}

// authority seniority tiers, matched by substring against authority_level.
var authorityTiers = []struct {
	keywords []string
	score    int
}{
	{[]string{"decision_maker", "decision maker", "owner", "founder", "ceo", "cxo", "director"}, 10},
	{[]string{"influencer", "manager", "head"}, 6},
}

// urgent timeline keywords scoring full urgency points.
var urgentTimelines = []string{"immediate", "asap", "30 days", "30 day", "1 month"}

// nearTermTimelines score partial urgency points.
var nearTermTimelines = []string{"60 days", "90 days", "2 month", "3 month", "quarter"}

// Breakdown carries the per-factor values behind a lead score.
type Breakdown struct {
	Source       int `json:"source"`
	BANT         int `json:"bant"`
	Engagement   int `json:"engagement"`
	Completeness int `json:"completeness"`
	Bonus        int `json:"bonus"`
	Total        int `json:"total"`
}

// Store is the persistence surface the scorer needs.
type Store interface {
	repository.LeadReader
	repository.LeadWriter
	repository.ActivityStore
}

// Service scores leads and persists recalculated values.
type Service struct {
	store Store
	clk   clock.Clock
	log   *logger.Logger
}

// New creates a scoring service.
func New(store Store, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{store: store, clk: clk, log: log}
}

// Score is the pure scoring function. Each factor is clamped on its own
// before the final clamp so one runaway factor can never dominate.
func Score(lead repository.Lead, activities []repository.Activity, now time.Time) Breakdown {
	b := Breakdown{
		Source:       scoreSource(lead.Source),
		BANT:         scoreBANT(lead),
		Engagement:   scoreEngagement(activities, now),
		Completeness: scoreCompleteness(lead),
		Bonus:        scoreBonus(lead),
	}
	b.Total = clampScore(b.Source+b.BANT+b.Engagement+b.Completeness+b.Bonus, 0, 100)
	return b
}

func scoreSource(source *string) int {
	if source == nil {
		return 0
	}
	s := strings.ToLower(strings.TrimSpace(*source))
	if s == "" {
		return 0
	}
	for _, tier := range sourceTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(s, kw) {
				return clampScore(tier.score, 0, maxSourceScore)
			}
		}
	}
	// unknown but present source still signals intent
	return 8
}

func scoreBANT(lead repository.Lead) int {
	score := 0
	if hasValue(lead.BudgetRange) {
		score += 10
	}
	score += scoreAuthority(lead.AuthorityLevel)
	score += scoreTimeline(lead.Timeline)
	if hasValue(lead.InterestProduct) {
		score += 5
	}
	return clampScore(score, 0, maxBANTScore)
}

func scoreAuthority(authority *string) int {
	if !hasValue(authority) {
		return 0
	}
	a := strings.ToLower(*authority)
	for _, tier := range authorityTiers {
		for _, kw := range tier.keywords {
			if strings.Contains(a, kw) {
				return tier.score
			}
		}
	}
	return 3
}

func scoreTimeline(timeline *string) int {
	if !hasValue(timeline) {
		return 0
	}
	t := strings.ToLower(*timeline)
	for _, kw := range urgentTimelines {
		if strings.Contains(t, kw) {
			return 5
		}
	}
	for _, kw := range nearTermTimelines {
		if strings.Contains(t, kw) {
			return 3
		}
	}
	return 1
}

// scoreEngagement weights each recent activity by recency and adds bonuses
// for positive outcomes and email open/click signals. System-generated rows
// (score_change, status_change, conversion) are excluded so an audit entry
// can never feed back into the score it documents.
func scoreEngagement(activities []repository.Activity, now time.Time) int {
	score := 0
	for _, a := range activities {
		if isSystemActivity(a.ActivityType) {
			continue
		}
		age := now.Sub(a.ActivityDate)
		if age < 0 || age > engagementWindow {
			continue
		}
		switch {
		case age <= 7*24*time.Hour:
			score += 5
		case age <= 14*24*time.Hour:
			score += 3
		default:
			score += 1
		}
		if a.Outcome != nil && *a.Outcome == domain.OutcomePositive {
			score += 3
		}
		switch a.ActivityType {
		case domain.ActivityEmailOpen:
			score += 2
		case domain.ActivityEmailClick:
			score += 3
		}
	}
	return clampScore(score, 0, maxEngagementScore)
}

func scoreCompleteness(lead repository.Lead) int {
	score := 0
	if hasValue(lead.Email) {
		score += 2
	}
	if hasValue(lead.Phone) {
		score += 2
	}
	if hasValue(lead.CompanyName) {
		score += 2
	}
	if strings.TrimSpace(lead.FirstName) != "" && strings.TrimSpace(lead.LastName) != "" {
		score += 2
	}
	if hasValue(lead.Source) || hasValue(lead.Campaign) {
		score += 2
	}
	return clampScore(score, 0, maxCompletenessScore)
}

// scoreBonus rewards the combination of senior authority and urgency that
// the base factors undercount.
func scoreBonus(lead repository.Lead) int {
	score := 0
	if scoreAuthority(lead.AuthorityLevel) == 10 {
		score += 5
	}
	if scoreTimeline(lead.Timeline) == 5 {
		score += 3
	}
	if hasValue(lead.BudgetRange) {
		score += 2
	}
	return clampScore(score, 0, maxBonusScore)
}

func isSystemActivity(t domain.ActivityType) bool {
	switch t {
	case domain.ActivityScoreChange, domain.ActivityStatusChange, domain.ActivityConversion:
		return true
	}
	return false
}

func hasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func clampScore(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Recalculate fetches the lead and its recent activities, scores them, and
// persists the result only when it differs from the stored score.
func (s *Service) Recalculate(ctx context.Context, companyID, leadID uuid.UUID) (Breakdown, error) {
	lead, err := s.store.GetLead(ctx, companyID, leadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return Breakdown{}, apperr.NotFound("lead not found")
		}
		return Breakdown{}, err
	}

	now := s.clk.Now()
	activities, err := s.store.ListLeadActivities(ctx, companyID, leadID, now.Add(-engagementWindow))
	if err != nil {
		return Breakdown{}, apperr.Wrap(apperr.KindInternal, "listing lead activities", err).WithOp("scoring.Recalculate")
	}

	breakdown := Score(lead, activities, now)
	if breakdown.Total == lead.LeadScore {
		return breakdown, nil
	}

	if err := s.store.UpdateLeadScore(ctx, companyID, leadID, breakdown.Total); err != nil {
		return Breakdown{}, err
	}
	s.log.AutomationEvent("lead_score_recalculated", leadID, "old", lead.LeadScore, "new", breakdown.Total)
	s.logScoreChange(ctx, companyID, leadID, fmt.Sprintf("score recalculated %d -> %d", lead.LeadScore, breakdown.Total))
	return breakdown, nil
}

// Increment applies a bounded delta to the stored score. The clamp runs
// inside the database so concurrent increments never lose a write.
func (s *Service) Increment(ctx context.Context, companyID, leadID uuid.UUID, delta int, reason string) (int, error) {
	if delta > MaxIncrementDelta || delta < -MaxIncrementDelta {
		return 0, apperr.Newf(apperr.KindValidation, "score delta %d outside [-%d, %d]", delta, MaxIncrementDelta, MaxIncrementDelta)
	}
	if delta == 0 {
		lead, err := s.store.GetLead(ctx, companyID, leadID)
		if err != nil {
			if err == repository.ErrNotFound {
				return 0, apperr.NotFound("lead not found")
			}
			return 0, err
		}
		return lead.LeadScore, nil
	}

	newScore, err := s.store.IncrementLeadScore(ctx, companyID, leadID, delta)
	if err != nil {
		if err == repository.ErrNotFound {
			return 0, apperr.NotFound("lead not found")
		}
		return 0, err
	}

	subject := fmt.Sprintf("score adjusted by %+d", delta)
	if reason != "" {
		subject += ": " + reason
	}
	s.logScoreChange(ctx, companyID, leadID, subject)
	return newScore, nil
}

// logScoreChange records the audit activity. Failures are logged and
// swallowed so score writes never fail on audit trouble.
func (s *Service) logScoreChange(ctx context.Context, companyID, leadID uuid.UUID, subject string) {
	_, err := s.store.InsertActivity(ctx, repository.InsertActivityParams{
		CompanyID:    companyID,
		LeadID:       &leadID,
		ActivityType: domain.ActivityScoreChange,
		Subject:      subject,
		ActivityDate: s.clk.Now(),
	})
	if err != nil {
		s.log.Error("score change activity log failed", "error", err, "leadId", leadID)
	}
}
