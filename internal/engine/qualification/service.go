// Package qualification evaluates leads against the BANT and MEDDICC
// checklists, computes the deprioritization risk score, and decides
// conversion eligibility.
package qualification

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
)

const (
	bantPassPercentage = 75
	meddiccPassCount   = 5

	// conversionScoreFloor is the minimum lead score for eligibility.
	conversionScoreFloor = 70

	activityLookback = 30 * 24 * time.Hour
)

// Criterion is one named checklist item.
type Criterion struct {
	Name string `json:"name"`
	Met  bool   `json:"met"`
}

// ChecklistResult is the outcome of a BANT or MEDDICC evaluation.
type ChecklistResult struct {
	Criteria   []Criterion `json:"criteria"`
	MetCount   int         `json:"metCount"`
	Percentage int         `json:"percentage"`
	Passed     bool        `json:"passed"`
}

// RiskResult maps a weighted 0-100 risk score to a deprioritization level.
// Higher scores mean lower risk.
type RiskResult struct {
	Score       int              `json:"score"`
	Level       domain.RiskLevel `json:"level"`
	BANT        int              `json:"bant"`
	Engagement  int              `json:"engagement"`
	DataQuality int              `json:"dataQuality"`
	Recency     int              `json:"recency"`
}

// Eligibility is the conversion gate decision.
type Eligibility struct {
	Eligible        bool     `json:"eligible"`
	CriteriaMet     int      `json:"criteriaMet"`
	BlockingReasons []string `json:"blockingReasons"`
}

// Assessment bundles every qualification view of one lead.
type Assessment struct {
	BANT        ChecklistResult `json:"bant"`
	MEDDICC     ChecklistResult `json:"meddicc"`
	Risk        RiskResult      `json:"risk"`
	Eligibility Eligibility     `json:"eligibility"`
}

// ScoreBANT evaluates the four-criteria checklist: budget, authority, need,
// timeline. Each criterion weighs 25 points.
func ScoreBANT(lead repository.Lead) ChecklistResult {
	criteria := []Criterion{
		{Name: "budget", Met: hasValue(lead.BudgetRange)},
		{Name: "authority", Met: hasValue(lead.AuthorityLevel)},
		{Name: "need", Met: hasValue(lead.InterestProduct)},
		{Name: "timeline", Met: hasValue(lead.Timeline)},
	}
	return checklist(criteria, bantPassPercentage, 0)
}

// ScoreMEDDICC evaluates the seven-criteria checklist. Passing requires at
// least five criteria met.
func ScoreMEDDICC(lead repository.Lead, deals []repository.Deal, activities []repository.Activity) ChecklistResult {
	var hasInteraction, hasChampion bool
	for _, a := range activities {
		if isInteraction(a.ActivityType) {
			hasInteraction = true
		}
		if a.Outcome != nil && *a.Outcome == domain.OutcomePositive {
			hasChampion = true
		}
	}

	criteria := []Criterion{
		{Name: "metrics", Met: hasValue(lead.BudgetRange)},
		{Name: "economic_buyer", Met: isDecisionAuthority(lead.AuthorityLevel)},
		{Name: "decision_criteria", Met: hasValue(lead.InterestProduct)},
		{Name: "decision_process", Met: hasValue(lead.Timeline)},
		{Name: "identify_pain", Met: hasInteraction},
		{Name: "champion", Met: hasChampion},
		{Name: "competition", Met: len(deals) > 0},
	}
	return checklist(criteria, 0, meddiccPassCount)
}

// checklist counts met criteria and derives percentage plus pass/fail using
// either a percentage threshold or a minimum met count.
func checklist(criteria []Criterion, passPercentage, passCount int) ChecklistResult {
	met := 0
	for _, c := range criteria {
		if c.Met {
			met++
		}
	}
	pct := int(math.Round(float64(met) / float64(len(criteria)) * 100))
	passed := false
	if passPercentage > 0 {
		passed = pct >= passPercentage
	} else {
		passed = met >= passCount
	}
	return ChecklistResult{Criteria: criteria, MetCount: met, Percentage: pct, Passed: passed}
}

// RiskScore weighs BANT completion (40), engagement (25), data quality (20)
// and recency (15) into a 0-100 score, then maps it to a level. Low scores
// flag leads for deprioritization.
func RiskScore(lead repository.Lead, activities []repository.Activity, now time.Time) RiskResult {
	r := RiskResult{
		BANT:        ScoreBANT(lead).MetCount * 10,
		Engagement:  riskEngagement(activities, now),
		DataQuality: riskDataQuality(lead),
		Recency:     riskRecency(lead, activities, now),
	}
	r.Score = r.BANT + r.Engagement + r.DataQuality + r.Recency
	switch {
	case r.Score >= 70:
		r.Level = domain.RiskLow
	case r.Score >= 45:
		r.Level = domain.RiskMedium
	case r.Score >= 25:
		r.Level = domain.RiskHigh
	default:
		r.Level = domain.RiskCritical
	}
	return r
}

func riskEngagement(activities []repository.Activity, now time.Time) int {
	count := 0
	for _, a := range activities {
		if !isInteraction(a.ActivityType) {
			continue
		}
		if now.Sub(a.ActivityDate) <= activityLookback {
			count++
		}
	}
	switch {
	case count >= 3:
		return 25
	case count == 2:
		return 18
	case count == 1:
		return 10
	default:
		return 0
	}
}

func riskDataQuality(lead repository.Lead) int {
	score := 0
	if hasValue(lead.Email) {
		score += 5
	}
	if hasValue(lead.Phone) {
		score += 5
	}
	if hasValue(lead.CompanyName) {
		score += 5
	}
	if lead.FirstName != "" && lead.LastName != "" {
		score += 5
	}
	return score
}

func riskRecency(lead repository.Lead, activities []repository.Activity, now time.Time) int {
	var last time.Time
	for _, a := range activities {
		if isInteraction(a.ActivityType) && a.ActivityDate.After(last) {
			last = a.ActivityDate
		}
	}
	if last.IsZero() {
		// never touched: a brand-new lead is not yet stale
		if now.Sub(lead.CreatedAt) <= 7*24*time.Hour {
			return 8
		}
		return 0
	}
	switch age := now.Sub(last); {
	case age <= 7*24*time.Hour:
		return 15
	case age <= 14*24*time.Hour:
		return 10
	case age <= 30*24*time.Hour:
		return 5
	default:
		return 0
	}
}

// CheckConversionEligibility applies the four conversion checks: score,
// status, reachability, and BANT depth. Three of four must pass.
func CheckConversionEligibility(lead repository.Lead) Eligibility {
	var e Eligibility

	check := func(ok bool, reason string) {
		if ok {
			e.CriteriaMet++
			return
		}
		e.BlockingReasons = append(e.BlockingReasons, reason)
	}

	check(lead.LeadScore >= conversionScoreFloor, "lead score below 70")
	check(domain.IsConvertibleLeadStatus(lead.Status), "status must be contacted or qualified")
	check(hasValue(lead.Email) || hasValue(lead.Phone), "no contact channel on record")
	check(ScoreBANT(lead).MetCount >= 3, "fewer than 3 of 4 BANT criteria met")

	e.Eligible = e.CriteriaMet >= 3
	return e
}

func isDecisionAuthority(authority *string) bool {
	if !hasValue(authority) {
		return false
	}
	return containsAny(*authority, "decision_maker", "decision maker", "owner", "founder", "ceo", "cxo", "director")
}

func isInteraction(t domain.ActivityType) bool {
	switch t {
	case domain.ActivityCall, domain.ActivityEmail, domain.ActivityMeeting,
		domain.ActivityWhatsApp, domain.ActivityEmailOpen, domain.ActivityEmailClick:
		return true
	}
	return false
}

// Store is the persistence surface the assessor needs.
type Store interface {
	repository.LeadReader
	repository.DealStore
	repository.ActivityStore
}

// Service assembles full qualification assessments from stored data.
type Service struct {
	store Store
	clk   clock.Clock
	log   *logger.Logger
}

// New creates a qualification service.
func New(store Store, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{store: store, clk: clk, log: log}
}

// Assess loads the lead with its deals and recent activities and runs all
// four evaluators over the same snapshot.
func (s *Service) Assess(ctx context.Context, companyID, leadID uuid.UUID) (Assessment, error) {
	lead, err := s.store.GetLead(ctx, companyID, leadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return Assessment{}, apperr.NotFound("lead not found")
		}
		return Assessment{}, err
	}

	now := s.clk.Now()
	activities, err := s.store.ListLeadActivities(ctx, companyID, leadID, now.Add(-activityLookback))
	if err != nil {
		return Assessment{}, apperr.Wrap(apperr.KindInternal, "listing lead activities", err).WithOp("qualification.Assess")
	}
	deals, err := s.store.ListDealsByLead(ctx, companyID, leadID)
	if err != nil {
		return Assessment{}, apperr.Wrap(apperr.KindInternal, "listing lead deals", err).WithOp("qualification.Assess")
	}

	return Assessment{
		BANT:        ScoreBANT(lead),
		MEDDICC:     ScoreMEDDICC(lead, deals, activities),
		Risk:        RiskScore(lead, activities, now),
		Eligibility: CheckConversionEligibility(lead),
	}, nil
}

func hasValue(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

func containsAny(s string, keywords ...string) bool {
	lower := strings.ToLower(s)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
