package qualification

import (
	"context"
	"testing"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/enginetest"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func fullBANTLead() repository.Lead {
	return repository.Lead{
		FirstName:       "Priya",
		LastName:        "Sharma",
		Email:           ptr("priya@acme.com"),
		Phone:           ptr("9876543210"),
		CompanyName:     ptr("Acme"),
		BudgetRange:     ptr("₹5-7 Lakh"),
		AuthorityLevel:  ptr("decision_maker"),
		InterestProduct: ptr("CRM"),
		Timeline:        ptr("30 Days"),
		CreatedAt:       testNow.Add(-10 * 24 * time.Hour),
	}
}

func interaction(age time.Duration, outcome string) repository.Activity {
	a := repository.Activity{
		ActivityType: domain.ActivityCall,
		ActivityDate: testNow.Add(-age),
	}
	if outcome != "" {
		a.Outcome = &outcome
	}
	return a
}

func TestScoreBANT(t *testing.T) {
	full := ScoreBANT(fullBANTLead())
	assert.Equal(t, 4, full.MetCount)
	assert.Equal(t, 100, full.Percentage)
	assert.True(t, full.Passed)

	partial := fullBANTLead()
	partial.BudgetRange = nil
	three := ScoreBANT(partial)
	assert.Equal(t, 3, three.MetCount)
	assert.Equal(t, 75, three.Percentage)
	assert.True(t, three.Passed, "75 percent meets the threshold")

	partial.Timeline = ptr("  ")
	two := ScoreBANT(partial)
	assert.Equal(t, 2, two.MetCount)
	assert.False(t, two.Passed)
}

func TestScoreMEDDICC(t *testing.T) {
	lead := fullBANTLead()
	deals := []repository.Deal{{Title: "Acme CRM rollout"}}
	activities := []repository.Activity{
		interaction(2*24*time.Hour, domain.OutcomePositive),
	}

	result := ScoreMEDDICC(lead, deals, activities)
	assert.Equal(t, 7, result.MetCount)
	assert.True(t, result.Passed)

	// strip champion and competition signals: 5 of 7 still passes
	result = ScoreMEDDICC(lead, nil, []repository.Activity{interaction(time.Hour, "")})
	assert.Equal(t, 5, result.MetCount)
	assert.True(t, result.Passed)

	// strip interaction evidence too: 4 of 7 fails
	result = ScoreMEDDICC(lead, nil, nil)
	assert.Equal(t, 4, result.MetCount)
	assert.False(t, result.Passed)
}

func TestRiskScore_Levels(t *testing.T) {
	engaged := fullBANTLead()
	activities := []repository.Activity{
		interaction(1*24*time.Hour, domain.OutcomePositive),
		interaction(3*24*time.Hour, ""),
		interaction(6*24*time.Hour, ""),
	}
	low := RiskScore(engaged, activities, testNow)
	assert.Equal(t, domain.RiskLow, low.Level)
	assert.Equal(t, 40, low.BANT)
	assert.Equal(t, 25, low.Engagement)
	assert.Equal(t, 20, low.DataQuality)
	assert.Equal(t, 15, low.Recency)

	stale := repository.Lead{FirstName: "Ghost", CreatedAt: testNow.Add(-60 * 24 * time.Hour)}
	critical := RiskScore(stale, nil, testNow)
	assert.Equal(t, domain.RiskCritical, critical.Level)
	assert.Equal(t, 0, critical.Score)
}

func TestRiskScore_BoundedToHundred(t *testing.T) {
	r := RiskScore(fullBANTLead(), []repository.Activity{
		interaction(time.Hour, domain.OutcomePositive),
		interaction(2*time.Hour, domain.OutcomePositive),
		interaction(3*time.Hour, domain.OutcomePositive),
		interaction(4*time.Hour, domain.OutcomePositive),
	}, testNow)
	assert.LessOrEqual(t, r.Score, 100)
	assert.GreaterOrEqual(t, r.Score, 0)
}

func TestRiskScore_FreshLeadNotPenalizedForSilence(t *testing.T) {
	fresh := repository.Lead{FirstName: "New", CreatedAt: testNow.Add(-24 * time.Hour)}
	idle := repository.Lead{FirstName: "Old", CreatedAt: testNow.Add(-45 * 24 * time.Hour)}

	assert.Greater(t, RiskScore(fresh, nil, testNow).Recency, RiskScore(idle, nil, testNow).Recency)
}

func TestCheckConversionEligibility(t *testing.T) {
	lead := fullBANTLead()
	lead.LeadScore = 80
	lead.Status = domain.LeadStatusContacted

	e := CheckConversionEligibility(lead)
	assert.True(t, e.Eligible)
	assert.Equal(t, 4, e.CriteriaMet)
	assert.Empty(t, e.BlockingReasons)
}

func TestCheckConversionEligibility_ThreeOfFourSuffices(t *testing.T) {
	lead := fullBANTLead()
	lead.LeadScore = 55 // fails the score check only
	lead.Status = domain.LeadStatusQualified

	e := CheckConversionEligibility(lead)
	assert.True(t, e.Eligible)
	assert.Equal(t, 3, e.CriteriaMet)
	require.Len(t, e.BlockingReasons, 1)
	assert.Contains(t, e.BlockingReasons[0], "score")
}

func TestCheckConversionEligibility_Blocked(t *testing.T) {
	lead := repository.Lead{
		FirstName: "Bare",
		LeadScore: 20,
		Status:    domain.LeadStatusNew,
	}

	e := CheckConversionEligibility(lead)
	assert.False(t, e.Eligible)
	assert.Len(t, e.BlockingReasons, 4)
}

func TestAssess_LoadsSnapshotOnce(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := fullBANTLead()
	lead.CompanyID = companyID
	lead.LeadScore = 75
	lead.Status = domain.LeadStatusQualified
	seeded := store.SeedLead(lead)

	outcome := domain.OutcomePositive
	store.SeedActivity(repository.Activity{
		CompanyID:    companyID,
		LeadID:       &seeded.ID,
		ActivityType: domain.ActivityMeeting,
		Outcome:      &outcome,
		ActivityDate: testNow.Add(-48 * time.Hour),
	})

	svc := New(store, clock.Fixed(testNow), logger.NewNop())
	assessment, err := svc.Assess(context.Background(), companyID, seeded.ID)
	require.NoError(t, err)

	assert.True(t, assessment.BANT.Passed)
	assert.True(t, assessment.Eligibility.Eligible)
	assert.Equal(t, domain.RiskLow, assessment.Risk.Level)
}

func TestAssess_UnknownLead(t *testing.T) {
	svc := New(enginetest.New(), clock.Fixed(testNow), logger.NewNop())
	_, err := svc.Assess(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
}
