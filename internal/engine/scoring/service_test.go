package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/enginetest"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func newService(store *enginetest.Store) *Service {
	return New(store, clock.Fixed(testNow), logger.NewNop())
}

func hotLead(companyID uuid.UUID) repository.Lead {
	return repository.Lead{
		CompanyID:       companyID,
		FirstName:       "Priya",
		LastName:        "Sharma",
		Email:           ptr("priya@acmetech.com"),
		Phone:           ptr("9876543210"),
		CompanyName:     ptr("Acme Tech"),
		Source:          ptr("referral"),
		BudgetRange:     ptr("₹5-7 Lakh"),
		AuthorityLevel:  ptr("decision_maker"),
		InterestProduct: ptr("CRM"),
		Timeline:        ptr("30 Days"),
	}
}

func positiveActivity(companyID uuid.UUID, leadID uuid.UUID, age time.Duration) repository.Activity {
	outcome := domain.OutcomePositive
	return repository.Activity{
		CompanyID:    companyID,
		LeadID:       &leadID,
		ActivityType: domain.ActivityCall,
		Outcome:      &outcome,
		ActivityDate: testNow.Add(-age),
	}
}

func TestScore_HotReferralLead(t *testing.T) {
	companyID := uuid.New()
	lead := hotLead(companyID)
	lead.ID = uuid.New()

	activities := []repository.Activity{
		positiveActivity(companyID, lead.ID, 2*24*time.Hour),
		positiveActivity(companyID, lead.ID, 5*24*time.Hour),
	}

	b := Score(lead, activities, testNow)
	assert.Equal(t, 20, b.Source)
	assert.Equal(t, 30, b.BANT)
	assert.GreaterOrEqual(t, b.Engagement, 16)
	assert.Equal(t, 10, b.Completeness)
	assert.GreaterOrEqual(t, b.Total, 70, "referral lead with full BANT and recent positive activity must qualify")
}

func TestScore_EmptyLeadScoresZeroish(t *testing.T) {
	b := Score(repository.Lead{FirstName: "X"}, nil, testNow)
	assert.Equal(t, 0, b.Source)
	assert.Equal(t, 0, b.BANT)
	assert.Equal(t, 0, b.Engagement)
	assert.Equal(t, 0, b.Total)
}

func TestScore_FactorsAreIndividuallyCapped(t *testing.T) {
	companyID := uuid.New()
	lead := hotLead(companyID)
	lead.ID = uuid.New()

	// pile on activity far beyond the engagement cap
	var activities []repository.Activity
	for i := 0; i < 50; i++ {
		activities = append(activities, positiveActivity(companyID, lead.ID, time.Duration(i)*time.Hour))
	}

	b := Score(lead, activities, testNow)
	assert.Equal(t, 30, b.Engagement)
	assert.LessOrEqual(t, b.Total, 100)
}

func TestScore_OldActivityIgnored(t *testing.T) {
	companyID := uuid.New()
	leadID := uuid.New()
	activities := []repository.Activity{
		positiveActivity(companyID, leadID, 45*24*time.Hour),
	}
	b := Score(repository.Lead{CompanyID: companyID, ID: leadID}, activities, testNow)
	assert.Equal(t, 0, b.Engagement)
}

func TestScore_EmailSignalsAddBonus(t *testing.T) {
	companyID := uuid.New()
	leadID := uuid.New()
	open := repository.Activity{
		CompanyID: companyID, LeadID: &leadID,
		ActivityType: domain.ActivityEmailOpen,
		ActivityDate: testNow.Add(-24 * time.Hour),
	}
	click := open
	click.ActivityType = domain.ActivityEmailClick

	noSignal := Score(repository.Lead{}, []repository.Activity{{ActivityType: domain.ActivityNote, ActivityDate: open.ActivityDate}}, testNow)
	withOpen := Score(repository.Lead{}, []repository.Activity{open}, testNow)
	withClick := Score(repository.Lead{}, []repository.Activity{click}, testNow)

	assert.Greater(t, withOpen.Engagement, noSignal.Engagement)
	assert.Greater(t, withClick.Engagement, withOpen.Engagement)
}

func TestRecalculate_WritesOnlyWhenChanged(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := store.SeedLead(hotLead(companyID))

	svc := newService(store)
	b, err := svc.Recalculate(context.Background(), companyID, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Total, store.Leads[lead.ID].LeadScore)
	require.Len(t, store.Activities, 1, "first recalculation logs a score change")
	assert.Equal(t, domain.ActivityScoreChange, store.Activities[0].ActivityType)

	// second run: score unchanged, no new audit row
	_, err = svc.Recalculate(context.Background(), companyID, lead.ID)
	require.NoError(t, err)
	assert.Len(t, store.Activities, 1)
}

func TestRecalculate_UnknownLead(t *testing.T) {
	svc := newService(enginetest.New())
	_, err := svc.Recalculate(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.GetKind(err))
}

func TestIncrement_DeltaBounds(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := store.SeedLead(repository.Lead{CompanyID: companyID, LeadScore: 50})

	svc := newService(store)
	_, err := svc.Increment(context.Background(), companyID, lead.ID, 26, "too big")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.GetKind(err))

	_, err = svc.Increment(context.Background(), companyID, lead.ID, -26, "too negative")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.GetKind(err))
}

func TestIncrement_ClampsAtBounds(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := store.SeedLead(repository.Lead{CompanyID: companyID, LeadScore: 90})

	svc := newService(store)
	newScore, err := svc.Increment(context.Background(), companyID, lead.ID, 25, "webinar attended")
	require.NoError(t, err)
	assert.Equal(t, 100, newScore)

	low := store.SeedLead(repository.Lead{CompanyID: companyID, LeadScore: 5})
	newScore, err = svc.Increment(context.Background(), companyID, low.ID, -25, "bounced email")
	require.NoError(t, err)
	assert.Equal(t, 0, newScore)
}

func TestIncrement_LogsReason(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := store.SeedLead(repository.Lead{CompanyID: companyID, LeadScore: 40})

	svc := newService(store)
	_, err := svc.Increment(context.Background(), companyID, lead.ID, 10, "demo completed")
	require.NoError(t, err)
	require.Len(t, store.Activities, 1)
	assert.Contains(t, store.Activities[0].Subject, "demo completed")
}

func TestIncrement_ZeroDeltaIsNoop(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := store.SeedLead(repository.Lead{CompanyID: companyID, LeadScore: 42})

	svc := newService(store)
	score, err := svc.Increment(context.Background(), companyID, lead.ID, 0, "")
	require.NoError(t, err)
	assert.Equal(t, 42, score)
	assert.Empty(t, store.Activities)
}
