package batch

import (
	"context"
	"errors"
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

func newService(store *enginetest.Store) *Service {
	return New(store, clock.Fixed(testNow), logger.NewNop())
}

func seedScorableLeads(store *enginetest.Store, companyID uuid.UUID, n int) {
	for i := 0; i < n; i++ {
		store.SeedLead(repository.Lead{
			CompanyID:   companyID,
			FirstName:   "Lead",
			LastName:    "N",
			Email:       ptr("lead@crm.test"),
			Phone:       ptr("9876543210"),
			CompanyName: ptr("Acme"),
			Source:      ptr("referral"),
			Status:      domain.LeadStatusNew,
			LeadScore:   0, // stale stored score
		})
	}
}

func TestRecomputeScores_SecondRunIsAllUnchanged(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	seedScorableLeads(store, companyID, 7)

	svc := newService(store)
	opts := Options{ChunkSize: 3, Workers: 2}

	first, err := svc.RecomputeScores(context.Background(), companyID, opts)
	require.NoError(t, err)
	assert.Equal(t, 7, first.Processed)
	assert.Equal(t, 7, first.Updated)
	assert.Equal(t, 0, first.Failed)

	second, err := svc.RecomputeScores(context.Background(), companyID, opts)
	require.NoError(t, err)
	assert.Equal(t, 7, second.Processed)
	assert.Equal(t, second.Processed, second.Unchanged, "a rerun over correct data is a no-op")
	assert.Equal(t, 0, second.Updated)
}

func TestRecomputeScores_DryRunWritesNothing(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	seedScorableLeads(store, companyID, 3)

	svc := newService(store)
	report, err := svc.RecomputeScores(context.Background(), companyID, Options{DryRun: true})
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Updated, "dry run still reports what would change")
	for _, lead := range store.Leads {
		assert.Equal(t, 0, lead.LeadScore, "dry run must not mutate stored scores")
	}
}

func TestRecomputeScores_SkipsInactiveLeads(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	store.SeedLead(repository.Lead{
		CompanyID: companyID,
		FirstName: "Done",
		Source:    ptr("referral"),
		Status:    domain.LeadStatusConverted,
		LeadScore: 12,
	})

	svc := newService(store)
	report, err := svc.RecomputeScores(context.Background(), companyID, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 12, leadScores(store)[0], "converted leads keep their frozen score")
}

func leadScores(store *enginetest.Store) []int {
	var out []int
	for _, l := range store.Leads {
		out = append(out, l.LeadScore)
	}
	return out
}

func TestRecomputeAccounts_ConvergesAndReportsErrors(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	account := store.SeedAccount(repository.Account{
		CompanyID:      companyID,
		Name:           "Acme",
		NormalizedName: "acme",
		HealthScore:    domain.HealthGreen,
		LifecycleStage: domain.StageMQA,
		IsActive:       true,
		CreatedAt:      testNow.Add(-120 * 24 * time.Hour),
	})
	store.SeedActivity(repository.Activity{
		CompanyID:    companyID,
		AccountID:    &account.ID,
		ActivityType: domain.ActivityCall,
		ActivityDate: testNow.Add(-2 * 24 * time.Hour),
	})
	store.SeedActivity(repository.Activity{
		CompanyID:    companyID,
		AccountID:    &account.ID,
		ActivityType: domain.ActivityEmail,
		ActivityDate: testNow.Add(-5 * 24 * time.Hour),
	})

	svc := newService(store)
	first, err := svc.RecomputeAccounts(context.Background(), companyID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Updated)
	assert.Equal(t, domain.HealthYellow, store.Accounts[account.ID].HealthScore)

	second, err := svc.RecomputeAccounts(context.Background(), companyID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Unchanged)
}

func TestRecomputeAccounts_PerItemFailureDoesNotAbort(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	account := store.SeedAccount(repository.Account{
		CompanyID:      companyID,
		Name:           "Acme",
		NormalizedName: "acme",
		HealthScore:    domain.HealthGreen,
		LifecycleStage: domain.StageMQA,
		IsActive:       true,
		CreatedAt:      testNow.Add(-120 * 24 * time.Hour),
	})
	store.FailUpdateAccount = errors.New("write refused")

	svc := newService(store)
	report, err := svc.RecomputeAccounts(context.Background(), companyID, Options{})
	require.NoError(t, err, "item failures are reported, not returned")
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Errors[account.ID], "write refused")
}
