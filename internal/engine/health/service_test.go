package health

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

func activityAt(age time.Duration) repository.Activity {
	return repository.Activity{
		ActivityType: domain.ActivityMeeting,
		ActivityDate: testNow.Add(-age),
	}
}

func TestComputeHealth_EngagedAccountIsGreen(t *testing.T) {
	account := repository.Account{IsActive: true}
	activities := []repository.Activity{
		activityAt(2 * 24 * time.Hour),
		activityAt(10 * 24 * time.Hour),
		activityAt(20 * 24 * time.Hour),
	}
	deals := []repository.Deal{
		{Status: domain.DealStatusOpen, Stage: domain.DealStageProposal},
		{Status: domain.DealStatusWon, Stage: domain.DealStageClosed},
	}

	b := ComputeHealth(account, activities, deals, testNow)
	assert.Equal(t, 24, b.Activity)
	assert.Equal(t, 25, b.Deals)
	assert.Equal(t, 20, b.LastInteraction)
	assert.Equal(t, 10, b.Status)
	assert.Equal(t, domain.HealthGreen, b.Rating)
}

func TestComputeHealth_SilentAccountIsBlack(t *testing.T) {
	account := repository.Account{IsActive: false}
	b := ComputeHealth(account, nil, nil, testNow)
	assert.Equal(t, 0, b.Total)
	assert.Equal(t, domain.HealthBlack, b.Rating)
}

func TestComputeHealth_ComponentsAreCapped(t *testing.T) {
	var activities []repository.Activity
	for i := 0; i < 20; i++ {
		activities = append(activities, activityAt(time.Duration(i)*24*time.Hour))
	}
	var deals []repository.Deal
	for i := 0; i < 5; i++ {
		deals = append(deals, repository.Deal{Status: domain.DealStatusWon})
	}

	b := ComputeHealth(repository.Account{IsActive: true}, activities, deals, testNow)
	assert.Equal(t, 40, b.Activity)
	assert.Equal(t, 30, b.Deals)
	assert.LessOrEqual(t, b.Total, 100)
}

func TestDetermineLifecycleStage_WonDealWinsOverEverything(t *testing.T) {
	account := repository.Account{HealthScore: domain.HealthBlack, CreatedAt: testNow.Add(-365 * 24 * time.Hour)}
	deals := []repository.Deal{{Status: domain.DealStatusWon}}

	stage := DetermineLifecycleStage(account, deals, nil, testNow)
	assert.Equal(t, domain.StageCustomer, stage)
}

func TestDetermineLifecycleStage_OpenDealIsSQA(t *testing.T) {
	account := repository.Account{IsActive: true, CreatedAt: testNow.Add(-30 * 24 * time.Hour)}

	advanced := []repository.Deal{{Status: domain.DealStatusOpen, Stage: domain.DealStageNegotiation}}
	assert.Equal(t, domain.StageSQA, DetermineLifecycleStage(account, advanced, nil, testNow))

	early := []repository.Deal{{Status: domain.DealStatusOpen, Stage: domain.DealStageProspecting}}
	assert.Equal(t, domain.StageSQA, DetermineLifecycleStage(account, early, nil, testNow))
}

func TestDetermineLifecycleStage_BlackAndSilentChurns(t *testing.T) {
	account := repository.Account{
		HealthScore: domain.HealthBlack,
		IsActive:    true,
		CreatedAt:   testNow.Add(-95 * 24 * time.Hour),
	}

	stage := DetermineLifecycleStage(account, nil, nil, testNow)
	assert.Equal(t, domain.StageChurned, stage)
}

func TestDetermineLifecycleStage_YoungBlackAccountIsNotChurned(t *testing.T) {
	account := repository.Account{
		HealthScore: domain.HealthBlack,
		IsActive:    true,
		CreatedAt:   testNow.Add(-10 * 24 * time.Hour),
	}

	stage := DetermineLifecycleStage(account, nil, nil, testNow)
	assert.Equal(t, domain.StageMQA, stage)
}

func TestDetermineLifecycleStage_RecentActivityIsMQA(t *testing.T) {
	account := repository.Account{IsActive: true, CreatedAt: testNow.Add(-200 * 24 * time.Hour)}
	activities := []repository.Activity{activityAt(30 * 24 * time.Hour)}

	stage := DetermineLifecycleStage(account, nil, activities, testNow)
	assert.Equal(t, domain.StageMQA, stage)
}

func TestDetermineLifecycleStage_InactiveFallbackChurns(t *testing.T) {
	account := repository.Account{
		HealthScore: domain.HealthYellow,
		IsActive:    false,
		CreatedAt:   testNow.Add(-200 * 24 * time.Hour),
	}

	stage := DetermineLifecycleStage(account, nil, nil, testNow)
	assert.Equal(t, domain.StageChurned, stage)
}

func TestDetermineLifecycleStage_Idempotent(t *testing.T) {
	account := repository.Account{IsActive: true, CreatedAt: testNow.Add(-50 * 24 * time.Hour)}
	deals := []repository.Deal{{Status: domain.DealStatusOpen, Stage: domain.DealStageQualified}}

	first := DetermineLifecycleStage(account, deals, nil, testNow)
	account.LifecycleStage = first
	second := DetermineLifecycleStage(account, deals, nil, testNow)
	assert.Equal(t, first, second)
}

func TestRefresh_WritesOnlyWhenChanged(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	account := store.SeedAccount(repository.Account{
		CompanyID:      companyID,
		Name:           "Acme Tech",
		NormalizedName: "acme tech",
		HealthScore:    domain.HealthGreen,
		LifecycleStage: domain.StageMQA,
		IsActive:       true,
		CreatedAt:      testNow.Add(-120 * 24 * time.Hour),
	})

	store.SeedActivity(repository.Activity{
		CompanyID:    companyID,
		AccountID:    &account.ID,
		ActivityType: domain.ActivityCall,
		ActivityDate: testNow.Add(-80 * 24 * time.Hour),
	})

	svc := New(store, clock.Fixed(testNow), logger.NewNop())

	// one stale activity, no deals: green account degrades
	b, changed, err := svc.Refresh(context.Background(), companyID, account.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.HealthBlack, b.Rating)
	assert.Equal(t, domain.StageMQA, store.Accounts[account.ID].LifecycleStage)

	// second run is a no-op
	_, changed, err = svc.Refresh(context.Background(), companyID, account.ID)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRefresh_BlackAndSilentEventuallyChurns(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	account := store.SeedAccount(repository.Account{
		CompanyID:      companyID,
		Name:           "Ghost Corp",
		NormalizedName: "ghost corp",
		HealthScore:    domain.HealthBlack,
		LifecycleStage: domain.StageMQA,
		IsActive:       true,
		CreatedAt:      testNow.Add(-95 * 24 * time.Hour),
	})

	svc := New(store, clock.Fixed(testNow), logger.NewNop())
	_, changed, err := svc.Refresh(context.Background(), companyID, account.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.StageChurned, store.Accounts[account.ID].LifecycleStage)
}

func TestRefresh_UnknownAccount(t *testing.T) {
	svc := New(enginetest.New(), clock.Fixed(testNow), logger.NewNop())
	_, _, err := svc.Refresh(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
}
