package assignment

import (
	"context"
	"os"
	"path/filepath"
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

var assignableRoles = []domain.UserRole{domain.RoleSalesRep, domain.RoleManager}

func newService(store *enginetest.Store, territories TerritoryMap) *Service {
	return New(store, assignableRoles, territories, clock.Fixed(testNow), logger.NewNop())
}

func seedRep(store *enginetest.Store, companyID uuid.UUID, email string) repository.User {
	return store.SeedUser(repository.User{
		CompanyID: companyID,
		Name:      email,
		Email:     email,
		Role:      domain.RoleSalesRep,
		IsActive:  true,
	})
}

func TestAssignLead_ManualNeverAssigns(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	seedRep(store, companyID, "rep@crm.test")

	svc := newService(store, TerritoryMap{})
	owner, err := svc.AssignLead(context.Background(), companyID, domain.AssignManual, nil)
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestAssignLead_UnknownRule(t *testing.T) {
	svc := newService(enginetest.New(), TerritoryMap{})
	_, err := svc.AssignLead(context.Background(), uuid.New(), "weighted_random", nil)
	require.Error(t, err)
}

func TestAssignLead_NoEligibleUsers(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	store.SeedUser(repository.User{CompanyID: companyID, Email: "support@crm.test", Role: domain.RoleSupport, IsActive: true})
	store.SeedUser(repository.User{CompanyID: companyID, Email: "inactive@crm.test", Role: domain.RoleSalesRep, IsActive: false})

	svc := newService(store, TerritoryMap{})
	owner, err := svc.AssignLead(context.Background(), companyID, domain.AssignRoundRobin, nil)
	require.NoError(t, err)
	assert.Nil(t, owner)
}

func TestAssignLead_RoundRobinIsFair(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	reps := []repository.User{
		seedRep(store, companyID, "a@crm.test"),
		seedRep(store, companyID, "b@crm.test"),
		seedRep(store, companyID, "c@crm.test"),
	}

	svc := newService(store, TerritoryMap{})
	got := make(map[uuid.UUID]int)
	for i := 0; i < 9; i++ {
		owner, err := svc.AssignLead(context.Background(), companyID, domain.AssignRoundRobin, nil)
		require.NoError(t, err)
		require.NotNil(t, owner)
		got[*owner]++

		lead := store.SeedLead(repository.Lead{CompanyID: companyID, FirstName: "L"})
		require.NoError(t, store.AssignLead(context.Background(), companyID, lead.ID, *owner))
	}

	for _, rep := range reps {
		assert.Equal(t, 3, got[rep.ID], "each rep should receive an equal share")
	}
}

func TestAssignLead_RoundRobinIgnoresOldLeads(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	veteran := seedRep(store, companyID, "veteran@crm.test")
	rookie := seedRep(store, companyID, "rookie@crm.test")

	// veteran carries only stale load, outside the 30-day window
	for i := 0; i < 5; i++ {
		owner := veteran.ID
		store.SeedLead(repository.Lead{
			CompanyID:  companyID,
			FirstName:  "Old",
			AssignedTo: &owner,
			Status:     domain.LeadStatusContacted,
			CreatedAt:  testNow.Add(-60 * 24 * time.Hour),
			UpdatedAt:  testNow.Add(-60 * 24 * time.Hour),
		})
	}
	// rookie has one fresh active lead
	owner := rookie.ID
	store.SeedLead(repository.Lead{
		CompanyID:  companyID,
		FirstName:  "Fresh",
		AssignedTo: &owner,
		Status:     domain.LeadStatusNew,
	})

	svc := newService(store, TerritoryMap{})
	picked, err := svc.AssignLead(context.Background(), companyID, domain.AssignRoundRobin, nil)
	require.NoError(t, err)
	require.NotNil(t, picked)
	assert.Equal(t, veteran.ID, *picked, "stale load must not count against round-robin")

	balanced, err := svc.AssignLead(context.Background(), companyID, domain.AssignLoadBalanced, nil)
	require.NoError(t, err)
	require.NotNil(t, balanced)
	assert.Equal(t, rookie.ID, *balanced, "load-balanced counts all active leads")
}

func TestAssignLead_TerritoryRoute(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	india := seedRep(store, companyID, "india@crm.test")
	seedRep(store, companyID, "other@crm.test")

	territories := TerritoryMap{Territories: map[string]string{"india": "india@crm.test"}}
	svc := newService(store, territories)

	country := "India"
	owner, err := svc.AssignLead(context.Background(), companyID, domain.AssignTerritory, &country)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, india.ID, *owner)

	// pick stamps the territory owner
	assert.NotNil(t, store.Users[india.ID].LastAssignedAt)
}

func TestAssignLead_TerritoryFallsBackToRoundRobin(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	rep := seedRep(store, companyID, "only@crm.test")

	svc := newService(store, TerritoryMap{Territories: map[string]string{"india": "gone@crm.test"}})

	country := "Germany"
	owner, err := svc.AssignLead(context.Background(), companyID, domain.AssignTerritory, &country)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, rep.ID, *owner)

	// route exists but user left the company: also falls back
	country = "India"
	owner, err = svc.AssignLead(context.Background(), companyID, domain.AssignTerritory, &country)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, rep.ID, *owner)
}

func TestLoadTerritoryMap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "territories.yaml")
	content := "territories:\n  India: india@crm.test\n  \"United States\": us@crm.test\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := LoadTerritoryMap(path)
	require.NoError(t, err)
	assert.Equal(t, "india@crm.test", m.OwnerEmail("INDIA"))
	assert.Equal(t, "us@crm.test", m.OwnerEmail(" united states "))
	assert.Empty(t, m.OwnerEmail("brazil"))
}

func TestLoadTerritoryMap_MissingFileIsEmpty(t *testing.T) {
	m, err := LoadTerritoryMap(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Empty(t, m.OwnerEmail("india"))
}
