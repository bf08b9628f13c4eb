package intake

import (
	"context"
	"testing"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/assignment"
	"github.com/ganeshchavan786/vega-crm/internal/engine/dedupe"
	"github.com/ganeshchavan786/vega-crm/internal/engine/enginetest"
	"github.com/ganeshchavan786/vega-crm/internal/engine/scoring"
	"github.com/ganeshchavan786/vega-crm/internal/events"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func strptr(s string) *string { return &s }

// newService wires the intake chain to a real in-process bus, the same way
// the engine module does at startup.
func newService(store *enginetest.Store) *Service {
	log := logger.NewNop()
	clk := clock.Fixed(testNow)
	bus := events.NewInMemoryBus(log)

	svc := New(
		store,
		bus,
		dedupe.New(store, clk, log),
		scoring.New(store, clk, log),
		assignment.New(store, []domain.UserRole{domain.RoleSalesRep, domain.RoleManager}, assignment.TerritoryMap{}, clk, log),
		log,
	)
	bus.Subscribe(events.LeadCreated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e := event.(events.LeadCreated)
		return svc.Automate(ctx, e.CompanyID, e.LeadID, e.AssignmentRule)
	}))
	return svc
}

func TestCreate_NormalizesScoresAndAssigns(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	rep := store.SeedUser(repository.User{
		CompanyID: companyID,
		Name:      "Priya",
		Email:     "priya@crm.test",
		Role:      domain.RoleSalesRep,
		IsActive:  true,
	})

	svc := newService(store)
	lead, err := svc.Create(context.Background(), CreateParams{
		CompanyID:   companyID,
		FirstName:   "  John ",
		LastName:    "Doe",
		Email:       strptr("  John.Doe@ACME.com "),
		Phone:       strptr("9876543210"),
		CompanyName: strptr("Acme Technologies "),
		Source:      strptr("referral"),
		BudgetRange: strptr("5-7 lakh"),
	})
	require.NoError(t, err)

	assert.Equal(t, "John", lead.FirstName)
	require.NotNil(t, lead.Email)
	assert.Equal(t, "john.doe@acme.com", *lead.Email)
	require.NotNil(t, lead.CompanyName)
	assert.Equal(t, "Acme Technologies", *lead.CompanyName)

	assert.False(t, lead.IsDuplicate)
	assert.Greater(t, lead.LeadScore, 0, "intake scoring ran")
	require.NotNil(t, lead.AssignedTo)
	assert.Equal(t, rep.ID, *lead.AssignedTo)
}

func TestCreate_MarksDuplicateOnTwoSignals(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	store.SeedLead(repository.Lead{
		CompanyID: companyID,
		FirstName: "Jane",
		Email:     strptr("jane@acme.com"),
		Phone:     strptr("+91 98765 43210"),
		Status:    domain.LeadStatusContacted,
	})

	svc := newService(store)
	lead, err := svc.Create(context.Background(), CreateParams{
		CompanyID: companyID,
		FirstName: "Jane",
		Email:     strptr("JANE@acme.com"),
		Phone:     strptr("9876543210"),
	})
	require.NoError(t, err)
	assert.True(t, lead.IsDuplicate, "email plus phone corroborate")
}

func TestCreate_RejectsNamelessLead(t *testing.T) {
	svc := newService(enginetest.New())
	_, err := svc.Create(context.Background(), CreateParams{CompanyID: uuid.New(), Email: strptr("x@y.test")})
	require.Error(t, err)
}

func TestCreate_RejectsUnknownRule(t *testing.T) {
	svc := newService(enginetest.New())
	_, err := svc.Create(context.Background(), CreateParams{
		CompanyID:      uuid.New(),
		FirstName:      "A",
		AssignmentRule: domain.AssignmentRule("alphabetical"),
	})
	require.Error(t, err)
}

func TestAutomate_RerunDoesNotReassign(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	store.SeedUser(repository.User{CompanyID: companyID, Email: "a@crm.test", Role: domain.RoleSalesRep, IsActive: true})
	store.SeedUser(repository.User{CompanyID: companyID, Email: "b@crm.test", Role: domain.RoleSalesRep, IsActive: true})

	svc := newService(store)
	lead, err := svc.Create(context.Background(), CreateParams{CompanyID: companyID, FirstName: "Sam"})
	require.NoError(t, err)
	require.NotNil(t, lead.AssignedTo)
	owner := *lead.AssignedTo

	require.NoError(t, svc.Automate(context.Background(), companyID, lead.ID, domain.AssignRoundRobin))
	after, err := store.GetLead(context.Background(), companyID, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, after.AssignedTo)
	assert.Equal(t, owner, *after.AssignedTo, "owned leads are never rotated to another rep")
}

func TestAutomate_ManualRuleLeavesLeadUnowned(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	store.SeedUser(repository.User{CompanyID: companyID, Email: "a@crm.test", Role: domain.RoleSalesRep, IsActive: true})

	svc := newService(store)
	lead, err := svc.Create(context.Background(), CreateParams{
		CompanyID:      companyID,
		FirstName:      "Sam",
		AssignmentRule: domain.AssignManual,
	})
	require.NoError(t, err)
	assert.Nil(t, lead.AssignedTo)
}
