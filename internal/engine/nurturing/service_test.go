package nurturing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/enginetest"
	"github.com/ganeshchavan786/vega-crm/internal/notification"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type capturingNotifier struct {
	sent []notification.Message
	fail error
}

func (c *capturingNotifier) Notify(ctx context.Context, msg notification.Message) error {
	if c.fail != nil {
		return c.fail
	}
	c.sent = append(c.sent, msg)
	return nil
}

func newService(store *enginetest.Store, notifier notification.Notifier) *Service {
	if notifier == nil {
		notifier = notification.Noop{}
	}
	return New(store, notifier, clock.Fixed(testNow), logger.NewNop())
}

func untouchedLead(companyID uuid.UUID, age time.Duration, score int) repository.Lead {
	return repository.Lead{
		CompanyID: companyID,
		FirstName: "Silent",
		LastName:  "Lead",
		Email:     strptr("silent@lead.test"),
		Phone:     strptr("9876543210"),
		Status:    domain.LeadStatusNew,
		LeadScore: score,
		CreatedAt: testNow.Add(-age),
		UpdatedAt: testNow.Add(-age),
	}
}

func strptr(s string) *string { return &s }

func TestSweepCompany_CreatesFollowUpForUntouchedNewLead(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	stale := store.SeedLead(untouchedLead(companyID, 3*24*time.Hour, 75))
	store.SeedLead(untouchedLead(companyID, 12*time.Hour, 50)) // within grace period

	svc := newService(store, nil)
	report, err := svc.SweepCompany(context.Background(), companyID, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FollowUpsCreated)
	require.Len(t, store.Tasks, 1)
	for _, task := range store.Tasks {
		assert.Equal(t, stale.ID, *task.LeadID)
		assert.Equal(t, domain.PriorityHigh, task.Priority, "hot lead gets high priority")
		require.NotNil(t, task.DueDate)
		assert.Equal(t, testNow.Add(24*time.Hour), *task.DueDate)
		require.NotNil(t, task.AutomationKind)
		assert.Equal(t, KindFollowUp, *task.AutomationKind)
	}
}

func TestSweepCompany_IsIdempotent(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	store.SeedLead(untouchedLead(companyID, 3*24*time.Hour, 50))

	svc := newService(store, nil)
	first, err := svc.SweepCompany(context.Background(), companyID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, first.FollowUpsCreated)

	second, err := svc.SweepCompany(context.Background(), companyID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FollowUpsCreated, "open follow-up already exists")
	assert.Len(t, store.Tasks, 1)
}

func TestSweepCompany_EscalatesLongOverdueTasks(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	owner := store.SeedUser(repository.User{
		CompanyID: companyID,
		Name:      "Rahul",
		Email:     "rahul@crm.test",
		Role:      domain.RoleSalesRep,
		IsActive:  true,
	})

	longOverdue := testNow.Add(-5 * 24 * time.Hour)
	barelyOverdue := testNow.Add(-24 * time.Hour)
	store.SeedTask(repository.Task{
		CompanyID:  companyID,
		Title:      "Call back Acme",
		Priority:   domain.PriorityMedium,
		DueDate:    &longOverdue,
		AssignedTo: &owner.ID,
	})
	store.SeedTask(repository.Task{
		CompanyID: companyID,
		Title:     "Send proposal",
		Priority:  domain.PriorityMedium,
		DueDate:   &barelyOverdue,
	})

	notifier := &capturingNotifier{}
	svc := newService(store, notifier)
	report, err := svc.SweepCompany(context.Background(), companyID, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.TasksEscalated, "only tasks overdue beyond three days escalate")
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, "rahul@crm.test", notifier.sent[0].To)
	assert.Contains(t, notifier.sent[0].Subject, "Call back Acme")

	urgent := 0
	for _, task := range store.Tasks {
		if task.Priority == domain.PriorityUrgent {
			urgent++
		}
	}
	assert.Equal(t, 1, urgent)
}

func TestSweepCompany_NotificationFailureIsSwallowed(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	owner := store.SeedUser(repository.User{CompanyID: companyID, Email: "x@y.test", Role: domain.RoleSalesRep, IsActive: true})
	due := testNow.Add(-10 * 24 * time.Hour)
	store.SeedTask(repository.Task{
		CompanyID:  companyID,
		Title:      "Neglected",
		Priority:   domain.PriorityLow,
		DueDate:    &due,
		AssignedTo: &owner.ID,
	})

	svc := newService(store, &capturingNotifier{fail: errors.New("smtp down")})
	report, err := svc.SweepCompany(context.Background(), companyID, false)
	require.NoError(t, err, "notification failure must not fail the sweep")
	assert.Equal(t, 1, report.TasksEscalated)
}

func TestSweepCompany_DeprioritizesCriticalRiskLeads(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	// stale, empty lead: zero BANT, zero engagement, weak data, old
	ghost := store.SeedLead(repository.Lead{
		CompanyID: companyID,
		FirstName: "Ghost",
		Status:    domain.LeadStatusContacted,
		CreatedAt: testNow.Add(-60 * 24 * time.Hour),
		UpdatedAt: testNow.Add(-60 * 24 * time.Hour),
	})

	svc := newService(store, nil)
	report, err := svc.SweepCompany(context.Background(), companyID, false)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Deprioritized)
	found := false
	for _, task := range store.Tasks {
		if task.AutomationKind != nil && *task.AutomationKind == KindDeprioritize {
			found = true
			assert.Equal(t, ghost.ID, *task.LeadID)
			assert.Equal(t, domain.PriorityLow, task.Priority)
		}
	}
	assert.True(t, found)

	// second sweep does not duplicate the review task
	again, err := svc.SweepCompany(context.Background(), companyID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Deprioritized)
}

func TestSweepCompany_DryRunCountsWithoutWriting(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	store.SeedLead(untouchedLead(companyID, 3*24*time.Hour, 50))
	due := testNow.Add(-5 * 24 * time.Hour)
	store.SeedTask(repository.Task{
		CompanyID: companyID,
		Title:     "Call back Acme",
		Priority:  domain.PriorityMedium,
		DueDate:   &due,
	})

	notifier := &capturingNotifier{}
	svc := newService(store, notifier)
	report, err := svc.SweepCompany(context.Background(), companyID, true)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 1, report.FollowUpsCreated)
	assert.Equal(t, 1, report.TasksEscalated)
	assert.Len(t, store.Tasks, 1, "dry run must not create tasks")
	assert.Empty(t, notifier.sent)
	for _, task := range store.Tasks {
		assert.Equal(t, domain.PriorityMedium, task.Priority, "dry run must not escalate")
	}
}

func TestSweepCompany_SkipsDuplicateLeads(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := untouchedLead(companyID, 5*24*time.Hour, 30)
	lead.IsDuplicate = true
	store.SeedLead(lead)

	svc := newService(store, nil)
	report, err := svc.SweepCompany(context.Background(), companyID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, report.FollowUpsCreated)
	assert.Empty(t, store.Tasks)
}
