// Package nurturing schedules follow-up work for neglected leads and
// escalates tasks nobody acted on. Sweeps are idempotent: a lead with an
// open automation task of a given kind is never given another.
package nurturing

import (
	"context"
	"fmt"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/qualification"
	"github.com/ganeshchavan786/vega-crm/internal/notification"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
)

// Automation task kinds stamped on created tasks.
const (
	KindFollowUp     = "follow_up"
	KindDeprioritize = "deprioritize"
)

const (
	// untouchedAge is how long a new lead may sit before a follow-up task.
	untouchedAge = 2 * 24 * time.Hour
	// escalationAge is how far past due a task may be before escalation.
	escalationAge = 3 * 24 * time.Hour
	// followUpDue is the due horizon of a created follow-up task.
	followUpDue = 24 * time.Hour

	riskLookback = 30 * 24 * time.Hour
)

// SweepReport summarizes one nurturing pass over a company.
type SweepReport struct {
	LeadsSeen        int  `json:"leadsSeen"`
	FollowUpsCreated int  `json:"followUpsCreated"`
	TasksEscalated   int  `json:"tasksEscalated"`
	Deprioritized    int  `json:"deprioritized"`
	Failures         int  `json:"failures"`
	DryRun           bool `json:"dryRun"`
}

// Store is the persistence surface the sweep needs.
type Store interface {
	repository.LeadReader
	repository.TaskStore
	repository.ActivityStore
	repository.UserDirectory
}

// Service runs nurturing sweeps.
type Service struct {
	store    Store
	notifier notification.Notifier
	clk      clock.Clock
	log      *logger.Logger
}

// New creates a nurturing service.
func New(store Store, notifier notification.Notifier, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{store: store, notifier: notifier, clk: clk, log: log}
}

// SweepCompany runs all three nurturing passes for one company. Per-lead
// failures are counted and logged, never aborting the sweep; the sweep is
// safe to run concurrently with live traffic. With dryRun set, the report
// counts what the sweep would do without creating, escalating, or notifying.
func (s *Service) SweepCompany(ctx context.Context, companyID uuid.UUID, dryRun bool) (SweepReport, error) {
	now := s.clk.Now()
	report := SweepReport{DryRun: dryRun}

	leads, err := s.store.ListLeadsByStatus(ctx, companyID, domain.ActiveLeadStatuses)
	if err != nil {
		return report, apperr.Wrap(apperr.KindInternal, "listing active leads", err).WithOp("nurturing.SweepCompany")
	}
	report.LeadsSeen = len(leads)

	for _, lead := range leads {
		if lead.IsDuplicate {
			continue
		}
		if err := s.followUp(ctx, lead, now, dryRun, &report); err != nil {
			report.Failures++
			s.log.Error("follow-up pass failed", "error", err, "leadId", lead.ID)
		}
		if err := s.deprioritize(ctx, lead, now, dryRun, &report); err != nil {
			report.Failures++
			s.log.Error("deprioritization pass failed", "error", err, "leadId", lead.ID)
		}
	}

	if err := s.escalateOverdue(ctx, companyID, now, dryRun, &report); err != nil {
		return report, err
	}

	s.log.WithCompany(companyID).Info("nurture sweep finished",
		"leads", report.LeadsSeen,
		"followUps", report.FollowUpsCreated,
		"escalated", report.TasksEscalated,
		"deprioritized", report.Deprioritized,
		"failures", report.Failures,
	)
	return report, nil
}

// followUp creates a follow-up task for a new lead nobody touched within
// the grace period.
func (s *Service) followUp(ctx context.Context, lead repository.Lead, now time.Time, dryRun bool, report *SweepReport) error {
	if lead.Status != domain.LeadStatusNew {
		return nil
	}
	if now.Sub(lead.CreatedAt) <= untouchedAge {
		return nil
	}

	open, err := s.store.ListOpenAutomationTasks(ctx, lead.CompanyID, lead.ID, KindFollowUp)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return nil
	}
	if dryRun {
		report.FollowUpsCreated++
		return nil
	}

	due := now.Add(followUpDue)
	kind := KindFollowUp
	_, err = s.store.CreateTask(ctx, repository.CreateTaskParams{
		CompanyID:      lead.CompanyID,
		LeadID:         &lead.ID,
		Title:          fmt.Sprintf("Follow up with %s", lead.FullName()),
		Description:    "No one has contacted this lead since it arrived.",
		Priority:       followUpPriority(lead.LeadScore),
		DueDate:        &due,
		AssignedTo:     lead.AssignedTo,
		AutomationKind: &kind,
	})
	if err != nil {
		return err
	}
	report.FollowUpsCreated++
	return nil
}

// followUpPriority mirrors the lead score: hot leads get urgent attention.
func followUpPriority(score int) domain.TaskPriority {
	switch {
	case score >= 70:
		return domain.PriorityHigh
	case score >= 40:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// deprioritize flags critical-risk leads with a low-priority review task so
// reps stop spending time on them.
func (s *Service) deprioritize(ctx context.Context, lead repository.Lead, now time.Time, dryRun bool, report *SweepReport) error {
	activities, err := s.store.ListLeadActivities(ctx, lead.CompanyID, lead.ID, now.Add(-riskLookback))
	if err != nil {
		return err
	}

	risk := qualification.RiskScore(lead, activities, now)
	if risk.Level != domain.RiskCritical {
		return nil
	}

	open, err := s.store.ListOpenAutomationTasks(ctx, lead.CompanyID, lead.ID, KindDeprioritize)
	if err != nil {
		return err
	}
	if len(open) > 0 {
		return nil
	}
	if dryRun {
		report.Deprioritized++
		return nil
	}

	kind := KindDeprioritize
	_, err = s.store.CreateTask(ctx, repository.CreateTaskParams{
		CompanyID:      lead.CompanyID,
		LeadID:         &lead.ID,
		Title:          fmt.Sprintf("Review stalled lead %s", lead.FullName()),
		Description:    fmt.Sprintf("Risk score %d (critical). Consider disqualifying or re-engaging.", risk.Score),
		Priority:       domain.PriorityLow,
		AssignedTo:     lead.AssignedTo,
		AutomationKind: &kind,
	})
	if err != nil {
		return err
	}
	report.Deprioritized++
	return nil
}

// escalateOverdue raises long-overdue open tasks to urgent and pings the
// owner. Notification failures are swallowed; the escalation already stuck.
func (s *Service) escalateOverdue(ctx context.Context, companyID uuid.UUID, now time.Time, dryRun bool, report *SweepReport) error {
	overdue, err := s.store.ListOverdueTasks(ctx, companyID, now.Add(-escalationAge))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "listing overdue tasks", err).WithOp("nurturing.SweepCompany")
	}

	for _, task := range overdue {
		if task.Priority == domain.PriorityUrgent {
			continue
		}
		if dryRun {
			report.TasksEscalated++
			continue
		}
		if err := s.store.EscalateTask(ctx, companyID, task.ID, domain.PriorityUrgent); err != nil {
			report.Failures++
			s.log.Error("task escalation failed", "error", err, "taskId", task.ID)
			continue
		}
		report.TasksEscalated++
		s.notifyOwner(ctx, companyID, task)
	}
	return nil
}

func (s *Service) notifyOwner(ctx context.Context, companyID uuid.UUID, task repository.Task) {
	if task.AssignedTo == nil {
		return
	}
	owner, err := s.store.GetUser(ctx, companyID, *task.AssignedTo)
	if err != nil {
		s.log.Error("escalation owner lookup failed", "error", err, "taskId", task.ID)
		return
	}

	err = s.notifier.Notify(ctx, notification.Message{
		To:      owner.Email,
		Subject: fmt.Sprintf("Task escalated: %s", task.Title),
		Body:    fmt.Sprintf("The task %q is more than three days overdue and has been raised to urgent.", task.Title),
	})
	if err != nil {
		s.log.Error("escalation notification failed", "error", err, "taskId", task.ID)
	}
}
