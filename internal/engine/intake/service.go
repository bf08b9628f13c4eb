// Package intake persists new leads and drives the automation that follows:
// duplicate marking, initial scoring, and owner assignment. The chain hangs
// off the lead.created event and is safe to rerun; every step checks state
// before writing.
package intake

import (
	"context"
	"strings"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/assignment"
	"github.com/ganeshchavan786/vega-crm/internal/engine/dedupe"
	"github.com/ganeshchavan786/vega-crm/internal/engine/identity"
	"github.com/ganeshchavan786/vega-crm/internal/engine/scoring"
	"github.com/ganeshchavan786/vega-crm/internal/events"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
)

// CreateParams carries the intake fields of a new lead.
type CreateParams struct {
	CompanyID       uuid.UUID
	FirstName       string
	LastName        string
	Email           *string
	Phone           *string
	CompanyName     *string
	Country         *string
	Source          *string
	Campaign        *string
	Medium          *string
	Term            *string
	BudgetRange     *string
	AuthorityLevel  *string
	InterestProduct *string
	Timeline        *string
	AssignedTo      *uuid.UUID
	// AssignmentRule picks the owner strategy when AssignedTo is empty.
	// Defaults to round_robin.
	AssignmentRule domain.AssignmentRule
}

// Store is the persistence surface intake needs.
type Store interface {
	repository.LeadReader
	repository.LeadWriter
}

// Service orchestrates lead intake.
type Service struct {
	store   Store
	bus     events.Bus
	dedupe  *dedupe.Service
	scoring *scoring.Service
	assign  *assignment.Service
	log     *logger.Logger
}

// New creates an intake service.
func New(store Store, bus events.Bus, dedupeSvc *dedupe.Service, scoringSvc *scoring.Service, assignSvc *assignment.Service, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, dedupe: dedupeSvc, scoring: scoringSvc, assign: assignSvc, log: log}
}

// Create persists the lead and publishes lead.created synchronously so the
// automation chain has run by the time the caller gets the lead back.
// Automation trouble never loses the created lead; it is logged and the
// next sweep or recompute repairs the derived state.
func (s *Service) Create(ctx context.Context, params CreateParams) (repository.Lead, error) {
	if strings.TrimSpace(params.FirstName) == "" && strings.TrimSpace(params.LastName) == "" {
		return repository.Lead{}, apperr.Validation("lead needs a first or last name")
	}

	rule := params.AssignmentRule
	if rule == "" {
		rule = domain.AssignRoundRobin
	}
	if !domain.ValidAssignmentRule(rule) {
		return repository.Lead{}, apperr.Newf(apperr.KindValidation, "unknown assignment rule %q", rule)
	}

	lead, err := s.store.CreateLead(ctx, repository.CreateLeadParams{
		CompanyID:       params.CompanyID,
		FirstName:       strings.TrimSpace(params.FirstName),
		LastName:        strings.TrimSpace(params.LastName),
		Email:           normalizedEmail(params.Email),
		Phone:           trimmed(params.Phone),
		CompanyName:     trimmed(params.CompanyName),
		Country:         trimmed(params.Country),
		Source:          trimmed(params.Source),
		Campaign:        trimmed(params.Campaign),
		Medium:          trimmed(params.Medium),
		Term:            trimmed(params.Term),
		BudgetRange:     trimmed(params.BudgetRange),
		AuthorityLevel:  trimmed(params.AuthorityLevel),
		InterestProduct: trimmed(params.InterestProduct),
		Timeline:        trimmed(params.Timeline),
		AssignedTo:      params.AssignedTo,
	})
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "creating lead", err).WithOp("intake.Create")
	}

	if err := s.bus.PublishSync(ctx, events.LeadCreated{
		BaseEvent:      events.NewBaseEvent(),
		CompanyID:      lead.CompanyID,
		LeadID:         lead.ID,
		AssignmentRule: rule,
	}); err != nil {
		s.log.Error("lead intake automation failed", "error", err, "leadId", lead.ID)
	}

	created, err := s.store.GetLead(ctx, params.CompanyID, lead.ID)
	if err != nil {
		return lead, nil
	}
	return created, nil
}

// Automate runs the post-creation chain for one lead: mark duplicates,
// recalculate the score, and assign an owner when none is set. Rerunning is
// harmless; assignment only fires for unowned leads and the other steps are
// idempotent.
func (s *Service) Automate(ctx context.Context, companyID, leadID uuid.UUID, rule domain.AssignmentRule) error {
	lead, err := s.store.GetLead(ctx, companyID, leadID)
	if err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("lead not found")
		}
		return err
	}

	verdict, err := s.dedupe.FindDuplicates(ctx, companyID, candidateFrom(lead), &lead.ID)
	switch {
	case err != nil:
		s.log.Error("intake duplicate check failed", "error", err, "leadId", leadID)
	case verdict.IsDuplicate && !lead.IsDuplicate:
		if err := s.store.MarkLeadDuplicate(ctx, companyID, leadID, true); err != nil {
			s.log.Error("marking duplicate failed", "error", err, "leadId", leadID)
		} else {
			s.log.AutomationEvent("lead_marked_duplicate", leadID, "confidence", verdict.Confidence, "reason", verdict.Reason)
		}
	}

	if _, err := s.scoring.Recalculate(ctx, companyID, leadID); err != nil {
		s.log.Error("intake scoring failed", "error", err, "leadId", leadID)
	}

	if lead.AssignedTo == nil && rule != domain.AssignManual {
		owner, err := s.assign.AssignLead(ctx, companyID, rule, lead.Country)
		if err != nil {
			s.log.Error("intake assignment failed", "error", err, "leadId", leadID)
		} else if owner != nil {
			if err := s.store.AssignLead(ctx, companyID, leadID, *owner); err != nil {
				s.log.Error("persisting assignment failed", "error", err, "leadId", leadID)
			}
		}
	}

	return nil
}

func candidateFrom(lead repository.Lead) dedupe.Candidate {
	var c dedupe.Candidate
	if lead.Email != nil {
		c.Email = *lead.Email
	}
	if lead.Phone != nil {
		c.Phone = *lead.Phone
	}
	if lead.CompanyName != nil {
		c.CompanyName = *lead.CompanyName
	}
	return c
}

func normalizedEmail(v *string) *string {
	if v == nil {
		return nil
	}
	normalized := identity.NormalizeEmail(*v)
	if normalized == "" {
		return nil
	}
	return &normalized
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
