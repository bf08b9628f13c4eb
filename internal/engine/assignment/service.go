// Package assignment picks an owner for unassigned leads using the
// configured distribution rule.
package assignment

import (
	"context"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
)

// roundRobinWindow bounds the lead counts used by round-robin distribution.
const roundRobinWindow = 30 * 24 * time.Hour

// Service resolves lead ownership.
type Service struct {
	users       repository.UserDirectory
	roles       []domain.UserRole
	territories TerritoryMap
	clk         clock.Clock
	log         *logger.Logger
}

// New creates an assignment service. roles is the configured set of
// assignable user roles.
func New(users repository.UserDirectory, roles []domain.UserRole, territories TerritoryMap, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{users: users, roles: roles, territories: territories, clk: clk, log: log}
}

// AssignLead picks an owner under the given rule. Manual returns nil; so
// does an empty eligible pool, in which case the caller supplies its own
// fallback. A successful pick stamps the user's last-assignment time.
func (s *Service) AssignLead(ctx context.Context, companyID uuid.UUID, rule domain.AssignmentRule, country *string) (*uuid.UUID, error) {
	if !domain.ValidAssignmentRule(rule) {
		return nil, apperr.Newf(apperr.KindValidation, "unknown assignment rule %q", rule)
	}
	if rule == domain.AssignManual {
		return nil, nil
	}

	if rule == domain.AssignTerritory {
		if owner, err := s.territoryOwner(ctx, companyID, country); err != nil {
			return nil, err
		} else if owner != nil {
			return s.stamp(ctx, companyID, *owner)
		}
		// no route for this country: fall back to round-robin
		rule = domain.AssignRoundRobin
	}

	var since *time.Time
	if rule == domain.AssignRoundRobin {
		cutoff := s.clk.Now().Add(-roundRobinWindow)
		since = &cutoff
	}

	users, err := s.users.ListEligibleUsers(ctx, companyID, s.roles)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "listing eligible users", err).WithOp("assignment.AssignLead")
	}
	if len(users) == 0 {
		return nil, nil
	}

	counts, err := s.users.CountActiveLeadsByOwner(ctx, companyID, since)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "counting active leads", err).WithOp("assignment.AssignLead")
	}

	// users arrive ordered by oldest last assignment, so the first minimum
	// also wins the tie-break
	best := users[0]
	for _, u := range users[1:] {
		if counts[u.ID] < counts[best.ID] {
			best = u
		}
	}

	return s.stamp(ctx, companyID, best.ID)
}

// territoryOwner resolves the country route to an active user, or nil when
// the route is missing or stale.
func (s *Service) territoryOwner(ctx context.Context, companyID uuid.UUID, country *string) (*uuid.UUID, error) {
	if country == nil {
		return nil, nil
	}
	email := s.territories.OwnerEmail(*country)
	if email == "" {
		return nil, nil
	}

	user, err := s.users.FindUserByEmail(ctx, companyID, email)
	if err != nil {
		if err == repository.ErrNotFound {
			s.log.Warn("territory route points at unknown user", "country", *country, "email", email)
			return nil, nil
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, nil
	}
	return &user.ID, nil
}

func (s *Service) stamp(ctx context.Context, companyID, userID uuid.UUID) (*uuid.UUID, error) {
	if err := s.users.TouchLastAssigned(ctx, companyID, userID, s.clk.Now()); err != nil {
		return nil, err
	}
	s.log.AutomationEvent("lead_owner_picked", userID)
	return &userID, nil
}
