// Package events defines the domain events exchanged between modules and
// re-exports the platform event bus types so modules only import one package.
package events

import (
	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/platform/events"

	"github.com/google/uuid"
)

// Re-export platform event infrastructure.
type (
	Event       = events.Event
	BaseEvent   = events.BaseEvent
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	InMemoryBus = events.InMemoryBus
)

// NewBaseEvent creates a base event stamped with the current time.
var NewBaseEvent = events.NewBaseEvent

// NewInMemoryBus creates a process-local event bus.
var NewInMemoryBus = events.NewInMemoryBus

// LeadCreated fires after a lead row is persisted. Subscribers run the
// intake automation chain (dedupe mark, scoring, assignment).
type LeadCreated struct {
	BaseEvent
	CompanyID      uuid.UUID
	LeadID         uuid.UUID
	AssignmentRule domain.AssignmentRule
}

// EventName returns the unique event identifier.
func (LeadCreated) EventName() string { return "lead.created" }

// ActivityLogged fires after an activity row lands in the immutable log.
type ActivityLogged struct {
	BaseEvent
	CompanyID    uuid.UUID
	ActivityID   uuid.UUID
	ActivityType domain.ActivityType
	LeadID       *uuid.UUID
	AccountID    *uuid.UUID
	DealID       *uuid.UUID
}

// EventName returns the unique event identifier.
func (ActivityLogged) EventName() string { return "activity.logged" }

// DealUpdated fires when a deal changes stage or status. Account health and
// lifecycle stage both read from deals, so subscribers refresh the account.
type DealUpdated struct {
	BaseEvent
	CompanyID uuid.UUID
	AccountID uuid.UUID
	DealID    uuid.UUID
}

// EventName returns the unique event identifier.
func (DealUpdated) EventName() string { return "deal.updated" }
