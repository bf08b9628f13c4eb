// Package engine wires the lead and account automation services into one
// module: construction, event subscriptions, and HTTP route registration.
package engine

import (
	"context"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/assignment"
	"github.com/ganeshchavan786/vega-crm/internal/engine/batch"
	"github.com/ganeshchavan786/vega-crm/internal/engine/conversion"
	"github.com/ganeshchavan786/vega-crm/internal/engine/dedupe"
	"github.com/ganeshchavan786/vega-crm/internal/engine/handler"
	"github.com/ganeshchavan786/vega-crm/internal/engine/health"
	"github.com/ganeshchavan786/vega-crm/internal/engine/intake"
	"github.com/ganeshchavan786/vega-crm/internal/engine/nurturing"
	"github.com/ganeshchavan786/vega-crm/internal/engine/qualification"
	"github.com/ganeshchavan786/vega-crm/internal/engine/scoring"
	"github.com/ganeshchavan786/vega-crm/internal/events"
	apphttp "github.com/ganeshchavan786/vega-crm/internal/http"
	"github.com/ganeshchavan786/vega-crm/internal/notification"
	"github.com/ganeshchavan786/vega-crm/internal/scheduler"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/config"
	"github.com/ganeshchavan786/vega-crm/platform/logger"
	"github.com/ganeshchavan786/vega-crm/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the slice of application configuration the engine needs.
type Config interface {
	config.AssignmentConfig
	config.BatchConfig
}

// Module bundles the automation services behind one HTTP-facing unit.
type Module struct {
	store *repository.Repository

	intake        *intake.Service
	dedupe        *dedupe.Service
	scoring       *scoring.Service
	qualification *qualification.Service
	health        *health.Service
	assignment    *assignment.Service
	conversion    *conversion.Service
	nurturing     *nurturing.Service
	batch         *batch.Service

	handler *handler.Handler
	log     *logger.Logger
}

// NewModule constructs the engine with all services sharing one repository
// and wall clock, and subscribes the automation chain to the event bus.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, notifier notification.Notifier, jobs scheduler.Enqueuer, val *validator.Validator, cfg Config, log *logger.Logger) (*Module, error) {
	store := repository.New(pool)
	clk := clock.System()

	territories, err := assignment.LoadTerritoryMap(cfg.GetTerritoryMapPath())
	if err != nil {
		return nil, err
	}

	if notifier == nil {
		notifier = notification.Noop{}
	}

	m := &Module{
		store: store,
		log:   log,
	}
	m.dedupe = dedupe.New(store, clk, log)
	m.scoring = scoring.New(store, clk, log)
	m.qualification = qualification.New(store, clk, log)
	m.health = health.New(store, clk, log)
	m.assignment = assignment.New(store, assignableRoles(cfg.GetAssignableRoles()), territories, clk, log)
	m.conversion = conversion.New(store, clk, log)
	m.nurturing = nurturing.New(store, notifier, clk, log)
	m.batch = batch.New(store, clk, log)
	m.intake = intake.New(store, eventBus, m.dedupe, m.scoring, m.assignment, log)

	m.handler = handler.New(m.intake, m.dedupe, m.scoring, m.qualification, m.health, m.conversion, m.nurturing, m.batch, jobs, cfg, val)

	m.subscribe(eventBus)
	return m, nil
}

// Name identifies the module in logs.
func (m *Module) Name() string { return "engine" }

// RegisterRoutes mounts the engine's routes on the shared router groups.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterLeadRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterAccountRoutes(ctx.Protected.Group("/accounts"))
	m.handler.RegisterAdminRoutes(ctx.Admin)
}

// Nurturing exposes the sweep service for the worker binary.
func (m *Module) Nurturing() *nurturing.Service { return m.nurturing }

// Batch exposes the recompute service for the worker and CLI binaries.
func (m *Module) Batch() *batch.Service { return m.batch }

// subscribe wires the engine's reactions to domain events. Handlers run on
// the bus's goroutines; each one is safe to rerun.
func (m *Module) subscribe(bus events.Bus) {
	bus.Subscribe(events.LeadCreated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadCreated)
		if !ok {
			return nil
		}
		return m.intake.Automate(ctx, e.CompanyID, e.LeadID, e.AssignmentRule)
	}))

	bus.Subscribe(events.ActivityLogged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.ActivityLogged)
		if !ok || e.AccountID == nil {
			return nil
		}
		_, _, err := m.health.Refresh(ctx, e.CompanyID, *e.AccountID)
		return err
	}))

	bus.Subscribe(events.DealUpdated{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.DealUpdated)
		if !ok {
			return nil
		}
		_, _, err := m.health.Refresh(ctx, e.CompanyID, e.AccountID)
		return err
	}))
}

// assignableRoles filters the configured role names down to known roles.
func assignableRoles(names []string) []domain.UserRole {
	roles := make([]domain.UserRole, 0, len(names))
	for _, name := range names {
		switch role := domain.UserRole(name); role {
		case domain.RoleAdmin, domain.RoleManager, domain.RoleSalesRep, domain.RoleSupport:
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		roles = []domain.UserRole{domain.RoleSalesRep}
	}
	return roles
}

var _ apphttp.Module = (*Module)(nil)
