package repository

import (
	"context"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"

	"github.com/google/uuid"
)

// =====================================
// Segregated Interfaces (Interface Segregation Principle)
// =====================================

// LeadReader provides read-only access to lead data.
type LeadReader interface {
	GetLead(ctx context.Context, companyID, id uuid.UUID) (Lead, error)
	GetLeadForUpdate(ctx context.Context, companyID, id uuid.UUID) (Lead, error)
	ListLeadsByStatus(ctx context.Context, companyID uuid.UUID, statuses []domain.LeadStatus) ([]Lead, error)
	ListDedupeCandidates(ctx context.Context, companyID uuid.UUID, excludeID *uuid.UUID) ([]Lead, error)
	ListLeadIDs(ctx context.Context, companyID uuid.UUID, afterID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// LeadWriter provides write operations for lead management.
type LeadWriter interface {
	CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error)
	UpdateLeadFields(ctx context.Context, companyID, id uuid.UUID, params UpdateLeadParams) (Lead, error)
	UpdateLeadStatus(ctx context.Context, companyID, id uuid.UUID, status domain.LeadStatus) error
	UpdateLeadScore(ctx context.Context, companyID, id uuid.UUID, score int) error
	IncrementLeadScore(ctx context.Context, companyID, id uuid.UUID, delta int) (int, error)
	AssignLead(ctx context.Context, companyID, id, userID uuid.UUID) error
	MarkLeadDuplicate(ctx context.Context, companyID, id uuid.UUID, isDuplicate bool) error
	MarkLeadConverted(ctx context.Context, companyID, id, accountID uuid.UUID, at time.Time) error
}

// AccountStore provides account persistence.
type AccountStore interface {
	GetAccount(ctx context.Context, companyID, id uuid.UUID) (Account, error)
	FindAccountByName(ctx context.Context, companyID uuid.UUID, normalizedName string) (Account, error)
	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	UpdateAccountDerived(ctx context.Context, companyID, id uuid.UUID, health domain.HealthScore, stage domain.LifecycleStage) error
	ListAccountIDs(ctx context.Context, companyID uuid.UUID, afterID uuid.UUID, limit int) ([]uuid.UUID, error)
}

// ContactStore provides contact persistence.
type ContactStore interface {
	CreateContact(ctx context.Context, params CreateContactParams) (Contact, error)
	AccountHasPrimaryContact(ctx context.Context, companyID, accountID uuid.UUID) (bool, error)
	ClearPrimaryContact(ctx context.Context, companyID, accountID uuid.UUID) error
	SetPrimaryContact(ctx context.Context, companyID, accountID, contactID uuid.UUID) error
}

// DealStore provides deal persistence.
type DealStore interface {
	CreateDeal(ctx context.Context, params CreateDealParams) (Deal, error)
	ListDealsByAccount(ctx context.Context, companyID, accountID uuid.UUID) ([]Deal, error)
	ListDealsByLead(ctx context.Context, companyID, leadID uuid.UUID) ([]Deal, error)
}

// TaskStore provides task persistence for nurturing automation.
type TaskStore interface {
	CreateTask(ctx context.Context, params CreateTaskParams) (Task, error)
	ListOpenAutomationTasks(ctx context.Context, companyID, leadID uuid.UUID, kind string) ([]Task, error)
	ListOverdueTasks(ctx context.Context, companyID uuid.UUID, before time.Time) ([]Task, error)
	EscalateTask(ctx context.Context, companyID, id uuid.UUID, priority domain.TaskPriority) error
}

// ActivityStore provides the immutable activity log.
type ActivityStore interface {
	InsertActivity(ctx context.Context, params InsertActivityParams) (Activity, error)
	ListLeadActivities(ctx context.Context, companyID, leadID uuid.UUID, since time.Time) ([]Activity, error)
	ListAccountActivities(ctx context.Context, companyID, accountID uuid.UUID, since time.Time) ([]Activity, error)
}

// UserDirectory provides assignment-related access to users.
type UserDirectory interface {
	GetUser(ctx context.Context, companyID, id uuid.UUID) (User, error)
	FindUserByEmail(ctx context.Context, companyID uuid.UUID, email string) (User, error)
	ListEligibleUsers(ctx context.Context, companyID uuid.UUID, roles []domain.UserRole) ([]User, error)
	CountActiveLeadsByOwner(ctx context.Context, companyID uuid.UUID, assignedSince *time.Time) (map[uuid.UUID]int, error)
	TouchLastAssigned(ctx context.Context, companyID, userID uuid.UUID, at time.Time) error
}

// Store is the complete persistence contract consumed by the engine.
// Composed of smaller, focused interfaces for better testability.
type Store interface {
	LeadReader
	LeadWriter
	AccountStore
	ContactStore
	DealStore
	TaskStore
	ActivityStore
	UserDirectory

	// WithTx runs fn inside a single transaction; all Store calls made through
	// the passed store share that transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Ensure Repository implements Store.
var _ Store = (*Repository)(nil)
