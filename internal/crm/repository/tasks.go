package repository

import (
	"context"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Task is a follow-up work item linked to a lead, account, or deal.
// AutomationKind marks tasks created by the nurturing engine so sweeps can
// stay idempotent (one open automation task per lead per kind).
type Task struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	LeadID         *uuid.UUID
	AccountID      *uuid.UUID
	DealID         *uuid.UUID
	Title          string
	Description    string
	Status         domain.TaskStatus
	Priority       domain.TaskPriority
	DueDate        *time.Time
	AssignedTo     *uuid.UUID
	AutomationKind *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const taskColumns = `id, company_id, lead_id, account_id, deal_id, title, description,
	status, priority, due_date, assigned_to, automation_kind, created_at, updated_at`

// CreateTaskParams carries the writable task fields.
type CreateTaskParams struct {
	CompanyID      uuid.UUID
	LeadID         *uuid.UUID
	AccountID      *uuid.UUID
	DealID         *uuid.UUID
	Title          string
	Description    string
	Priority       domain.TaskPriority
	DueDate        *time.Time
	AssignedTo     *uuid.UUID
	AutomationKind *string
}

func (r *Repository) CreateTask(ctx context.Context, params CreateTaskParams) (Task, error) {
	var t Task
	err := r.db.QueryRow(ctx, `
		INSERT INTO tasks (company_id, lead_id, account_id, deal_id, title, description, priority, due_date, assigned_to, automation_kind)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+taskColumns,
		params.CompanyID, params.LeadID, params.AccountID, params.DealID, params.Title, params.Description,
		params.Priority, params.DueDate, params.AssignedTo, params.AutomationKind,
	).Scan(
		&t.ID, &t.CompanyID, &t.LeadID, &t.AccountID, &t.DealID, &t.Title, &t.Description,
		&t.Status, &t.Priority, &t.DueDate, &t.AssignedTo, &t.AutomationKind, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

// ListOpenAutomationTasks returns still-open tasks the nurturing engine
// created for a lead with the given kind.
func (r *Repository) ListOpenAutomationTasks(ctx context.Context, companyID, leadID uuid.UUID, kind string) ([]Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE company_id = $1 AND lead_id = $2 AND automation_kind = $3
		  AND status IN ('pending', 'in_progress')
		ORDER BY created_at ASC
	`, companyID, leadID, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListOverdueTasks returns open tasks whose due date passed before the cutoff.
func (r *Repository) ListOverdueTasks(ctx context.Context, companyID uuid.UUID, before time.Time) ([]Task, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE company_id = $1
		  AND status IN ('pending', 'in_progress')
		  AND due_date IS NOT NULL AND due_date < $2
		ORDER BY due_date ASC
	`, companyID, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

func (r *Repository) EscalateTask(ctx context.Context, companyID, id uuid.UUID, priority domain.TaskPriority) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE tasks SET priority = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, id, companyID, priority)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	tasks := make([]Task, 0)
	for rows.Next() {
		var t Task
		err := rows.Scan(
			&t.ID, &t.CompanyID, &t.LeadID, &t.AccountID, &t.DealID, &t.Title, &t.Description,
			&t.Status, &t.Priority, &t.DueDate, &t.AssignedTo, &t.AutomationKind, &t.CreatedAt, &t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
