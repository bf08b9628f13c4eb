package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// User is a company member and a candidate for lead assignment.
type User struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	Name           string
	Email          string
	Role           domain.UserRole
	IsActive       bool
	LastAssignedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const userColumns = `id, company_id, name, email, role, is_active, last_assigned_at, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.CompanyID, &u.Name, &u.Email, &u.Role, &u.IsActive, &u.LastAssignedAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repository) GetUser(ctx context.Context, companyID, id uuid.UUID) (User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE id = $1 AND company_id = $2
	`, id, companyID)
	return scanUser(row)
}

func (r *Repository) FindUserByEmail(ctx context.Context, companyID uuid.UUID, email string) (User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE company_id = $1 AND lower(email) = lower($2)
	`, companyID, email)
	return scanUser(row)
}

// ListEligibleUsers returns active users whose role is in the configured
// assignable set, ordered for deterministic tie-breaking.
func (r *Repository) ListEligibleUsers(ctx context.Context, companyID uuid.UUID, roles []domain.UserRole) ([]User, error) {
	raw := make([]string, 0, len(roles))
	for _, role := range roles {
		raw = append(raw, string(role))
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE company_id = $1 AND is_active = true AND role = ANY($2)
		ORDER BY last_assigned_at ASC NULLS FIRST, created_at ASC
	`, companyID, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		err := rows.Scan(
			&u.ID, &u.CompanyID, &u.Name, &u.Email, &u.Role, &u.IsActive, &u.LastAssignedAt, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountActiveLeadsByOwner returns, per user, the number of still-active leads
// assigned to them. When assignedSince is set, only leads created after that
// moment are counted (round-robin's 30-day window); nil counts all active
// leads (load-balanced).
func (r *Repository) CountActiveLeadsByOwner(ctx context.Context, companyID uuid.UUID, assignedSince *time.Time) (map[uuid.UUID]int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT assigned_to, COUNT(*)
		FROM leads
		WHERE company_id = $1
		  AND assigned_to IS NOT NULL
		  AND status IN ('new', 'contacted', 'qualified')
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		GROUP BY assigned_to
	`, companyID, assignedSince)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var owner uuid.UUID
		var count int
		if err := rows.Scan(&owner, &count); err != nil {
			return nil, err
		}
		counts[owner] = count
	}
	return counts, rows.Err()
}

func (r *Repository) TouchLastAssigned(ctx context.Context, companyID, userID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE users SET last_assigned_at = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, userID, companyID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
