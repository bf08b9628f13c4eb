package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Account is the customer entity whose health and lifecycle stage are derived
// state, recomputed by the engine on every related mutation.
type Account struct {
	ID             uuid.UUID
	CompanyID      uuid.UUID
	Name           string
	NormalizedName string
	Industry       *string
	Country        *string
	HealthScore    domain.HealthScore
	LifecycleStage domain.LifecycleStage
	IsActive       bool
	OwnerID        *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const accountColumns = `id, company_id, name, normalized_name, industry, country,
	health_score, lifecycle_stage, is_active, owner_id, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(
		&a.ID, &a.CompanyID, &a.Name, &a.NormalizedName, &a.Industry, &a.Country,
		&a.HealthScore, &a.LifecycleStage, &a.IsActive, &a.OwnerID, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

// CreateAccountParams carries the writable account fields.
type CreateAccountParams struct {
	CompanyID      uuid.UUID
	Name           string
	NormalizedName string
	Industry       *string
	Country        *string
	OwnerID        *uuid.UUID
}

func (r *Repository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO accounts (company_id, name, normalized_name, industry, country, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+accountColumns,
		params.CompanyID, params.Name, params.NormalizedName, params.Industry, params.Country, params.OwnerID,
	)
	return scanAccount(row)
}

func (r *Repository) GetAccount(ctx context.Context, companyID, id uuid.UUID) (Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE id = $1 AND company_id = $2
	`, id, companyID)
	return scanAccount(row)
}

// FindAccountByName resolves an account by its normalized name. Used by the
// conversion orchestrator to reuse existing accounts instead of creating
// duplicates.
func (r *Repository) FindAccountByName(ctx context.Context, companyID uuid.UUID, normalizedName string) (Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE company_id = $1 AND normalized_name = $2
		ORDER BY created_at ASC
		LIMIT 1
	`, companyID, normalizedName)
	return scanAccount(row)
}

func (r *Repository) UpdateAccountDerived(ctx context.Context, companyID, id uuid.UUID, health domain.HealthScore, stage domain.LifecycleStage) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE accounts SET health_score = $3, lifecycle_stage = $4, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, id, companyID, health, stage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAccountIDs pages account IDs in stable order for chunked batch jobs.
func (r *Repository) ListAccountIDs(ctx context.Context, companyID uuid.UUID, afterID uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM accounts
		WHERE company_id = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3
	`, companyID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0, limit)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
