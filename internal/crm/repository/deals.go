package repository

import (
	"context"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Deal belongs to an account and optionally to the lead it was converted from.
type Deal struct {
	ID                uuid.UUID
	CompanyID         uuid.UUID
	AccountID         uuid.UUID
	LeadID            *uuid.UUID
	Title             string
	Stage             domain.DealStage
	Status            domain.DealStatus
	Value             float64
	ExpectedCloseDate *time.Time
	OwnerID           *uuid.UUID
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

const dealColumns = `id, company_id, account_id, lead_id, title, stage, status, deal_value,
	expected_close_date, owner_id, created_at, updated_at`

// CreateDealParams carries the writable deal fields.
type CreateDealParams struct {
	CompanyID         uuid.UUID
	AccountID         uuid.UUID
	LeadID            *uuid.UUID
	Title             string
	Stage             domain.DealStage
	Value             float64
	ExpectedCloseDate *time.Time
	OwnerID           *uuid.UUID
}

func (r *Repository) CreateDeal(ctx context.Context, params CreateDealParams) (Deal, error) {
	var d Deal
	err := r.db.QueryRow(ctx, `
		INSERT INTO deals (company_id, account_id, lead_id, title, stage, deal_value, expected_close_date, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+dealColumns,
		params.CompanyID, params.AccountID, params.LeadID, params.Title, params.Stage, params.Value, params.ExpectedCloseDate, params.OwnerID,
	).Scan(
		&d.ID, &d.CompanyID, &d.AccountID, &d.LeadID, &d.Title, &d.Stage, &d.Status, &d.Value,
		&d.ExpectedCloseDate, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt,
	)
	return d, err
}

func (r *Repository) ListDealsByAccount(ctx context.Context, companyID, accountID uuid.UUID) ([]Deal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE company_id = $1 AND account_id = $2
		ORDER BY created_at ASC
	`, companyID, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDeals(rows)
}

func (r *Repository) ListDealsByLead(ctx context.Context, companyID, leadID uuid.UUID) ([]Deal, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+dealColumns+` FROM deals
		WHERE company_id = $1 AND lead_id = $2
		ORDER BY created_at ASC
	`, companyID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectDeals(rows)
}

func collectDeals(rows pgx.Rows) ([]Deal, error) {
	deals := make([]Deal, 0)
	for rows.Next() {
		var d Deal
		err := rows.Scan(
			&d.ID, &d.CompanyID, &d.AccountID, &d.LeadID, &d.Title, &d.Stage, &d.Status, &d.Value,
			&d.ExpectedCloseDate, &d.OwnerID, &d.CreatedAt, &d.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		deals = append(deals, d)
	}
	return deals, rows.Err()
}
