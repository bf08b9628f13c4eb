package repository

import (
	"context"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Activity is an immutable log row. Rows are only ever inserted.
type Activity struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	LeadID       *uuid.UUID
	AccountID    *uuid.UUID
	DealID       *uuid.UUID
	ActivityType domain.ActivityType
	Subject      string
	Outcome      *string
	ActivityDate time.Time
	CreatedBy    *uuid.UUID
	CreatedAt    time.Time
}

const activityColumns = `id, company_id, lead_id, account_id, deal_id, activity_type, subject,
	outcome, activity_date, created_by, created_at`

// InsertActivityParams carries the writable activity fields.
type InsertActivityParams struct {
	CompanyID    uuid.UUID
	LeadID       *uuid.UUID
	AccountID    *uuid.UUID
	DealID       *uuid.UUID
	ActivityType domain.ActivityType
	Subject      string
	Outcome      *string
	ActivityDate time.Time
	CreatedBy    *uuid.UUID
}

func (r *Repository) InsertActivity(ctx context.Context, params InsertActivityParams) (Activity, error) {
	var a Activity
	err := r.db.QueryRow(ctx, `
		INSERT INTO activities (company_id, lead_id, account_id, deal_id, activity_type, subject, outcome, activity_date, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+activityColumns,
		params.CompanyID, params.LeadID, params.AccountID, params.DealID, params.ActivityType,
		params.Subject, params.Outcome, params.ActivityDate, params.CreatedBy,
	).Scan(
		&a.ID, &a.CompanyID, &a.LeadID, &a.AccountID, &a.DealID, &a.ActivityType, &a.Subject,
		&a.Outcome, &a.ActivityDate, &a.CreatedBy, &a.CreatedAt,
	)
	return a, err
}

func (r *Repository) ListLeadActivities(ctx context.Context, companyID, leadID uuid.UUID, since time.Time) ([]Activity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE company_id = $1 AND lead_id = $2 AND activity_date >= $3
		ORDER BY activity_date DESC
	`, companyID, leadID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectActivities(rows)
}

func (r *Repository) ListAccountActivities(ctx context.Context, companyID, accountID uuid.UUID, since time.Time) ([]Activity, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+activityColumns+` FROM activities
		WHERE company_id = $1 AND account_id = $2 AND activity_date >= $3
		ORDER BY activity_date DESC
	`, companyID, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectActivities(rows)
}

func collectActivities(rows pgx.Rows) ([]Activity, error) {
	items := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		err := rows.Scan(
			&a.ID, &a.CompanyID, &a.LeadID, &a.AccountID, &a.DealID, &a.ActivityType, &a.Subject,
			&a.Outcome, &a.ActivityDate, &a.CreatedBy, &a.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
