package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Contact belongs to exactly one account. The at-most-one-primary invariant
// is enforced by the engine (ClearPrimaryContact before SetPrimaryContact),
// not by storage.
type Contact struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	AccountID uuid.UUID
	FirstName string
	LastName  string
	Email     *string
	Phone     *string
	IsPrimary bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

const contactColumns = `id, company_id, account_id, first_name, last_name, email, phone, is_primary, created_at, updated_at`

// CreateContactParams carries the writable contact fields.
type CreateContactParams struct {
	CompanyID uuid.UUID
	AccountID uuid.UUID
	FirstName string
	LastName  string
	Email     *string
	Phone     *string
	IsPrimary bool
}

func (r *Repository) CreateContact(ctx context.Context, params CreateContactParams) (Contact, error) {
	var c Contact
	err := r.db.QueryRow(ctx, `
		INSERT INTO contacts (company_id, account_id, first_name, last_name, email, phone, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+contactColumns,
		params.CompanyID, params.AccountID, params.FirstName, params.LastName, params.Email, params.Phone, params.IsPrimary,
	).Scan(
		&c.ID, &c.CompanyID, &c.AccountID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.IsPrimary, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *Repository) AccountHasPrimaryContact(ctx context.Context, companyID, accountID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM contacts
			WHERE company_id = $1 AND account_id = $2 AND is_primary = true
		)
	`, companyID, accountID).Scan(&exists)
	return exists, err
}

func (r *Repository) ClearPrimaryContact(ctx context.Context, companyID, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE contacts SET is_primary = false, updated_at = now()
		WHERE company_id = $1 AND account_id = $2 AND is_primary = true
	`, companyID, accountID)
	return err
}

func (r *Repository) SetPrimaryContact(ctx context.Context, companyID, accountID, contactID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE contacts SET is_primary = true, updated_at = now()
		WHERE id = $1 AND company_id = $2 AND account_id = $3
	`, contactID, companyID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
