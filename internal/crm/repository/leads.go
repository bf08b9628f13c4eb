package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Lead is the raw-entity view consumed by the automation engine.
type Lead struct {
	ID              uuid.UUID
	CompanyID       uuid.UUID
	FirstName       string
	LastName        string
	Email           *string
	Phone           *string
	CompanyName     *string
	Country         *string
	Source          *string
	Campaign        *string
	Medium          *string
	Term            *string
	BudgetRange     *string
	AuthorityLevel  *string
	InterestProduct *string
	Timeline        *string
	LeadScore       int
	Status          domain.LeadStatus
	IsDuplicate     bool
	AssignedTo      *uuid.UUID
	ConvertedAt     *time.Time
	ConvertedToID   *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullName joins first and last names for display and contact creation.
func (l Lead) FullName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}

const leadColumns = `id, company_id, first_name, last_name, email, phone, company_name, country,
	source, campaign, medium, term, budget_range, authority_level, interest_product, timeline,
	lead_score, status, is_duplicate, assigned_to, converted_at, converted_to_account_id,
	created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(
		&l.ID, &l.CompanyID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.CompanyName, &l.Country,
		&l.Source, &l.Campaign, &l.Medium, &l.Term, &l.BudgetRange, &l.AuthorityLevel, &l.InterestProduct, &l.Timeline,
		&l.LeadScore, &l.Status, &l.IsDuplicate, &l.AssignedTo, &l.ConvertedAt, &l.ConvertedToID,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return l, err
}

// CreateLeadParams carries the writable lead fields.
type CreateLeadParams struct {
	CompanyID       uuid.UUID
	FirstName       string
	LastName        string
	Email           *string
	Phone           *string
	CompanyName     *string
	Country         *string
	Source          *string
	Campaign        *string
	Medium          *string
	Term            *string
	BudgetRange     *string
	AuthorityLevel  *string
	InterestProduct *string
	Timeline        *string
	LeadScore       int
	AssignedTo      *uuid.UUID
}

func (r *Repository) CreateLead(ctx context.Context, params CreateLeadParams) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO leads (
			company_id, first_name, last_name, email, phone, company_name, country,
			source, campaign, medium, term, budget_range, authority_level, interest_product, timeline,
			lead_score, assigned_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING `+leadColumns,
		params.CompanyID, params.FirstName, params.LastName, params.Email, params.Phone, params.CompanyName, params.Country,
		params.Source, params.Campaign, params.Medium, params.Term, params.BudgetRange, params.AuthorityLevel, params.InterestProduct, params.Timeline,
		params.LeadScore, params.AssignedTo,
	)
	return scanLead(row)
}

func (r *Repository) GetLead(ctx context.Context, companyID, id uuid.UUID) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE id = $1 AND company_id = $2
	`, id, companyID)
	return scanLead(row)
}

// GetLeadForUpdate locks the lead row for the remainder of the enclosing
// transaction. Used by the conversion orchestrator to serialize conversions.
func (r *Repository) GetLeadForUpdate(ctx context.Context, companyID, id uuid.UUID) (Lead, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE id = $1 AND company_id = $2
		FOR UPDATE
	`, id, companyID)
	return scanLead(row)
}

func (r *Repository) ListLeadsByStatus(ctx context.Context, companyID uuid.UUID, statuses []domain.LeadStatus) ([]Lead, error) {
	raw := make([]string, 0, len(statuses))
	for _, s := range statuses {
		raw = append(raw, string(s))
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE company_id = $1 AND status = ANY($2)
		ORDER BY created_at ASC
	`, companyID, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

// ListDedupeCandidates returns leads with at least one identity signal set.
// Converted leads stay in the candidate pool so re-submissions of an already
// converted person are still flagged.
func (r *Repository) ListDedupeCandidates(ctx context.Context, companyID uuid.UUID, excludeID *uuid.UUID) ([]Lead, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE company_id = $1
		  AND is_duplicate = false
		  AND ($2::uuid IS NULL OR id <> $2)
		  AND (email IS NOT NULL OR phone IS NOT NULL OR company_name IS NOT NULL)
		ORDER BY created_at ASC
	`, companyID, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectLeads(rows)
}

// ListLeadIDs pages lead IDs in stable order for chunked batch jobs.
func (r *Repository) ListLeadIDs(ctx context.Context, companyID uuid.UUID, afterID uuid.UUID, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id FROM leads
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

// UpdateLeadParams applies only non-nil fields, preserving everything else.
// Used by the duplicate merge to copy fields the survivor lacks.
type UpdateLeadParams struct {
	Email           *string
	Phone           *string
	CompanyName     *string
	Country         *string
	Source          *string
	Campaign        *string
	Medium          *string
	Term            *string
	BudgetRange     *string
	AuthorityLevel  *string
	InterestProduct *string
	Timeline        *string
	LeadScore       *int
	AssignedTo      *uuid.UUID
}

func (r *Repository) UpdateLeadFields(ctx context.Context, companyID, id uuid.UUID, params UpdateLeadParams) (Lead, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id, companyID}

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Email != nil {
		add("email", *params.Email)
	}
	if params.Phone != nil {
		add("phone", *params.Phone)
	}
	if params.CompanyName != nil {
		add("company_name", *params.CompanyName)
	}
	if params.Country != nil {
		add("country", *params.Country)
	}
	if params.Source != nil {
		add("source", *params.Source)
	}
	if params.Campaign != nil {
		add("campaign", *params.Campaign)
	}
	if params.Medium != nil {
		add("medium", *params.Medium)
	}
	if params.Term != nil {
		add("term", *params.Term)
	}
	if params.BudgetRange != nil {
		add("budget_range", *params.BudgetRange)
	}
	if params.AuthorityLevel != nil {
		add("authority_level", *params.AuthorityLevel)
	}
	if params.InterestProduct != nil {
		add("interest_product", *params.InterestProduct)
	}
	if params.Timeline != nil {
		add("timeline", *params.Timeline)
	}
	if params.LeadScore != nil {
		add("lead_score", *params.LeadScore)
	}
	if params.AssignedTo != nil {
		add("assigned_to", *params.AssignedTo)
	}

	row := r.db.QueryRow(ctx, `
		UPDATE leads SET `+strings.Join(sets, ", ")+`
		WHERE id = $1 AND company_id = $2
		RETURNING `+leadColumns,
		args...,
	)
	return scanLead(row)
}

func (r *Repository) UpdateLeadStatus(ctx context.Context, companyID, id uuid.UUID, status domain.LeadStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET status = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, id, companyID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) UpdateLeadScore(ctx context.Context, companyID, id uuid.UUID, score int) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET lead_score = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, id, companyID, score)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementLeadScore applies a bounded delta as a single atomic statement.
// Clamping happens in the database, so concurrent increments serialize on the
// row and no update is lost to a stale read.
func (r *Repository) IncrementLeadScore(ctx context.Context, companyID, id uuid.UUID, delta int) (int, error) {
	var newScore int
	err := r.db.QueryRow(ctx, `
		UPDATE leads
		SET lead_score = LEAST(100, GREATEST(0, lead_score + $3)), updated_at = now()
		WHERE id = $1 AND company_id = $2
		RETURNING lead_score
	`, id, companyID, delta).Scan(&newScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return newScore, err
}

func (r *Repository) AssignLead(ctx context.Context, companyID, id, userID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET assigned_to = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, id, companyID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) MarkLeadDuplicate(ctx context.Context, companyID, id uuid.UUID, isDuplicate bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads SET is_duplicate = $3, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, id, companyID, isDuplicate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkLeadConverted flips the lead to converted exactly once. The status
// guard makes a second conversion attempt report no rows, which callers
// surface as a precondition failure.
func (r *Repository) MarkLeadConverted(ctx context.Context, companyID, id, accountID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE leads
		SET status = $3, converted_at = $4, converted_to_account_id = $5, updated_at = now()
		WHERE id = $1 AND company_id = $2 AND status <> $3
	`, id, companyID, domain.LeadStatusConverted, at, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectLeads(rows pgx.Rows) ([]Lead, error) {
	leads := make([]Lead, 0)
	for rows.Next() {
		var l Lead
		err := rows.Scan(
			&l.ID, &l.CompanyID, &l.FirstName, &l.LastName, &l.Email, &l.Phone, &l.CompanyName, &l.Country,
			&l.Source, &l.Campaign, &l.Medium, &l.Term, &l.BudgetRange, &l.AuthorityLevel, &l.InterestProduct, &l.Timeline,
			&l.LeadScore, &l.Status, &l.IsDuplicate, &l.AssignedTo, &l.ConvertedAt, &l.ConvertedToID,
			&l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}
