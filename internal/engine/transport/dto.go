// Package transport defines the request and response shapes of the engine's
// HTTP surface. Handlers bind and validate these; repository entities never
// cross the wire directly.
package transport

import (
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/conversion"
	"github.com/ganeshchavan786/vega-crm/internal/engine/dedupe"

	"github.com/google/uuid"
)

// CreateLeadRequest is the intake payload.
type CreateLeadRequest struct {
	FirstName       string     `json:"firstName" validate:"max=100"`
	LastName        string     `json:"lastName" validate:"max=100"`
	Email           *string    `json:"email" validate:"omitempty,email"`
	Phone           *string    `json:"phone" validate:"omitempty,max=32"`
	CompanyName     *string    `json:"companyName" validate:"omitempty,max=255"`
	Country         *string    `json:"country" validate:"omitempty,max=100"`
	Source          *string    `json:"source" validate:"omitempty,max=100"`
	Campaign        *string    `json:"campaign" validate:"omitempty,max=255"`
	Medium          *string    `json:"medium" validate:"omitempty,max=100"`
	Term            *string    `json:"term" validate:"omitempty,max=255"`
	BudgetRange     *string    `json:"budgetRange" validate:"omitempty,max=100"`
	AuthorityLevel  *string    `json:"authorityLevel" validate:"omitempty,max=100"`
	InterestProduct *string    `json:"interestProduct" validate:"omitempty,max=255"`
	Timeline        *string    `json:"timeline" validate:"omitempty,max=100"`
	AssignedTo      *uuid.UUID `json:"assignedTo"`
	AssignmentRule  string     `json:"assignmentRule" validate:"omitempty,oneof=round_robin load_balanced territory manual"`
}

// IncrementScoreRequest adjusts a lead score by a bounded delta.
type IncrementScoreRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason" validate:"max=255"`
}

// ConvertLeadRequest controls the conversion gate.
type ConvertLeadRequest struct {
	SkipEligibility bool `json:"skipEligibility"`
}

// CheckDuplicatesRequest probes the company for matching leads.
type CheckDuplicatesRequest struct {
	Email         string     `json:"email" validate:"omitempty,email"`
	Phone         string     `json:"phone" validate:"omitempty,max=32"`
	CompanyName   string     `json:"companyName" validate:"omitempty,max=255"`
	ExcludeLeadID *uuid.UUID `json:"excludeLeadId"`
}

// MergeDuplicatesRequest folds duplicates into a survivor.
type MergeDuplicatesRequest struct {
	SurvivorID   uuid.UUID   `json:"survivorId" validate:"required"`
	DuplicateIDs []uuid.UUID `json:"duplicateIds" validate:"required,min=1"`
	ScorePolicy  string      `json:"scorePolicy" validate:"omitempty,oneof=keep_survivor take_max"`
}

// BatchRequest triggers an admin batch job.
type BatchRequest struct {
	DryRun bool `json:"dryRun"`
}

// LeadResponse is the wire view of a lead.
type LeadResponse struct {
	ID              uuid.UUID             `json:"id"`
	FirstName       string                `json:"firstName"`
	LastName        string                `json:"lastName"`
	Email           *string               `json:"email,omitempty"`
	Phone           *string               `json:"phone,omitempty"`
	CompanyName     *string               `json:"companyName,omitempty"`
	Country         *string               `json:"country,omitempty"`
	Source          *string               `json:"source,omitempty"`
	Campaign        *string               `json:"campaign,omitempty"`
	Medium          *string               `json:"medium,omitempty"`
	Term            *string               `json:"term,omitempty"`
	BudgetRange     *string               `json:"budgetRange,omitempty"`
	AuthorityLevel  *string               `json:"authorityLevel,omitempty"`
	InterestProduct *string               `json:"interestProduct,omitempty"`
	Timeline        *string               `json:"timeline,omitempty"`
	LeadScore       int                   `json:"leadScore"`
	Status          domain.LeadStatus     `json:"status"`
	IsDuplicate     bool                  `json:"isDuplicate"`
	AssignedTo      *uuid.UUID            `json:"assignedTo,omitempty"`
	ConvertedAt     *time.Time            `json:"convertedAt,omitempty"`
	ConvertedToID   *uuid.UUID            `json:"convertedToAccountId,omitempty"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// FromLead maps the repository entity to its wire view.
func FromLead(l repository.Lead) LeadResponse {
	return LeadResponse{
		ID:              l.ID,
		FirstName:       l.FirstName,
		LastName:        l.LastName,
		Email:           l.Email,
		Phone:           l.Phone,
		CompanyName:     l.CompanyName,
		Country:         l.Country,
		Source:          l.Source,
		Campaign:        l.Campaign,
		Medium:          l.Medium,
		Term:            l.Term,
		BudgetRange:     l.BudgetRange,
		AuthorityLevel:  l.AuthorityLevel,
		InterestProduct: l.InterestProduct,
		Timeline:        l.Timeline,
		LeadScore:       l.LeadScore,
		Status:          l.Status,
		IsDuplicate:     l.IsDuplicate,
		AssignedTo:      l.AssignedTo,
		ConvertedAt:     l.ConvertedAt,
		ConvertedToID:   l.ConvertedToID,
		CreatedAt:       l.CreatedAt,
		UpdatedAt:       l.UpdatedAt,
	}
}

// MatchResponse is one corroborated duplicate.
type MatchResponse struct {
	LeadID  uuid.UUID `json:"leadId"`
	Signals []string  `json:"signals"`
}

// VerdictResponse is the duplicate check outcome.
type VerdictResponse struct {
	IsDuplicate bool            `json:"isDuplicate"`
	Confidence  string          `json:"confidence,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Matches     []MatchResponse `json:"matches"`
}

// FromVerdict maps a dedupe verdict to its wire view.
func FromVerdict(v dedupe.Verdict) VerdictResponse {
	out := VerdictResponse{
		IsDuplicate: v.IsDuplicate,
		Confidence:  v.Confidence,
		Reason:      v.Reason,
		Matches:     make([]MatchResponse, 0, len(v.Matches)),
	}
	for _, m := range v.Matches {
		out.Matches = append(out.Matches, MatchResponse{LeadID: m.LeadID, Signals: m.Signals})
	}
	return out
}

// MergeReportResponse summarizes a bulk merge.
type MergeReportResponse struct {
	SurvivorID   uuid.UUID            `json:"survivorId"`
	Merged       []uuid.UUID          `json:"merged"`
	FieldsCopied int                  `json:"fieldsCopied"`
	Errors       map[uuid.UUID]string `json:"errors,omitempty"`
}

// FromMergeReport maps a merge report to its wire view.
func FromMergeReport(r dedupe.MergeReport) MergeReportResponse {
	merged := r.Merged
	if merged == nil {
		merged = []uuid.UUID{}
	}
	return MergeReportResponse{
		SurvivorID:   r.SurvivorID,
		Merged:       merged,
		FieldsCopied: r.FieldsCopied,
		Errors:       r.Errors,
	}
}

// AccountResponse is the wire view of an account.
type AccountResponse struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Industry       *string               `json:"industry,omitempty"`
	Country        *string               `json:"country,omitempty"`
	HealthScore    domain.HealthScore    `json:"healthScore"`
	LifecycleStage domain.LifecycleStage `json:"lifecycleStage"`
	IsActive       bool                  `json:"isActive"`
	OwnerID        *uuid.UUID            `json:"ownerId,omitempty"`
}

// FromAccount maps the repository entity to its wire view.
func FromAccount(a repository.Account) AccountResponse {
	return AccountResponse{
		ID:             a.ID,
		Name:           a.Name,
		Industry:       a.Industry,
		Country:        a.Country,
		HealthScore:    a.HealthScore,
		LifecycleStage: a.LifecycleStage,
		IsActive:       a.IsActive,
		OwnerID:        a.OwnerID,
	}
}

// ContactResponse is the wire view of a contact.
type ContactResponse struct {
	ID        uuid.UUID `json:"id"`
	AccountID uuid.UUID `json:"accountId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	IsPrimary bool      `json:"isPrimary"`
}

// DealResponse is the wire view of a deal.
type DealResponse struct {
	ID                uuid.UUID         `json:"id"`
	AccountID         uuid.UUID         `json:"accountId"`
	LeadID            *uuid.UUID        `json:"leadId,omitempty"`
	Title             string            `json:"title"`
	Stage             domain.DealStage  `json:"stage"`
	Status            domain.DealStatus `json:"status"`
	Value             float64           `json:"value"`
	ExpectedCloseDate *time.Time        `json:"expectedCloseDate,omitempty"`
}

// ConversionResponse carries the entities produced by a conversion.
type ConversionResponse struct {
	Account AccountResponse `json:"account"`
	Contact ContactResponse `json:"contact"`
	Deal    DealResponse    `json:"deal"`
}

// FromConversion maps a conversion result to its wire view.
func FromConversion(r conversion.Result) ConversionResponse {
	return ConversionResponse{
		Account: FromAccount(r.Account),
		Contact: ContactResponse{
			ID:        r.Contact.ID,
			AccountID: r.Contact.AccountID,
			FirstName: r.Contact.FirstName,
			LastName:  r.Contact.LastName,
			Email:     r.Contact.Email,
			Phone:     r.Contact.Phone,
			IsPrimary: r.Contact.IsPrimary,
		},
		Deal: DealResponse{
			ID:                r.Deal.ID,
			AccountID:         r.Deal.AccountID,
			LeadID:            r.Deal.LeadID,
			Title:             r.Deal.Title,
			Stage:             r.Deal.Stage,
			Status:            r.Deal.Status,
			Value:             r.Deal.Value,
			ExpectedCloseDate: r.Deal.ExpectedCloseDate,
		},
	}
}
