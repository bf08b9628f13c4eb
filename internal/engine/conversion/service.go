// Package conversion turns a qualified lead into an account, contact, and
// deal inside a single transaction.
package conversion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/identity"
	"github.com/ganeshchavan786/vega-crm/internal/engine/qualification"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
)

// Options tune a single conversion call.
type Options struct {
	// SkipEligibility bypasses the four-check gate. Admin surface only.
	SkipEligibility bool
	// ActorID is recorded on the conversion activity when present.
	ActorID *uuid.UUID
}

// Result carries the entities created (or reused) by a conversion.
type Result struct {
	Account repository.Account `json:"account"`
	Contact repository.Contact `json:"contact"`
	Deal    repository.Deal    `json:"deal"`
}

// Service orchestrates atomic lead conversion.
type Service struct {
	store repository.Store
	clk   clock.Clock
	log   *logger.Logger
}

// New creates a conversion service. It takes the full Store because the
// transaction spans leads, accounts, contacts, deals, and activities.
func New(store repository.Store, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{store: store, clk: clk, log: log}
}

// Convert runs the whole conversion as one transaction. The lead row is
// locked first so concurrent conversions of the same lead serialize; the
// second one fails the already-converted precondition. Any failing step
// rolls back every entity created before it.
func (s *Service) Convert(ctx context.Context, companyID, leadID uuid.UUID, opts Options) (Result, error) {
	var result Result

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		lead, err := tx.GetLeadForUpdate(ctx, companyID, leadID)
		if err != nil {
			if err == repository.ErrNotFound {
				return apperr.NotFound("lead not found")
			}
			return err
		}

		if lead.Status == domain.LeadStatusConverted {
			return apperr.Precondition("lead is already converted")
		}
		if lead.IsDuplicate {
			return apperr.Precondition("duplicate leads cannot be converted")
		}

		if !opts.SkipEligibility {
			eligibility := qualification.CheckConversionEligibility(lead)
			if !eligibility.Eligible {
				return apperr.New(apperr.KindValidation, "lead is not eligible for conversion").
					WithDetails(map[string]any{"blockingReasons": eligibility.BlockingReasons})
			}
		}

		now := s.clk.Now()

		account, err := s.resolveAccount(ctx, tx, lead)
		if err != nil {
			return err
		}

		contact, err := s.createContact(ctx, tx, lead, account)
		if err != nil {
			return err
		}

		deal, err := s.createDeal(ctx, tx, lead, account, now)
		if err != nil {
			return err
		}

		subject := fmt.Sprintf("lead %s converted to account %s", lead.FullName(), account.Name)
		_, err = tx.InsertActivity(ctx, repository.InsertActivityParams{
			CompanyID:    companyID,
			LeadID:       &lead.ID,
			AccountID:    &account.ID,
			DealID:       &deal.ID,
			ActivityType: domain.ActivityConversion,
			Subject:      subject,
			ActivityDate: now,
			CreatedBy:    opts.ActorID,
		})
		if err != nil {
			return apperr.Wrap(apperr.KindInternal, "logging conversion activity", err).WithOp("conversion.Convert")
		}

		if err := tx.MarkLeadConverted(ctx, companyID, lead.ID, account.ID, now); err != nil {
			if err == repository.ErrNotFound {
				// the status guard fired: someone converted it first
				return apperr.Precondition("lead is already converted")
			}
			return err
		}

		result = Result{Account: account, Contact: contact, Deal: deal}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.log.AutomationEvent("lead_converted", leadID, "accountId", result.Account.ID.String())
	return result, nil
}

// resolveAccount reuses an account matching the lead's normalized company
// name, creating one otherwise. A lead without a company name gets an
// account named after the person.
func (s *Service) resolveAccount(ctx context.Context, tx repository.Store, lead repository.Lead) (repository.Account, error) {
	name := lead.FullName()
	if lead.CompanyName != nil && strings.TrimSpace(*lead.CompanyName) != "" {
		name = strings.TrimSpace(*lead.CompanyName)
	}
	normalized := identity.NormalizeCompany(name)

	account, err := tx.FindAccountByName(ctx, lead.CompanyID, normalized)
	if err == nil {
		return account, nil
	}
	if err != repository.ErrNotFound {
		return repository.Account{}, err
	}

	account, err = tx.CreateAccount(ctx, repository.CreateAccountParams{
		CompanyID:      lead.CompanyID,
		Name:           name,
		NormalizedName: normalized,
		Country:        lead.Country,
		OwnerID:        lead.AssignedTo,
	})
	if err != nil {
		return repository.Account{}, apperr.Wrap(apperr.KindInternal, "creating account", err).WithOp("conversion.Convert")
	}
	return account, nil
}

// createContact makes the lead's person a contact on the account. The
// contact becomes primary only when the account has none yet.
func (s *Service) createContact(ctx context.Context, tx repository.Store, lead repository.Lead, account repository.Account) (repository.Contact, error) {
	hasPrimary, err := tx.AccountHasPrimaryContact(ctx, lead.CompanyID, account.ID)
	if err != nil {
		return repository.Contact{}, apperr.Wrap(apperr.KindInternal, "checking primary contact", err).WithOp("conversion.Convert")
	}

	contact, err := tx.CreateContact(ctx, repository.CreateContactParams{
		CompanyID: lead.CompanyID,
		AccountID: account.ID,
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Email:     lead.Email,
		Phone:     lead.Phone,
		IsPrimary: !hasPrimary,
	})
	if err != nil {
		return repository.Contact{}, apperr.Wrap(apperr.KindInternal, "creating contact", err).WithOp("conversion.Convert")
	}
	return contact, nil
}

func (s *Service) createDeal(ctx context.Context, tx repository.Store, lead repository.Lead, account repository.Account, now time.Time) (repository.Deal, error) {
	closeDate := parseCloseDate(lead.Timeline, now)

	title := "New opportunity"
	if lead.InterestProduct != nil && strings.TrimSpace(*lead.InterestProduct) != "" {
		title = strings.TrimSpace(*lead.InterestProduct)
	}
	title = fmt.Sprintf("%s - %s", account.Name, title)

	deal, err := tx.CreateDeal(ctx, repository.CreateDealParams{
		CompanyID:         lead.CompanyID,
		AccountID:         account.ID,
		LeadID:            &lead.ID,
		Title:             title,
		Stage:             domain.DealStageQualified,
		Value:             parseBudgetValue(lead.BudgetRange),
		ExpectedCloseDate: &closeDate,
		OwnerID:           lead.AssignedTo,
	})
	if err != nil {
		return repository.Deal{}, apperr.Wrap(apperr.KindInternal, "creating deal", err).WithOp("conversion.Convert")
	}
	return deal, nil
}
