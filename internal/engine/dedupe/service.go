// Package dedupe finds existing leads that plausibly represent the same
// person or company as a candidate, using exact email matching plus fuzzy
// phone and company-name matching.
package dedupe

import (
	"context"
	"fmt"
	"strings"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/identity"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
)

const (
	// phoneThreshold is intentionally strict: phone digits rarely differ by
	// more than a typo when they belong to the same person.
	phoneThreshold = 0.98
	// companyThreshold tolerates spelling and suffix variation.
	companyThreshold = 0.85
)

// Confidence tiers of a duplicate verdict.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// Candidate carries the contact fields of the lead being checked.
type Candidate struct {
	Email       string
	Phone       string
	CompanyName string
}

// Match is one existing lead that corroborates the candidate.
type Match struct {
	LeadID  uuid.UUID
	Signals []string
}

// Verdict is the confidence-tiered outcome of a duplicate check.
type Verdict struct {
	IsDuplicate bool
	Matches     []Match
	Reason      string
	Confidence  string
}

// MergePolicy controls how a bulk merge resolves ambiguous fields.
type MergePolicy struct {
	// ScorePolicy is "keep_survivor" (default) or "take_max". Promoting a
	// duplicate's higher score onto the survivor is opt-in, never implicit.
	ScorePolicy string
}

// ScorePolicy values.
const (
	ScoreKeepSurvivor = "keep_survivor"
	ScoreTakeMax      = "take_max"
)

// MergeReport summarizes a bulk merge.
type MergeReport struct {
	SurvivorID   uuid.UUID
	Merged       []uuid.UUID
	FieldsCopied int
	Errors       map[uuid.UUID]string
}

// Store is the persistence surface the detector needs.
type Store interface {
	repository.LeadReader
	repository.LeadWriter
	repository.ActivityStore
}

// Service detects and merges duplicate leads.
type Service struct {
	store Store
	clk   clock.Clock
	log   *logger.Logger
}

// New creates a duplicate detection service.
func New(store Store, clk clock.Clock, log *logger.Logger) *Service {
	return &Service{store: store, clk: clk, log: log}
}

// FindDuplicates compares the candidate against all leads in the company.
// A duplicate verdict requires two corroborating signals; a single match,
// even an exact email, is never sufficient on its own.
func (s *Service) FindDuplicates(ctx context.Context, companyID uuid.UUID, candidate Candidate, excludeID *uuid.UUID) (Verdict, error) {
	email := identity.NormalizeEmail(candidate.Email)
	phone := identity.NormalizePhone(candidate.Phone)
	company := identity.NormalizeCompany(candidate.CompanyName)

	if email == "" && phone == "" && company == "" {
		return Verdict{Reason: "no identity signals provided"}, nil
	}

	existing, err := s.store.ListDedupeCandidates(ctx, companyID, excludeID)
	if err != nil {
		return Verdict{}, apperr.Wrap(apperr.KindInternal, "listing dedupe candidates", err).WithOp("dedupe.FindDuplicates")
	}

	var matches []Match
	emailCorroborated := false
	weakSignalSeen := false

	for _, lead := range existing {
		signals := matchSignals(lead, email, phone, company)
		if len(signals) == 0 {
			continue
		}
		if len(signals) == 1 {
			weakSignalSeen = true
			continue
		}

		matches = append(matches, Match{LeadID: lead.ID, Signals: signals})
		for _, sig := range signals {
			if sig == "email" {
				emailCorroborated = true
			}
		}
	}

	if len(matches) == 0 {
		verdict := Verdict{Reason: "no corroborated match"}
		if weakSignalSeen {
			verdict.Reason = "single signal matched; two corroborating signals required"
			verdict.Confidence = ConfidenceLow
		}
		return verdict, nil
	}

	confidence := ConfidenceMedium
	if emailCorroborated {
		confidence = ConfidenceHigh
	}

	return Verdict{
		IsDuplicate: true,
		Matches:     matches,
		Reason:      describeMatches(matches),
		Confidence:  confidence,
	}, nil
}

func matchSignals(lead repository.Lead, email, phone, company string) []string {
	var signals []string

	if email != "" && lead.Email != nil && identity.NormalizeEmail(*lead.Email) == email {
		signals = append(signals, "email")
	}
	if phone != "" && lead.Phone != nil {
		if identity.Ratio(identity.NormalizePhone(*lead.Phone), phone) >= phoneThreshold {
			signals = append(signals, "phone")
		}
	}
	if company != "" && lead.CompanyName != nil {
		if identity.Ratio(identity.NormalizeCompany(*lead.CompanyName), company) >= companyThreshold {
			signals = append(signals, "company")
		}
	}
	return signals
}

func describeMatches(matches []Match) string {
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("lead %s matched on %s", m.LeadID, strings.Join(m.Signals, "+")))
	}
	return strings.Join(parts, "; ")
}

// MergeDuplicates folds the given duplicates into the survivor. Non-survivor
// records move to disqualified status and are flagged as duplicates; any
// field the survivor lacks is copied over, populated survivor fields are
// never overwritten. Per-item failures are collected, not fatal.
func (s *Service) MergeDuplicates(ctx context.Context, companyID, survivorID uuid.UUID, duplicateIDs []uuid.UUID, policy MergePolicy) (MergeReport, error) {
	if policy.ScorePolicy == "" {
		policy.ScorePolicy = ScoreKeepSurvivor
	}
	if policy.ScorePolicy != ScoreKeepSurvivor && policy.ScorePolicy != ScoreTakeMax {
		return MergeReport{}, apperr.Newf(apperr.KindValidation, "unknown score policy %q", policy.ScorePolicy)
	}

	survivor, err := s.store.GetLead(ctx, companyID, survivorID)
	if err != nil {
		if err == repository.ErrNotFound {
			return MergeReport{}, apperr.NotFound("survivor lead not found")
		}
		return MergeReport{}, err
	}

	report := MergeReport{SurvivorID: survivorID, Errors: make(map[uuid.UUID]string)}

	for _, dupID := range duplicateIDs {
		if dupID == survivorID {
			report.Errors[dupID] = "cannot merge a lead into itself"
			continue
		}

		dup, err := s.store.GetLead(ctx, companyID, dupID)
		if err != nil {
			report.Errors[dupID] = err.Error()
			continue
		}

		params, copied := unionParams(survivor, dup, policy)
		if copied > 0 {
			updated, err := s.store.UpdateLeadFields(ctx, companyID, survivorID, params)
			if err != nil {
				report.Errors[dupID] = err.Error()
				continue
			}
			survivor = updated
			report.FieldsCopied += copied
		}

		if err := s.store.MarkLeadDuplicate(ctx, companyID, dupID, true); err != nil {
			report.Errors[dupID] = err.Error()
			continue
		}
		if err := s.store.UpdateLeadStatus(ctx, companyID, dupID, domain.LeadStatusDisqualified); err != nil {
			report.Errors[dupID] = err.Error()
			continue
		}

		report.Merged = append(report.Merged, dupID)
		s.logMergeActivity(ctx, companyID, survivorID, dupID)
	}

	return report, nil
}

// logMergeActivity records the merge on the survivor's trail. Audit failures
// are swallowed: the merge itself already succeeded.
func (s *Service) logMergeActivity(ctx context.Context, companyID, survivorID, dupID uuid.UUID) {
	_, err := s.store.InsertActivity(ctx, repository.InsertActivityParams{
		CompanyID:    companyID,
		LeadID:       &survivorID,
		ActivityType: domain.ActivityNote,
		Subject:      fmt.Sprintf("merged duplicate lead %s", dupID),
		ActivityDate: s.clk.Now(),
	})
	if err != nil && s.log != nil {
		s.log.Error("merge activity log failed", "error", err, "leadId", survivorID)
	}
}

// unionParams builds the update that copies duplicate fields the survivor
// lacks.
func unionParams(survivor, dup repository.Lead, policy MergePolicy) (repository.UpdateLeadParams, int) {
	var params repository.UpdateLeadParams
	copied := 0

	copyStr := func(dst **string, survivorVal, dupVal *string) {
		if (survivorVal == nil || strings.TrimSpace(*survivorVal) == "") && dupVal != nil && strings.TrimSpace(*dupVal) != "" {
			*dst = dupVal
			copied++
		}
	}

	copyStr(&params.Email, survivor.Email, dup.Email)
	copyStr(&params.Phone, survivor.Phone, dup.Phone)
	copyStr(&params.CompanyName, survivor.CompanyName, dup.CompanyName)
	copyStr(&params.Country, survivor.Country, dup.Country)
	copyStr(&params.Source, survivor.Source, dup.Source)
	copyStr(&params.Campaign, survivor.Campaign, dup.Campaign)
	copyStr(&params.Medium, survivor.Medium, dup.Medium)
	copyStr(&params.Term, survivor.Term, dup.Term)
	copyStr(&params.BudgetRange, survivor.BudgetRange, dup.BudgetRange)
	copyStr(&params.AuthorityLevel, survivor.AuthorityLevel, dup.AuthorityLevel)
	copyStr(&params.InterestProduct, survivor.InterestProduct, dup.InterestProduct)
	copyStr(&params.Timeline, survivor.Timeline, dup.Timeline)

	if survivor.AssignedTo == nil && dup.AssignedTo != nil {
		params.AssignedTo = dup.AssignedTo
		copied++
	}

	if policy.ScorePolicy == ScoreTakeMax && dup.LeadScore > survivor.LeadScore {
		score := dup.LeadScore
		params.LeadScore = &score
		copied++
	}

	return params, copied
}
