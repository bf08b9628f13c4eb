package conversion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"
	"github.com/ganeshchavan786/vega-crm/internal/engine/enginetest"
	"github.com/ganeshchavan786/vega-crm/platform/apperr"
	"github.com/ganeshchavan786/vega-crm/platform/clock"
	"github.com/ganeshchavan786/vega-crm/platform/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func ptr(s string) *string { return &s }

func newService(store *enginetest.Store) *Service {
	return New(store, clock.Fixed(testNow), logger.NewNop())
}

func convertibleLead(companyID uuid.UUID) repository.Lead {
	return repository.Lead{
		CompanyID:       companyID,
		FirstName:       "Priya",
		LastName:        "Sharma",
		Email:           ptr("priya@acmetech.com"),
		Phone:           ptr("9876543210"),
		CompanyName:     ptr("Acme Tech Pvt Ltd"),
		Country:         ptr("India"),
		BudgetRange:     ptr("₹5-7 Lakh"),
		AuthorityLevel:  ptr("decision_maker"),
		InterestProduct: ptr("CRM"),
		Timeline:        ptr("30 Days"),
		LeadScore:       82,
		Status:          domain.LeadStatusQualified,
	}
}

func TestConvert_CreatesFullChain(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := store.SeedLead(convertibleLead(companyID))

	svc := newService(store)
	result, err := svc.Convert(context.Background(), companyID, lead.ID, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Acme Tech Pvt Ltd", result.Account.Name)
	assert.Equal(t, "acme tech", result.Account.NormalizedName)
	assert.True(t, result.Contact.IsPrimary)
	assert.Equal(t, result.Account.ID, result.Deal.AccountID)
	assert.Equal(t, 700000.0, result.Deal.Value, "upper bound of the lakh range")
	require.NotNil(t, result.Deal.ExpectedCloseDate)
	assert.Equal(t, testNow.Add(30*24*time.Hour), *result.Deal.ExpectedCloseDate)

	converted := store.Leads[lead.ID]
	assert.Equal(t, domain.LeadStatusConverted, converted.Status)
	require.NotNil(t, converted.ConvertedToID)
	assert.Equal(t, result.Account.ID, *converted.ConvertedToID)
	require.NotNil(t, converted.ConvertedAt)

	require.Len(t, store.Activities, 1)
	assert.Equal(t, domain.ActivityConversion, store.Activities[0].ActivityType)
}

func TestConvert_ReusesAccountByNormalizedName(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	existing := store.SeedAccount(repository.Account{
		CompanyID:      companyID,
		Name:           "Acme Tech",
		NormalizedName: "acme tech",
		IsActive:       true,
	})
	primary := store.SeedLead(convertibleLead(companyID))
	_, err := store.CreateContact(context.Background(), repository.CreateContactParams{
		CompanyID: companyID,
		AccountID: existing.ID,
		FirstName: "First",
		LastName:  "Contact",
		IsPrimary: true,
	})
	require.NoError(t, err)

	svc := newService(store)
	result, err := svc.Convert(context.Background(), companyID, primary.ID, Options{})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, result.Account.ID, "suffix variants resolve to the same account")
	assert.False(t, result.Contact.IsPrimary, "account already has a primary contact")
	assert.Len(t, store.Accounts, 1)
}

func TestConvert_AlreadyConvertedFailsPrecondition(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := convertibleLead(companyID)
	lead.Status = domain.LeadStatusConverted
	seeded := store.SeedLead(lead)

	svc := newService(store)
	_, err := svc.Convert(context.Background(), companyID, seeded.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPrecondition, apperr.GetKind(err))
}

func TestConvert_IneligibleLeadRejected(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := repository.Lead{
		CompanyID: companyID,
		FirstName: "Cold",
		LeadScore: 15,
		Status:    domain.LeadStatusNew,
	}
	seeded := store.SeedLead(lead)

	svc := newService(store)
	_, err := svc.Convert(context.Background(), companyID, seeded.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.GetKind(err))

	// skip flag bypasses the gate
	_, err = svc.Convert(context.Background(), companyID, seeded.ID, Options{SkipEligibility: true})
	require.NoError(t, err)
}

func TestConvert_DuplicateLeadRejected(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := convertibleLead(companyID)
	lead.IsDuplicate = true
	seeded := store.SeedLead(lead)

	svc := newService(store)
	_, err := svc.Convert(context.Background(), companyID, seeded.ID, Options{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindPrecondition, apperr.GetKind(err))
}

func TestConvert_DealFailureRollsBackEverything(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := store.SeedLead(convertibleLead(companyID))
	store.FailCreateDeal = errors.New("deal table unavailable")

	svc := newService(store)
	_, err := svc.Convert(context.Background(), companyID, lead.ID, Options{})
	require.Error(t, err)

	assert.Empty(t, store.Accounts, "account creation must roll back")
	assert.Empty(t, store.Contacts, "contact creation must roll back")
	assert.Empty(t, store.Deals)
	assert.Empty(t, store.Activities)
	assert.Equal(t, domain.LeadStatusQualified, store.Leads[lead.ID].Status)
}

func TestConvert_ActorRecordedOnActivity(t *testing.T) {
	store := enginetest.New()
	companyID := uuid.New()
	lead := store.SeedLead(convertibleLead(companyID))
	actor := uuid.New()

	svc := newService(store)
	_, err := svc.Convert(context.Background(), companyID, lead.ID, Options{ActorID: &actor})
	require.NoError(t, err)

	require.Len(t, store.Activities, 1)
	require.NotNil(t, store.Activities[0].CreatedBy)
	assert.Equal(t, actor, *store.Activities[0].CreatedBy)
}

func TestParseBudgetValue(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"₹5-7 Lakh", 700000},
		{"10k-15k", 15000},
		{"2 Crore", 20000000},
		{"50000", 50000},
		{"flexible", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := parseBudgetValue(&tc.in); got != tc.want {
			t.Fatalf("parseBudgetValue(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := parseBudgetValue(nil); got != 0 {
		t.Fatalf("nil budget should parse to 0, got %v", got)
	}
}

func TestParseCloseDate(t *testing.T) {
	thirty := "30 Days"
	if got := parseCloseDate(&thirty, testNow); !got.Equal(testNow.Add(30 * 24 * time.Hour)) {
		t.Fatalf("unexpected close date %v", got)
	}
	asap := "ASAP"
	if got := parseCloseDate(&asap, testNow); !got.Equal(testNow.Add(7 * 24 * time.Hour)) {
		t.Fatalf("asap should close within a week, got %v", got)
	}
	vague := "sometime"
	if got := parseCloseDate(&vague, testNow); !got.Equal(testNow.Add(defaultCloseHorizon)) {
		t.Fatalf("vague timeline should use the default horizon, got %v", got)
	}
	months := "2 months"
	if got := parseCloseDate(&months, testNow); !got.Equal(testNow.Add(60 * 24 * time.Hour)) {
		t.Fatalf("unexpected close date %v", got)
	}
}
