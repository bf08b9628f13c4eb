// Package enginetest provides an in-memory Store used by engine service
// tests. It mirrors the real repository's semantics closely enough for
// behavior tests: not-found errors, once-only conversion, clamped score
// increments, and transactional rollback.
package enginetest

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ganeshchavan786/vega-crm/internal/crm/domain"
	"github.com/ganeshchavan786/vega-crm/internal/crm/repository"

	"github.com/google/uuid"
)

// Store is an in-memory repository.Store. Zero value is not usable; call New.
type Store struct {
	mu sync.Mutex

	Leads    map[uuid.UUID]repository.Lead
	Accounts map[uuid.UUID]repository.Account
	Contacts map[uuid.UUID]repository.Contact
	Deals    map[uuid.UUID]repository.Deal
	Tasks    map[uuid.UUID]repository.Task
	Users    map[uuid.UUID]repository.User

	Activities []repository.Activity

	// Injectable failures for error-path tests.
	FailCreateAccount  error
	FailCreateContact  error
	FailCreateDeal     error
	FailCreateTask     error
	FailInsertActivity error
	FailUpdateAccount  error

	now time.Time
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		Leads:    make(map[uuid.UUID]repository.Lead),
		Accounts: make(map[uuid.UUID]repository.Account),
		Contacts: make(map[uuid.UUID]repository.Contact),
		Deals:    make(map[uuid.UUID]repository.Deal),
		Tasks:    make(map[uuid.UUID]repository.Task),
		Users:    make(map[uuid.UUID]repository.User),
		now:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

var _ repository.Store = (*Store)(nil)

// tick advances the internal timestamp so insertion order is recoverable
// from CreatedAt.
func (s *Store) tick() time.Time {
	s.now = s.now.Add(time.Millisecond)
	return s.now
}

// SeedLead inserts a lead directly, bypassing CreateLead defaults.
func (s *Store) SeedLead(lead repository.Lead) repository.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = s.tick()
		lead.UpdatedAt = lead.CreatedAt
	}
	if lead.Status == "" {
		lead.Status = domain.LeadStatusNew
	}
	s.Leads[lead.ID] = lead
	return lead
}

// SeedUser inserts a user directly.
func (s *Store) SeedUser(user repository.User) repository.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.tick()
	}
	s.Users[user.ID] = user
	return user
}

// SeedAccount inserts an account directly.
func (s *Store) SeedAccount(account repository.Account) repository.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = s.tick()
	}
	s.Accounts[account.ID] = account
	return account
}

// SeedDeal inserts a deal directly.
func (s *Store) SeedDeal(deal repository.Deal) repository.Deal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	if deal.CreatedAt.IsZero() {
		deal.CreatedAt = s.tick()
	}
	s.Deals[deal.ID] = deal
	return deal
}

// SeedTask inserts a task directly.
func (s *Store) SeedTask(task repository.Task) repository.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = s.tick()
	}
	s.Tasks[task.ID] = task
	return task
}

// SeedActivity appends an activity directly.
func (s *Store) SeedActivity(a repository.Activity) repository.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.tick()
	}
	s.Activities = append(s.Activities, a)
	return a
}

// ---- LeadReader ----

func (s *Store) GetLead(ctx context.Context, companyID, id uuid.UUID) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.Leads[id]
	if !ok || lead.CompanyID != companyID {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (s *Store) GetLeadForUpdate(ctx context.Context, companyID, id uuid.UUID) (repository.Lead, error) {
	return s.GetLead(ctx, companyID, id)
}

func (s *Store) ListLeadsByStatus(ctx context.Context, companyID uuid.UUID, statuses []domain.LeadStatus) ([]repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[domain.LeadStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	var out []repository.Lead
	for _, lead := range s.Leads {
		if lead.CompanyID == companyID && wanted[lead.Status] {
			out = append(out, lead)
		}
	}
	sortLeadsByCreatedAt(out)
	return out, nil
}

func (s *Store) ListDedupeCandidates(ctx context.Context, companyID uuid.UUID, excludeID *uuid.UUID) ([]repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Lead
	for _, lead := range s.Leads {
		if lead.CompanyID != companyID || lead.IsDuplicate {
			continue
		}
		if excludeID != nil && lead.ID == *excludeID {
			continue
		}
		if lead.Email == nil && lead.Phone == nil && lead.CompanyName == nil {
			continue
		}
		out = append(out, lead)
	}
	sortLeadsByCreatedAt(out)
	return out, nil
}

func (s *Store) ListLeadIDs(ctx context.Context, companyID uuid.UUID, afterID uuid.UUID, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, lead := range s.Leads {
		if lead.CompanyID == companyID && uuidLess(afterID, lead.ID) {
			ids = append(ids, lead.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return uuidLess(ids[i], ids[j]) })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ---- LeadWriter ----

func (s *Store) CreateLead(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.tick()
	lead := repository.Lead{
		ID:              uuid.New(),
		CompanyID:       params.CompanyID,
		FirstName:       params.FirstName,
		LastName:        params.LastName,
		Email:           params.Email,
		Phone:           params.Phone,
		CompanyName:     params.CompanyName,
		Country:         params.Country,
		Source:          params.Source,
		Campaign:        params.Campaign,
		Medium:          params.Medium,
		Term:            params.Term,
		BudgetRange:     params.BudgetRange,
		AuthorityLevel:  params.AuthorityLevel,
		InterestProduct: params.InterestProduct,
		Timeline:        params.Timeline,
		LeadScore:       params.LeadScore,
		Status:          domain.LeadStatusNew,
		AssignedTo:      params.AssignedTo,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.Leads[lead.ID] = lead
	return lead, nil
}

func (s *Store) UpdateLeadFields(ctx context.Context, companyID, id uuid.UUID, params repository.UpdateLeadParams) (repository.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.Leads[id]
	if !ok || lead.CompanyID != companyID {
		return repository.Lead{}, repository.ErrNotFound
	}
	if params.Email != nil {
		lead.Email = params.Email
	}
	if params.Phone != nil {
		lead.Phone = params.Phone
	}
	if params.CompanyName != nil {
		lead.CompanyName = params.CompanyName
	}
	if params.Country != nil {
		lead.Country = params.Country
	}
	if params.Source != nil {
		lead.Source = params.Source
	}
	if params.Campaign != nil {
		lead.Campaign = params.Campaign
	}
	if params.Medium != nil {
		lead.Medium = params.Medium
	}
	if params.Term != nil {
		lead.Term = params.Term
	}
	if params.BudgetRange != nil {
		lead.BudgetRange = params.BudgetRange
	}
	if params.AuthorityLevel != nil {
		lead.AuthorityLevel = params.AuthorityLevel
	}
	if params.InterestProduct != nil {
		lead.InterestProduct = params.InterestProduct
	}
	if params.Timeline != nil {
		lead.Timeline = params.Timeline
	}
	if params.LeadScore != nil {
		lead.LeadScore = *params.LeadScore
	}
	if params.AssignedTo != nil {
		lead.AssignedTo = params.AssignedTo
	}
	lead.UpdatedAt = s.tick()
	s.Leads[id] = lead
	return lead, nil
}

func (s *Store) UpdateLeadStatus(ctx context.Context, companyID, id uuid.UUID, status domain.LeadStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.Leads[id]
	if !ok || lead.CompanyID != companyID {
		return repository.ErrNotFound
	}
	lead.Status = status
	lead.UpdatedAt = s.tick()
	s.Leads[id] = lead
	return nil
}

func (s *Store) UpdateLeadScore(ctx context.Context, companyID, id uuid.UUID, score int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.Leads[id]
	if !ok || lead.CompanyID != companyID {
		return repository.ErrNotFound
	}
	lead.LeadScore = score
	lead.UpdatedAt = s.tick()
	s.Leads[id] = lead
	return nil
}

func (s *Store) IncrementLeadScore(ctx context.Context, companyID, id uuid.UUID, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.Leads[id]
	if !ok || lead.CompanyID != companyID {
		return 0, repository.ErrNotFound
	}
	next := lead.LeadScore + delta
	if next > 100 {
		next = 100
	}
	if next < 0 {
		next = 0
	}
	lead.LeadScore = next
	lead.UpdatedAt = s.tick()
	s.Leads[id] = lead
	return next, nil
}

func (s *Store) AssignLead(ctx context.Context, companyID, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.Leads[id]
	if !ok || lead.CompanyID != companyID {
		return repository.ErrNotFound
	}
	owner := userID
	lead.AssignedTo = &owner
	lead.UpdatedAt = s.tick()
	s.Leads[id] = lead
	return nil
}

func (s *Store) MarkLeadDuplicate(ctx context.Context, companyID, id uuid.UUID, isDuplicate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.Leads[id]
	if !ok || lead.CompanyID != companyID {
		return repository.ErrNotFound
	}
	lead.IsDuplicate = isDuplicate
	lead.UpdatedAt = s.tick()
	s.Leads[id] = lead
	return nil
}

func (s *Store) MarkLeadConverted(ctx context.Context, companyID, id, accountID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.Leads[id]
	if !ok || lead.CompanyID != companyID || lead.Status == domain.LeadStatusConverted {
		return repository.ErrNotFound
	}
	lead.Status = domain.LeadStatusConverted
	lead.ConvertedAt = &at
	account := accountID
	lead.ConvertedToID = &account
	lead.UpdatedAt = s.tick()
	s.Leads[id] = lead
	return nil
}

// ---- AccountStore ----

func (s *Store) GetAccount(ctx context.Context, companyID, id uuid.UUID) (repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.Accounts[id]
	if !ok || account.CompanyID != companyID {
		return repository.Account{}, repository.ErrNotFound
	}
	return account, nil
}

func (s *Store) FindAccountByName(ctx context.Context, companyID uuid.UUID, normalizedName string) (repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *repository.Account
	for i := range s.Accounts {
		account := s.Accounts[i]
		if account.CompanyID != companyID || account.NormalizedName != normalizedName {
			continue
		}
		if found == nil || account.CreatedAt.Before(found.CreatedAt) {
			copied := account
			found = &copied
		}
	}
	if found == nil {
		return repository.Account{}, repository.ErrNotFound
	}
	return *found, nil
}

func (s *Store) CreateAccount(ctx context.Context, params repository.CreateAccountParams) (repository.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateAccount != nil {
		return repository.Account{}, s.FailCreateAccount
	}
	now := s.tick()
	account := repository.Account{
		ID:             uuid.New(),
		CompanyID:      params.CompanyID,
		Name:           params.Name,
		NormalizedName: params.NormalizedName,
		Industry:       params.Industry,
		Country:        params.Country,
		HealthScore:    domain.HealthGreen,
		LifecycleStage: domain.StageMQA,
		IsActive:       true,
		OwnerID:        params.OwnerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Accounts[account.ID] = account
	return account, nil
}

func (s *Store) UpdateAccountDerived(ctx context.Context, companyID, id uuid.UUID, health domain.HealthScore, stage domain.LifecycleStage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpdateAccount != nil {
		return s.FailUpdateAccount
	}
	account, ok := s.Accounts[id]
	if !ok || account.CompanyID != companyID {
		return repository.ErrNotFound
	}
	account.HealthScore = health
	account.LifecycleStage = stage
	account.UpdatedAt = s.tick()
	s.Accounts[id] = account
	return nil
}

func (s *Store) ListAccountIDs(ctx context.Context, companyID uuid.UUID, afterID uuid.UUID, limit int) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, account := range s.Accounts {
		if account.CompanyID == companyID && uuidLess(afterID, account.ID) {
			ids = append(ids, account.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return uuidLess(ids[i], ids[j]) })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

// ---- ContactStore ----

func (s *Store) CreateContact(ctx context.Context, params repository.CreateContactParams) (repository.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateContact != nil {
		return repository.Contact{}, s.FailCreateContact
	}
	now := s.tick()
	contact := repository.Contact{
		ID:        uuid.New(),
		CompanyID: params.CompanyID,
		AccountID: params.AccountID,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
		Phone:     params.Phone,
		IsPrimary: params.IsPrimary,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Contacts[contact.ID] = contact
	return contact, nil
}

func (s *Store) AccountHasPrimaryContact(ctx context.Context, companyID, accountID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, contact := range s.Contacts {
		if contact.CompanyID == companyID && contact.AccountID == accountID && contact.IsPrimary {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ClearPrimaryContact(ctx context.Context, companyID, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, contact := range s.Contacts {
		if contact.CompanyID == companyID && contact.AccountID == accountID && contact.IsPrimary {
			contact.IsPrimary = false
			contact.UpdatedAt = s.tick()
			s.Contacts[id] = contact
		}
	}
	return nil
}

func (s *Store) SetPrimaryContact(ctx context.Context, companyID, accountID, contactID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	contact, ok := s.Contacts[contactID]
	if !ok || contact.CompanyID != companyID || contact.AccountID != accountID {
		return repository.ErrNotFound
	}
	contact.IsPrimary = true
	contact.UpdatedAt = s.tick()
	s.Contacts[contactID] = contact
	return nil
}

// ---- DealStore ----

func (s *Store) CreateDeal(ctx context.Context, params repository.CreateDealParams) (repository.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateDeal != nil {
		return repository.Deal{}, s.FailCreateDeal
	}
	now := s.tick()
	deal := repository.Deal{
		ID:                uuid.New(),
		CompanyID:         params.CompanyID,
		AccountID:         params.AccountID,
		LeadID:            params.LeadID,
		Title:             params.Title,
		Stage:             params.Stage,
		Status:            domain.DealStatusOpen,
		Value:             params.Value,
		ExpectedCloseDate: params.ExpectedCloseDate,
		OwnerID:           params.OwnerID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.Deals[deal.ID] = deal
	return deal, nil
}

func (s *Store) ListDealsByAccount(ctx context.Context, companyID, accountID uuid.UUID) ([]repository.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Deal
	for _, deal := range s.Deals {
		if deal.CompanyID == companyID && deal.AccountID == accountID {
			out = append(out, deal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListDealsByLead(ctx context.Context, companyID, leadID uuid.UUID) ([]repository.Deal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Deal
	for _, deal := range s.Deals {
		if deal.CompanyID == companyID && deal.LeadID != nil && *deal.LeadID == leadID {
			out = append(out, deal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ---- TaskStore ----

func (s *Store) CreateTask(ctx context.Context, params repository.CreateTaskParams) (repository.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreateTask != nil {
		return repository.Task{}, s.FailCreateTask
	}
	now := s.tick()
	task := repository.Task{
		ID:             uuid.New(),
		CompanyID:      params.CompanyID,
		LeadID:         params.LeadID,
		AccountID:      params.AccountID,
		DealID:         params.DealID,
		Title:          params.Title,
		Description:    params.Description,
		Status:         domain.TaskStatusPending,
		Priority:       params.Priority,
		DueDate:        params.DueDate,
		AssignedTo:     params.AssignedTo,
		AutomationKind: params.AutomationKind,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.Tasks[task.ID] = task
	return task, nil
}

func (s *Store) ListOpenAutomationTasks(ctx context.Context, companyID, leadID uuid.UUID, kind string) ([]repository.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Task
	for _, task := range s.Tasks {
		if task.CompanyID != companyID || task.LeadID == nil || *task.LeadID != leadID {
			continue
		}
		if task.AutomationKind == nil || *task.AutomationKind != kind {
			continue
		}
		if !domain.IsOpenTaskStatus(task.Status) {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListOverdueTasks(ctx context.Context, companyID uuid.UUID, before time.Time) ([]repository.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Task
	for _, task := range s.Tasks {
		if task.CompanyID != companyID || !domain.IsOpenTaskStatus(task.Status) {
			continue
		}
		if task.DueDate == nil || !task.DueDate.Before(before) {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (s *Store) EscalateTask(ctx context.Context, companyID, id uuid.UUID, priority domain.TaskPriority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.Tasks[id]
	if !ok || task.CompanyID != companyID {
		return repository.ErrNotFound
	}
	task.Priority = priority
	task.UpdatedAt = s.tick()
	s.Tasks[id] = task
	return nil
}

// ---- ActivityStore ----

func (s *Store) InsertActivity(ctx context.Context, params repository.InsertActivityParams) (repository.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailInsertActivity != nil {
		return repository.Activity{}, s.FailInsertActivity
	}
	activity := repository.Activity{
		ID:           uuid.New(),
		CompanyID:    params.CompanyID,
		LeadID:       params.LeadID,
		AccountID:    params.AccountID,
		DealID:       params.DealID,
		ActivityType: params.ActivityType,
		Subject:      params.Subject,
		Outcome:      params.Outcome,
		ActivityDate: params.ActivityDate,
		CreatedBy:    params.CreatedBy,
		CreatedAt:    s.tick(),
	}
	s.Activities = append(s.Activities, activity)
	return activity, nil
}

func (s *Store) ListLeadActivities(ctx context.Context, companyID, leadID uuid.UUID, since time.Time) ([]repository.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Activity
	for _, a := range s.Activities {
		if a.CompanyID != companyID || a.LeadID == nil || *a.LeadID != leadID {
			continue
		}
		if a.ActivityDate.Before(since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityDate.After(out[j].ActivityDate) })
	return out, nil
}

func (s *Store) ListAccountActivities(ctx context.Context, companyID, accountID uuid.UUID, since time.Time) ([]repository.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Activity
	for _, a := range s.Activities {
		if a.CompanyID != companyID || a.AccountID == nil || *a.AccountID != accountID {
			continue
		}
		if a.ActivityDate.Before(since) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ActivityDate.After(out[j].ActivityDate) })
	return out, nil
}

// ---- UserDirectory ----

func (s *Store) GetUser(ctx context.Context, companyID, id uuid.UUID) (repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.Users[id]
	if !ok || user.CompanyID != companyID {
		return repository.User{}, repository.ErrNotFound
	}
	return user, nil
}

func (s *Store) FindUserByEmail(ctx context.Context, companyID uuid.UUID, email string) (repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.Users {
		if user.CompanyID == companyID && strings.EqualFold(user.Email, email) {
			return user, nil
		}
	}
	return repository.User{}, repository.ErrNotFound
}

func (s *Store) ListEligibleUsers(ctx context.Context, companyID uuid.UUID, roles []domain.UserRole) ([]repository.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[domain.UserRole]bool, len(roles))
	for _, role := range roles {
		wanted[role] = true
	}
	var out []repository.User
	for _, user := range s.Users {
		if user.CompanyID == companyID && user.IsActive && wanted[user.Role] {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastAssignedAt == nil && b.LastAssignedAt != nil:
			return true
		case a.LastAssignedAt != nil && b.LastAssignedAt == nil:
			return false
		case a.LastAssignedAt != nil && b.LastAssignedAt != nil && !a.LastAssignedAt.Equal(*b.LastAssignedAt):
			return a.LastAssignedAt.Before(*b.LastAssignedAt)
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	return out, nil
}

func (s *Store) CountActiveLeadsByOwner(ctx context.Context, companyID uuid.UUID, assignedSince *time.Time) (map[uuid.UUID]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, lead := range s.Leads {
		if lead.CompanyID != companyID || lead.AssignedTo == nil {
			continue
		}
		if !domain.IsActiveLeadStatus(lead.Status) {
			continue
		}
		if assignedSince != nil && lead.CreatedAt.Before(*assignedSince) {
			continue
		}
		counts[*lead.AssignedTo]++
	}
	return counts, nil
}

func (s *Store) TouchLastAssigned(ctx context.Context, companyID, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.Users[userID]
	if !ok || user.CompanyID != companyID {
		return repository.ErrNotFound
	}
	stamped := at
	user.LastAssignedAt = &stamped
	s.Users[userID] = user
	return nil
}

// ---- transactions ----

// WithTx snapshots all state, runs fn against the same store, and restores
// the snapshot when fn fails. This gives tests real all-or-nothing behavior.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.mu.Lock()
	snapshot := s.copyState()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.restoreState(snapshot)
		s.mu.Unlock()
		return err
	}
	return nil
}

type state struct {
	leads      map[uuid.UUID]repository.Lead
	accounts   map[uuid.UUID]repository.Account
	contacts   map[uuid.UUID]repository.Contact
	deals      map[uuid.UUID]repository.Deal
	tasks      map[uuid.UUID]repository.Task
	users      map[uuid.UUID]repository.User
	activities []repository.Activity
}

func (s *Store) copyState() state {
	return state{
		leads:      copyMap(s.Leads),
		accounts:   copyMap(s.Accounts),
		contacts:   copyMap(s.Contacts),
		deals:      copyMap(s.Deals),
		tasks:      copyMap(s.Tasks),
		users:      copyMap(s.Users),
		activities: append([]repository.Activity(nil), s.Activities...),
	}
}

func (s *Store) restoreState(snap state) {
	s.Leads = snap.leads
	s.Accounts = snap.accounts
	s.Contacts = snap.contacts
	s.Deals = snap.deals
	s.Tasks = snap.tasks
	s.Users = snap.users
	s.Activities = snap.activities
}

func copyMap[V any](src map[uuid.UUID]V) map[uuid.UUID]V {
	dst := make(map[uuid.UUID]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func uuidLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func sortLeadsByCreatedAt(leads []repository.Lead) {
	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.Before(leads[j].CreatedAt) })
}
