// Package memory is an in-memory ledger.Store. Data is lost on restart; it
// backs tests and single-process demos.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store is safe for concurrent use. Records are copied on the way in and out.
type Store struct {
	mu           sync.RWMutex
	transactions map[uuid.UUID]domain.Transaction
	accounts     map[uuid.UUID]domain.Account
	expenses     map[uuid.UUID]domain.Expense
	goals        map[uuid.UUID]domain.Goal
	achievements map[uuid.UUID][]domain.Achievement
	profiles     map[uuid.UUID]domain.Profile

	// insertion order, so equal dates list newest insert first
	seq      int64
	txSeq    map[uuid.UUID]int64
	orderSeq map[uuid.UUID]int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		transactions: make(map[uuid.UUID]domain.Transaction),
		accounts:     make(map[uuid.UUID]domain.Account),
		expenses:     make(map[uuid.UUID]domain.Expense),
		goals:        make(map[uuid.UUID]domain.Goal),
		achievements: make(map[uuid.UUID][]domain.Achievement),
		profiles:     make(map[uuid.UUID]domain.Profile),
		txSeq:        make(map[uuid.UUID]int64),
		orderSeq:     make(map[uuid.UUID]int64),
	}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func (s *Store) ListTransactions(ctx context.Context, owner uuid.UUID, filter ledger.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category := strings.ToLower(filter.Category)
	merchant := strings.ToLower(filter.Merchant)

	var result []domain.Transaction
	for _, tx := range s.transactions {
		if tx.OwnerID != owner {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(tx.Category), category) {
			continue
		}
		if merchant != "" && !strings.Contains(strings.ToLower(tx.Merchant), merchant) {
			continue
		}
		if !filter.Since.IsZero() && tx.Date.Before(filter.Since) {
			continue
		}
		result = append(result, tx)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return s.txSeq[result[i].ID] > s.txSeq[result[j].ID]
	})

	if limit := ledger.NormalizeLimit(filter.Limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) GetTransaction(ctx context.Context, owner, id uuid.UUID) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok || tx.OwnerID != owner {
		return nil, domain.NewNotFoundError(ledger.EntityTransaction)
	}
	return &tx, nil
}

func (s *Store) CreateTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx.OwnerID == uuid.Nil {
		return fmt.Errorf("CreateTransaction: owner is required")
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.transactions[tx.ID] = *tx
	s.txSeq[tx.ID] = s.next()
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[tx.ID]
	if !ok || existing.OwnerID != tx.OwnerID {
		return domain.NewNotFoundError(ledger.EntityTransaction)
	}
	s.transactions[tx.ID] = *tx
	return nil
}

func (s *Store) DeleteTransaction(ctx context.Context, owner, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.transactions[id]
	if !ok || existing.OwnerID != owner {
		return domain.NewNotFoundError(ledger.EntityTransaction)
	}
	delete(s.transactions, id)
	delete(s.txSeq, id)
	return nil
}

func (s *Store) SpendingByCategory(ctx context.Context, owner uuid.UUID, since time.Time) ([]domain.CategoryTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := make(map[string]decimal.Decimal)
	for _, tx := range s.transactions {
		if tx.OwnerID != owner || tx.Date.Before(since) {
			continue
		}
		totals[tx.Category] = totals[tx.Category].Add(tx.Amount)
	}

	result := make([]domain.CategoryTotal, 0, len(totals))
	for category, total := range totals {
		result = append(result, domain.CategoryTotal{Category: category, Total: total})
	}
	ledger.SortTotals(result)
	return result, nil
}

func (s *Store) ListAccounts(ctx context.Context, owner uuid.UUID) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Account
	for _, a := range s.accounts {
		if a.OwnerID == owner {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return s.orderSeq[result[i].ID] < s.orderSeq[result[j].ID]
	})
	return result, nil
}

func (s *Store) GetAccount(ctx context.Context, owner, id uuid.UUID) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok || a.OwnerID != owner {
		return nil, domain.NewNotFoundError(ledger.EntityAccount)
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, account *domain.Account) error {
	if account.OwnerID == uuid.Nil {
		return fmt.Errorf("CreateAccount: owner is required")
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts[account.ID] = *account
	s.orderSeq[account.ID] = s.next()
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[account.ID]
	if !ok || existing.OwnerID != account.OwnerID {
		return domain.NewNotFoundError(ledger.EntityAccount)
	}
	s.accounts[account.ID] = *account
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, owner, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[id]
	if !ok || existing.OwnerID != owner {
		return domain.NewNotFoundError(ledger.EntityAccount)
	}
	delete(s.accounts, id)
	delete(s.orderSeq, id)
	return nil
}

func (s *Store) ListExpenses(ctx context.Context, owner uuid.UUID) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Expense
	for _, e := range s.expenses {
		if e.OwnerID == owner {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return s.orderSeq[result[i].ID] < s.orderSeq[result[j].ID]
	})
	return result, nil
}

func (s *Store) GetExpense(ctx context.Context, owner, id uuid.UUID) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.expenses[id]
	if !ok || e.OwnerID != owner {
		return nil, domain.NewNotFoundError(ledger.EntityExpense)
	}
	return &e, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense *domain.Expense) error {
	if expense.OwnerID == uuid.Nil {
		return fmt.Errorf("CreateExpense: owner is required")
	}
	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses[expense.ID] = *expense
	s.orderSeq[expense.ID] = s.next()
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, owner, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.expenses[id]
	if !ok || existing.OwnerID != owner {
		return domain.NewNotFoundError(ledger.EntityExpense)
	}
	delete(s.expenses, id)
	delete(s.orderSeq, id)
	return nil
}

func (s *Store) ListGoals(ctx context.Context, owner uuid.UUID) ([]domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Goal
	for _, g := range s.goals {
		if g.OwnerID == owner {
			result = append(result, g)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return s.orderSeq[result[i].ID] < s.orderSeq[result[j].ID]
	})
	return result, nil
}

func (s *Store) GetGoal(ctx context.Context, owner, id uuid.UUID) (*domain.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.goals[id]
	if !ok || g.OwnerID != owner {
		return nil, domain.NewNotFoundError(ledger.EntityGoal)
	}
	return &g, nil
}

func (s *Store) CreateGoal(ctx context.Context, goal *domain.Goal) error {
	if goal.OwnerID == uuid.Nil {
		return fmt.Errorf("CreateGoal: owner is required")
	}
	if goal.ID == uuid.Nil {
		goal.ID = uuid.New()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.goals[goal.ID] = *goal
	s.orderSeq[goal.ID] = s.next()
	return nil
}

func (s *Store) UpdateGoal(ctx context.Context, goal *domain.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.goals[goal.ID]
	if !ok || existing.OwnerID != goal.OwnerID {
		return domain.NewNotFoundError(ledger.EntityGoal)
	}
	s.goals[goal.ID] = *goal
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, owner, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.goals[id]
	if !ok || existing.OwnerID != owner {
		return domain.NewNotFoundError(ledger.EntityGoal)
	}
	delete(s.goals, id)
	delete(s.orderSeq, id)
	return nil
}

func (s *Store) ListAchievements(ctx context.Context, owner uuid.UUID) ([]domain.Achievement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]domain.Achievement(nil), s.achievements[owner]...), nil
}

// UnlockAchievement records an achievement once per name and adds its XP
// reward to the owner's profile.
func (s *Store) UnlockAchievement(ctx context.Context, owner uuid.UUID, achievement domain.Achievement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.achievements[owner] {
		if a.Name == achievement.Name {
			return nil
		}
	}
	if achievement.UnlockedAt.IsZero() {
		achievement.UnlockedAt = time.Now().UTC()
	}
	s.achievements[owner] = append(s.achievements[owner], achievement)

	profile, ok := s.profiles[owner]
	if !ok {
		profile = *ledger.NewProfile(owner)
	}
	profile.XP += achievement.XPReward
	s.profiles[owner] = profile
	return nil
}

func (s *Store) GetProfile(ctx context.Context, owner uuid.UUID) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[owner]
	if !ok {
		return ledger.NewProfile(owner), nil
	}
	if p.HourlyRate != nil {
		rate := *p.HourlyRate
		p.HourlyRate = &rate
	}
	return &p, nil
}

func (s *Store) SaveProfile(ctx context.Context, profile *domain.Profile) error {
	if profile.OwnerID == uuid.Nil {
		return fmt.Errorf("SaveProfile: owner is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := *profile
	if p.HourlyRate != nil {
		rate := *p.HourlyRate
		p.HourlyRate = &rate
	}
	s.profiles[profile.OwnerID] = p
	return nil
}

var _ ledger.Store = (*Store)(nil)
