// Package ledger defines the owner-scoped store the tools and pipelines read
// and write. Every method takes the owner explicitly; a record that belongs to
// someone else is reported exactly like a missing one.
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/google/uuid"
)

// DefaultTransactionLimit caps ListTransactions when no limit is given.
const DefaultTransactionLimit = 10

// Entity names used in not-found errors.
const (
	EntityTransaction = "transaction"
	EntityAccount     = "account"
	EntityExpense     = "expense"
	EntityGoal        = "goal"
)

// TransactionFilter narrows ListTransactions. Category and Merchant match as
// case-insensitive substrings. Results are newest first.
type TransactionFilter struct {
	Category string
	Merchant string
	Since    time.Time
	Limit    int
}

// Store is the ledger persistence contract.
type Store interface {
	ListTransactions(ctx context.Context, owner uuid.UUID, filter TransactionFilter) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, owner, id uuid.UUID) (*domain.Transaction, error)
	CreateTransaction(ctx context.Context, tx *domain.Transaction) error
	UpdateTransaction(ctx context.Context, tx *domain.Transaction) error
	DeleteTransaction(ctx context.Context, owner, id uuid.UUID) error

	// SpendingByCategory sums transactions dated on or after since, largest
	// total first.
	SpendingByCategory(ctx context.Context, owner uuid.UUID, since time.Time) ([]domain.CategoryTotal, error)

	ListAccounts(ctx context.Context, owner uuid.UUID) ([]domain.Account, error)
	GetAccount(ctx context.Context, owner, id uuid.UUID) (*domain.Account, error)
	CreateAccount(ctx context.Context, account *domain.Account) error
	UpdateAccount(ctx context.Context, account *domain.Account) error
	DeleteAccount(ctx context.Context, owner, id uuid.UUID) error

	ListExpenses(ctx context.Context, owner uuid.UUID) ([]domain.Expense, error)
	GetExpense(ctx context.Context, owner, id uuid.UUID) (*domain.Expense, error)
	CreateExpense(ctx context.Context, expense *domain.Expense) error
	DeleteExpense(ctx context.Context, owner, id uuid.UUID) error

	ListGoals(ctx context.Context, owner uuid.UUID) ([]domain.Goal, error)
	GetGoal(ctx context.Context, owner, id uuid.UUID) (*domain.Goal, error)
	CreateGoal(ctx context.Context, goal *domain.Goal) error
	UpdateGoal(ctx context.Context, goal *domain.Goal) error
	DeleteGoal(ctx context.Context, owner, id uuid.UUID) error

	ListAchievements(ctx context.Context, owner uuid.UUID) ([]domain.Achievement, error)
	UnlockAchievement(ctx context.Context, owner uuid.UUID, achievement domain.Achievement) error

	// GetProfile returns a level 1, zero XP profile for owners that have none.
	GetProfile(ctx context.Context, owner uuid.UUID) (*domain.Profile, error)
	SaveProfile(ctx context.Context, profile *domain.Profile) error
}

// NewProfile is the profile of an owner with no recorded progress.
func NewProfile(owner uuid.UUID) *domain.Profile {
	return &domain.Profile{OwnerID: owner, XP: 0, Level: 1}
}

// NormalizeLimit applies DefaultTransactionLimit to non-positive limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultTransactionLimit
	}
	return limit
}

// SortTotals orders a spending summary by total, largest first, breaking ties
// by category name.
func SortTotals(totals []domain.CategoryTotal) {
	sort.SliceStable(totals, func(i, j int) bool {
		if c := totals[i].Total.Cmp(totals[j].Total); c != 0 {
			return c > 0
		}
		return totals[i].Category < totals[j].Category
	})
}
