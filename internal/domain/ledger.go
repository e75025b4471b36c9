package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a single ledger entry owned by one user.
type Transaction struct {
	ID       uuid.UUID       `json:"id"`
	OwnerID  uuid.UUID       `json:"owner_id"`
	Merchant string          `json:"merchant"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Date     time.Time       `json:"date"`
	Icon     string          `json:"icon"`
}

// Account types used by the frontend.
const (
	AccountTypeChecking   = "checking"
	AccountTypeSavings    = "savings"
	AccountTypeCredit     = "credit"
	AccountTypeInvestment = "investment"
)

type Account struct {
	ID      uuid.UUID       `json:"id"`
	OwnerID uuid.UUID       `json:"owner_id"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Balance decimal.Decimal `json:"balance"`
	Color   string          `json:"color"`
	Initial string          `json:"initial"`
}

// Expense is a recurring expense. Fixed expenses (rent, subscriptions) are
// distinguished from variable ones.
type Expense struct {
	ID       uuid.UUID       `json:"id"`
	OwnerID  uuid.UUID       `json:"owner_id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	IsFixed  bool            `json:"is_fixed"`
	Icon     string          `json:"icon"`
}

type Goal struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	SavedAmount  decimal.Decimal `json:"saved_amount"`
	Icon         string          `json:"icon"`
}

// Achievement is an achievement the owner has unlocked.
type Achievement struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	XPReward    int       `json:"xp_reward"`
	UnlockedAt  time.Time `json:"unlocked_at"`
}

// Profile carries the per-user gamification counters and the wage used for
// time-cost estimates.
type Profile struct {
	OwnerID    uuid.UUID        `json:"owner_id"`
	XP         int              `json:"xp"`
	Level      int              `json:"level"`
	HourlyRate *decimal.Decimal `json:"hourly_rate,omitempty"`
}

// CategoryTotal is one row of a spending summary.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}
