// Package ledgertest holds the behaviour every ledger.Store backend must
// share, run from each backend's tests.
package ledgertest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RunStoreSuite exercises a fresh store returned by newStore for each subtest.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) ledger.Store) {
	t.Helper()

	t.Run("transactions are owner scoped", func(t *testing.T) {
		testTransactionOwnership(t, newStore(t))
	})
	t.Run("transaction filters and ordering", func(t *testing.T) {
		testTransactionFilters(t, newStore(t))
	})
	t.Run("transaction filters match wildcards literally", func(t *testing.T) {
		testTransactionFilterLiterals(t, newStore(t))
	})
	t.Run("spending by category", func(t *testing.T) {
		testSpendingByCategory(t, newStore(t))
	})
	t.Run("accounts expenses goals", func(t *testing.T) {
		testOtherEntities(t, newStore(t))
	})
	t.Run("achievements and profile", func(t *testing.T) {
		testAchievementsAndProfile(t, newStore(t))
	})
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func testTransactionOwnership(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	tx := &domain.Transaction{
		OwnerID:  alice,
		Merchant: "Starbucks",
		Category: "Food & Drink",
		Amount:   decimal.RequireFromString("5.75"),
		Date:     day("2025-01-10"),
		Icon:     "Coffee",
	}
	if err := store.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if tx.ID == uuid.Nil {
		t.Fatal("CreateTransaction did not assign an id")
	}

	got, err := store.GetTransaction(ctx, alice, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Merchant != "Starbucks" || !got.Amount.Equal(tx.Amount) || !got.Date.Equal(tx.Date) {
		t.Errorf("GetTransaction = %+v, want %+v", got, tx)
	}

	if _, err := store.GetTransaction(ctx, bob, tx.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetTransaction as other owner: err = %v, want not found", err)
	}
	if err := store.DeleteTransaction(ctx, bob, tx.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteTransaction as other owner: err = %v, want not found", err)
	}
	stolen := *got
	stolen.OwnerID = bob
	stolen.Merchant = "Hijacked"
	if err := store.UpdateTransaction(ctx, &stolen); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("UpdateTransaction as other owner: err = %v, want not found", err)
	}

	got.Amount = decimal.RequireFromString("6.25")
	if err := store.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}
	again, _ := store.GetTransaction(ctx, alice, tx.ID)
	if again.Merchant != "Starbucks" || !again.Amount.Equal(decimal.RequireFromString("6.25")) {
		t.Errorf("after update = %+v", again)
	}

	if err := store.DeleteTransaction(ctx, alice, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := store.GetTransaction(ctx, alice, tx.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetTransaction after delete: err = %v, want not found", err)
	}
}

func testTransactionFilters(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	owner := uuid.New()

	seed := []domain.Transaction{
		{Merchant: "Whole Foods", Category: "Groceries", Amount: decimal.NewFromInt(40), Date: day("2025-01-01")},
		{Merchant: "Starbucks", Category: "Food & Drink", Amount: decimal.NewFromInt(5), Date: day("2025-01-03")},
		{Merchant: "Starbucks Reserve", Category: "Food & Drink", Amount: decimal.NewFromInt(7), Date: day("2025-01-05")},
		{Merchant: "Uber", Category: "Transport", Amount: decimal.NewFromInt(12), Date: day("2025-01-04")},
	}
	for i := range seed {
		seed[i].OwnerID = owner
		if err := store.CreateTransaction(ctx, &seed[i]); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}
	other := domain.Transaction{OwnerID: uuid.New(), Merchant: "Starbucks", Category: "Food & Drink", Amount: decimal.NewFromInt(1), Date: day("2025-01-06")}
	if err := store.CreateTransaction(ctx, &other); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	tests := []struct {
		name   string
		filter ledger.TransactionFilter
		want   []string
	}{
		{"newest first", ledger.TransactionFilter{}, []string{"Starbucks Reserve", "Uber", "Starbucks", "Whole Foods"}},
		{"merchant substring case-insensitive", ledger.TransactionFilter{Merchant: "starbucks"}, []string{"Starbucks Reserve", "Starbucks"}},
		{"category substring", ledger.TransactionFilter{Category: "drink"}, []string{"Starbucks Reserve", "Starbucks"}},
		{"limit", ledger.TransactionFilter{Limit: 2}, []string{"Starbucks Reserve", "Uber"}},
		{"since", ledger.TransactionFilter{Since: day("2025-01-04")}, []string{"Starbucks Reserve", "Uber"}},
		{"no match", ledger.TransactionFilter{Merchant: "Amazon"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListTransactions(ctx, owner, tt.filter)
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d transactions, want %d", len(got), len(tt.want))
			}
			for i, tx := range got {
				if tx.Merchant != tt.want[i] {
					t.Errorf("[%d] merchant = %q, want %q", i, tx.Merchant, tt.want[i])
				}
			}
		})
	}
}

func testTransactionFilterLiterals(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	owner := uuid.New()

	for i, merchant := range []string{"Starbucks", "Whole_Foods", "Juice 100%", `C:\Shop`} {
		tx := domain.Transaction{
			OwnerID:  owner,
			Merchant: merchant,
			Category: "Misc",
			Amount:   decimal.NewFromInt(1),
			Date:     day("2025-01-01").AddDate(0, 0, i),
		}
		if err := store.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	tests := []struct {
		name     string
		merchant string
		want     []string
	}{
		{"underscore", "_", []string{"Whole_Foods"}},
		{"percent", "%", []string{"Juice 100%"}},
		{"percent suffix", "0%", []string{"Juice 100%"}},
		{"backslash", `\`, []string{`C:\Shop`}},
		{"underscore inside word", "e_f", []string{"Whole_Foods"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListTransactions(ctx, owner, ledger.TransactionFilter{Merchant: tt.merchant})
			if err != nil {
				t.Fatalf("ListTransactions: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d transactions, want %d: %+v", len(got), len(tt.want), got)
			}
			for i, tx := range got {
				if tx.Merchant != tt.want[i] {
					t.Errorf("[%d] merchant = %q, want %q", i, tx.Merchant, tt.want[i])
				}
			}
		})
	}
}

func testSpendingByCategory(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	owner := uuid.New()

	for _, tx := range []domain.Transaction{
		{Category: "Groceries", Amount: decimal.RequireFromString("10.10"), Date: day("2025-02-01")},
		{Category: "Groceries", Amount: decimal.RequireFromString("20.20"), Date: day("2025-02-02")},
		{Category: "Transport", Amount: decimal.RequireFromString("45.00"), Date: day("2025-02-03")},
		{Category: "Transport", Amount: decimal.RequireFromString("99.00"), Date: day("2024-12-01")},
	} {
		tx.OwnerID = owner
		tx.Merchant = "m"
		if err := store.CreateTransaction(ctx, &tx); err != nil {
			t.Fatalf("CreateTransaction: %v", err)
		}
	}

	got, err := store.SpendingByCategory(ctx, owner, day("2025-01-01"))
	if err != nil {
		t.Fatalf("SpendingByCategory: %v", err)
	}
	want := []domain.CategoryTotal{
		{Category: "Transport", Total: decimal.RequireFromString("45")},
		{Category: "Groceries", Total: decimal.RequireFromString("30.30")},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d totals, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Category != want[i].Category || !got[i].Total.Equal(want[i].Total) {
			t.Errorf("[%d] = %s %s, want %s %s", i, got[i].Category, got[i].Total, want[i].Category, want[i].Total)
		}
	}

	empty, err := store.SpendingByCategory(ctx, uuid.New(), day("2025-01-01"))
	if err != nil || len(empty) != 0 {
		t.Errorf("unknown owner: got %v, %v", empty, err)
	}
}

func testOtherEntities(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	acct := &domain.Account{OwnerID: owner, Name: "Everyday", Type: domain.AccountTypeChecking, Balance: decimal.NewFromInt(1200), Color: "bg-blue-500", Initial: "E"}
	if err := store.CreateAccount(ctx, acct); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	acct.Balance = decimal.RequireFromString("1100.50")
	if err := store.UpdateAccount(ctx, acct); err != nil {
		t.Fatalf("UpdateAccount: %v", err)
	}
	accounts, err := store.ListAccounts(ctx, owner)
	if err != nil || len(accounts) != 1 || !accounts[0].Balance.Equal(decimal.RequireFromString("1100.50")) {
		t.Errorf("ListAccounts = %+v, %v", accounts, err)
	}
	if _, err := store.GetAccount(ctx, stranger, acct.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetAccount as stranger: %v", err)
	}
	if err := store.DeleteAccount(ctx, owner, acct.ID); err != nil {
		t.Errorf("DeleteAccount: %v", err)
	}

	exp := &domain.Expense{OwnerID: owner, Name: "Netflix", Category: "Entertainment", Amount: decimal.RequireFromString("15.49"), IsFixed: true, Icon: "Bill"}
	if err := store.CreateExpense(ctx, exp); err != nil {
		t.Fatalf("CreateExpense: %v", err)
	}
	got, err := store.GetExpense(ctx, owner, exp.ID)
	if err != nil || !got.IsFixed || got.Name != "Netflix" {
		t.Errorf("GetExpense = %+v, %v", got, err)
	}
	if err := store.DeleteExpense(ctx, stranger, exp.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("DeleteExpense as stranger: %v", err)
	}

	first := &domain.Goal{OwnerID: owner, Name: "Vacation", Description: "Japan", TargetAmount: decimal.NewFromInt(3000), Icon: "Target"}
	second := &domain.Goal{OwnerID: owner, Name: "Laptop", TargetAmount: decimal.NewFromInt(1500), Icon: "Target"}
	for _, g := range []*domain.Goal{first, second} {
		if err := store.CreateGoal(ctx, g); err != nil {
			t.Fatalf("CreateGoal: %v", err)
		}
	}
	first.SavedAmount = decimal.NewFromInt(250)
	if err := store.UpdateGoal(ctx, first); err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	goals, err := store.ListGoals(ctx, owner)
	if err != nil || len(goals) != 2 || goals[0].Name != "Vacation" || !goals[0].SavedAmount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("ListGoals = %+v, %v", goals, err)
	}
	if err := store.DeleteGoal(ctx, owner, second.ID); err != nil {
		t.Errorf("DeleteGoal: %v", err)
	}
}

func testAchievementsAndProfile(t *testing.T, store ledger.Store) {
	ctx := context.Background()
	owner := uuid.New()

	p, err := store.GetProfile(ctx, owner)
	if err != nil || p.Level != 1 || p.XP != 0 || p.HourlyRate != nil {
		t.Fatalf("default profile = %+v, %v", p, err)
	}

	a := domain.Achievement{Name: "First Receipt", Description: "Scanned a receipt", Icon: "Receipt", XPReward: 50, UnlockedAt: day("2025-03-01")}
	if err := store.UnlockAchievement(ctx, owner, a); err != nil {
		t.Fatalf("UnlockAchievement: %v", err)
	}
	if err := store.UnlockAchievement(ctx, owner, a); err != nil {
		t.Fatalf("UnlockAchievement again: %v", err)
	}

	list, err := store.ListAchievements(ctx, owner)
	if err != nil || len(list) != 1 || list[0].Name != "First Receipt" {
		t.Errorf("ListAchievements = %+v, %v", list, err)
	}

	p, _ = store.GetProfile(ctx, owner)
	if p.XP != 50 {
		t.Errorf("XP = %d, want 50", p.XP)
	}

	rate := decimal.RequireFromString("25.50")
	p.Level = 2
	p.HourlyRate = &rate
	if err := store.SaveProfile(ctx, p); err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	p, _ = store.GetProfile(ctx, owner)
	if p.Level != 2 || p.HourlyRate == nil || !p.HourlyRate.Equal(rate) {
		t.Errorf("saved profile = %+v", p)
	}
}
