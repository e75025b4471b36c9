package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/shopspring/decimal"
)

const (
	defaultTransactionIcon = "DollarSign"
	defaultSummaryDays     = 30
)

func (r *Registry) getTransactions(ctx context.Context, a args) string {
	const action = "fetch transactions"

	limit, err := a.integer("limit", ledger.DefaultTransactionLimit)
	if err != nil {
		return failed(action, err)
	}
	category, _ := a.str("category")
	merchant, _ := a.str("merchant")

	txs, err := r.store.ListTransactions(ctx, r.owner, ledger.TransactionFilter{
		Category: category,
		Merchant: merchant,
		Limit:    limit,
	})
	if err != nil {
		return failed(action, err)
	}
	if len(txs) == 0 {
		return "No transactions found with the given criteria."
	}

	lines := make([]string, 0, len(txs))
	for _, t := range txs {
		lines = append(lines, fmt.Sprintf("- ID: %s | %s: %s (%s) - %s", t.ID, day(t.Date), t.Merchant, money(t.Amount), t.Category))
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) addTransaction(ctx context.Context, a args) string {
	const action = "add transaction"

	merchant, err := a.requireStr("merchant")
	if err != nil {
		return failed(action, err)
	}
	amount, err := a.requireAmount("amount")
	if err != nil {
		return failed(action, err)
	}
	category, err := a.requireStr("category")
	if err != nil {
		return failed(action, err)
	}

	date := r.now().UTC()
	if s, ok := a.str("date"); ok {
		date, err = time.Parse("2006-01-02", s)
		if err != nil {
			return failed(action, domain.NewValidationError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", s)))
		}
	}

	tx := &domain.Transaction{
		OwnerID:  r.owner,
		Merchant: merchant,
		Category: category,
		Amount:   amount,
		Date:     date,
		Icon:     a.strOr("icon", defaultTransactionIcon),
	}
	if err := r.store.CreateTransaction(ctx, tx); err != nil {
		return failed(action, err)
	}
	return fmt.Sprintf("Successfully added transaction: %s (%s) on %s.", tx.Merchant, money(tx.Amount), day(tx.Date))
}

// updateTransaction changes only the fields given. A zero amount counts as
// not given.
func (r *Registry) updateTransaction(ctx context.Context, a args) string {
	const action = "update transaction"

	id, err := a.id("transaction_id")
	if err != nil {
		return byIDFailure("Transaction", action, err)
	}
	amount, hasAmount, err := a.amount("amount")
	if err != nil {
		return failed(action, err)
	}

	tx, err := r.store.GetTransaction(ctx, r.owner, id)
	if err != nil {
		return byIDFailure("Transaction", action, err)
	}

	if merchant, ok := a.str("merchant"); ok {
		tx.Merchant = merchant
	}
	if hasAmount && !amount.IsZero() {
		tx.Amount = amount
	}
	if category, ok := a.str("category"); ok {
		tx.Category = category
	}

	if err := r.store.UpdateTransaction(ctx, tx); err != nil {
		return byIDFailure("Transaction", action, err)
	}
	return "Transaction updated successfully."
}

func (r *Registry) deleteTransaction(ctx context.Context, a args) string {
	const action = "delete transaction"

	id, err := a.id("transaction_id")
	if err != nil {
		return byIDFailure("Transaction", action, err)
	}
	if _, err := r.store.GetTransaction(ctx, r.owner, id); err != nil {
		return byIDFailure("Transaction", action, err)
	}
	if err := r.store.DeleteTransaction(ctx, r.owner, id); err != nil {
		return byIDFailure("Transaction", action, err)
	}
	return "Transaction deleted successfully."
}

func (r *Registry) getSpendingSummary(ctx context.Context, a args) string {
	const action = "get spending summary"

	days, err := a.integer("days", defaultSummaryDays)
	if err != nil {
		return failed(action, err)
	}
	if days < 0 {
		return failed(action, domain.NewValidationError("days must not be negative"))
	}

	since := r.now().UTC().Add(-time.Duration(days) * 24 * time.Hour)
	totals, err := r.store.SpendingByCategory(ctx, r.owner, since)
	if err != nil {
		return failed(action, err)
	}
	if len(totals) == 0 {
		return fmt.Sprintf("No spending data found for the last %d days.", days)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Spending Summary (last %d days):**\n", days)
	grand := decimal.Zero
	for _, t := range totals {
		fmt.Fprintf(&b, "\n* **%s:** %s", t.Category, money(t.Total))
		grand = grand.Add(t.Total)
	}
	fmt.Fprintf(&b, "\n\n**Total Spending:** %s", money(grand))
	return b.String()
}
