package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harikeshav-R/Penny/internal/domain"
)

const defaultExpenseIcon = "Bill"

func (r *Registry) getExpenses(ctx context.Context, a args) string {
	expenses, err := r.store.ListExpenses(ctx, r.owner)
	if err != nil {
		return failed("fetch expenses", err)
	}
	if len(expenses) == 0 {
		return "No expenses found."
	}

	lines := make([]string, 0, len(expenses))
	for _, e := range expenses {
		kind := "Variable"
		if e.IsFixed {
			kind = "Fixed"
		}
		lines = append(lines, fmt.Sprintf("- ID: %s | %s (%s): %s (%s)", e.ID, e.Name, e.Category, money(e.Amount), kind))
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) addRecurringExpense(ctx context.Context, a args) string {
	const action = "add expense"

	name, err := a.requireStr("name")
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
	fixed, err := a.boolean("is_fixed", true)
	if err != nil {
		return failed(action, err)
	}

	e := &domain.Expense{
		OwnerID:  r.owner,
		Name:     name,
		Category: category,
		Amount:   amount,
		IsFixed:  fixed,
		Icon:     a.strOr("icon", defaultExpenseIcon),
	}
	if err := r.store.CreateExpense(ctx, e); err != nil {
		return failed(action, err)
	}
	return fmt.Sprintf("Successfully added expense '%s' of %s.", e.Name, money(e.Amount))
}

func (r *Registry) deleteRecurringExpense(ctx context.Context, a args) string {
	const action = "delete expense"

	id, err := a.id("expense_id")
	if err != nil {
		return byIDFailure("Expense", action, err)
	}
	if _, err := r.store.GetExpense(ctx, r.owner, id); err != nil {
		return byIDFailure("Expense", action, err)
	}
	if err := r.store.DeleteExpense(ctx, r.owner, id); err != nil {
		return byIDFailure("Expense", action, err)
	}
	return "Expense deleted successfully."
}
