package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harikeshav-R/Penny/internal/domain"
)

const (
	defaultAccountInitial = "B"
	defaultAccountColor   = "bg-blue-500"
)

func (r *Registry) getAccounts(ctx context.Context, a args) string {
	accounts, err := r.store.ListAccounts(ctx, r.owner)
	if err != nil {
		return failed("fetch accounts", err)
	}
	if len(accounts) == 0 {
		return "No accounts found."
	}

	lines := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		lines = append(lines, fmt.Sprintf("- ID: %s | %s (%s): %s", acc.ID, acc.Name, acc.Type, money(acc.Balance)))
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) addAccount(ctx context.Context, a args) string {
	const action = "create account"

	name, err := a.requireStr("name")
	if err != nil {
		return failed(action, err)
	}
	typ, err := a.requireStr("type")
	if err != nil {
		return failed(action, err)
	}
	balance, err := a.requireAmount("balance")
	if err != nil {
		return failed(action, err)
	}

	acc := &domain.Account{
		OwnerID: r.owner,
		Name:    name,
		Type:    strings.ToLower(typ),
		Balance: balance,
		Initial: a.strOr("initial", defaultAccountInitial),
		Color:   a.strOr("color", defaultAccountColor),
	}
	if err := r.store.CreateAccount(ctx, acc); err != nil {
		return failed(action, err)
	}
	return fmt.Sprintf("Successfully created account '%s' with balance %s.", acc.Name, money(acc.Balance))
}

func (r *Registry) updateAccount(ctx context.Context, a args) string {
	const action = "update account"

	id, err := a.id("account_id")
	if err != nil {
		return byIDFailure("Account", action, err)
	}
	balance, hasBalance, err := a.amount("balance")
	if err != nil {
		return failed(action, err)
	}

	acc, err := r.store.GetAccount(ctx, r.owner, id)
	if err != nil {
		return byIDFailure("Account", action, err)
	}
	if name, ok := a.str("name"); ok {
		acc.Name = name
	}
	if hasBalance {
		acc.Balance = balance
	}

	if err := r.store.UpdateAccount(ctx, acc); err != nil {
		return byIDFailure("Account", action, err)
	}
	return "Account updated successfully."
}

func (r *Registry) deleteAccount(ctx context.Context, a args) string {
	const action = "delete account"

	id, err := a.id("account_id")
	if err != nil {
		return byIDFailure("Account", action, err)
	}
	if _, err := r.store.GetAccount(ctx, r.owner, id); err != nil {
		return byIDFailure("Account", action, err)
	}
	if err := r.store.DeleteAccount(ctx, r.owner, id); err != nil {
		return byIDFailure("Account", action, err)
	}
	return "Account deleted successfully."
}
