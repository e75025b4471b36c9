package tools

// Name identifies one tool. The set is closed; anything else is rejected by
// Registry.Invoke.
type Name string

const (
	GetCurrentTime Name = "get_current_time"

	GetTransactions    Name = "get_transactions"
	AddTransaction     Name = "add_transaction"
	UpdateTransaction  Name = "update_transaction"
	DeleteTransaction  Name = "delete_transaction"
	GetSpendingSummary Name = "get_spending_summary"

	GetAccounts   Name = "get_accounts"
	AddAccount    Name = "add_account"
	UpdateAccount Name = "update_account"
	DeleteAccount Name = "delete_account"

	GetExpenses            Name = "get_expenses"
	AddRecurringExpense    Name = "add_recurring_expense"
	DeleteRecurringExpense Name = "delete_recurring_expense"

	GetGoals            Name = "get_goals"
	CreateFinancialGoal Name = "create_financial_goal"
	UpdateGoal          Name = "update_goal"
	DeleteGoal          Name = "delete_goal"

	GetAchievements              Name = "get_achievements"
	GetXPLevel                   Name = "get_xp_level"
	GetFinancialAdviceCategories Name = "get_financial_advice_categories"
)

// Names lists every tool in catalog order.
var Names = []Name{
	GetCurrentTime,
	GetTransactions, AddTransaction, UpdateTransaction, DeleteTransaction, GetSpendingSummary,
	GetAccounts, AddAccount, UpdateAccount, DeleteAccount,
	GetExpenses, AddRecurringExpense, DeleteRecurringExpense,
	GetGoals, CreateFinancialGoal, UpdateGoal, DeleteGoal,
	GetAchievements, GetXPLevel,
	GetFinancialAdviceCategories,
}

// ParseName reports whether s names a known tool.
func ParseName(s string) (Name, bool) {
	n := Name(s)
	_, ok := catalog[n]
	return n, ok
}
