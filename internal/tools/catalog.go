package tools

import (
	"context"

	"google.golang.org/genai"
)

type toolSpec struct {
	action      string
	description string
	params      map[string]*genai.Schema
	required    []string
	run         func(r *Registry, ctx context.Context, a args) string
}

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func num(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeNumber, Description: desc}
}

func integer(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: desc}
}

func boolean(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeBoolean, Description: desc}
}

const transactionsDescription = "Fetch transactions for the user, newest first. " +
	"Optional filters: category (e.g. 'Food'), merchant (e.g. 'Amazon'). " +
	"Output includes the ID for each transaction, which is needed for updates/deletes."

var catalog = map[Name]toolSpec{
	GetCurrentTime: {
		action:      "get current time",
		description: "Get the current date and time. Useful for relative date queries (e.g., 'this month').",
		run:         (*Registry).getCurrentTime,
	},

	GetTransactions: {
		action:      "fetch transactions",
		description: transactionsDescription,
		params: map[string]*genai.Schema{
			"limit":    integer("Maximum number of transactions to return. Defaults to 10."),
			"category": str("Case-insensitive category filter."),
			"merchant": str("Case-insensitive merchant filter."),
		},
		run: (*Registry).getTransactions,
	},
	AddTransaction: {
		action:      "add transaction",
		description: "Add a new transaction. Date should be 'YYYY-MM-DD'. If omitted, defaults to today.",
		params: map[string]*genai.Schema{
			"merchant": str("Merchant name."),
			"amount":   num("Transaction amount."),
			"category": str("Spending category."),
			"date":     str("Date as YYYY-MM-DD."),
			"icon":     str("Icon name. Defaults to DollarSign."),
		},
		required: []string{"merchant", "amount", "category"},
		run:      (*Registry).addTransaction,
	},
	UpdateTransaction: {
		action:      "update transaction",
		description: "Update an existing transaction using its ID. Only provide fields you want to update.",
		params: map[string]*genai.Schema{
			"transaction_id": str("Transaction ID from get_transactions."),
			"merchant":       str("New merchant name."),
			"amount":         num("New amount."),
			"category":       str("New category."),
		},
		required: []string{"transaction_id"},
		run:      (*Registry).updateTransaction,
	},
	DeleteTransaction: {
		action:      "delete transaction",
		description: "Delete a transaction by its ID.",
		params:      map[string]*genai.Schema{"transaction_id": str("Transaction ID from get_transactions.")},
		required:    []string{"transaction_id"},
		run:         (*Registry).deleteTransaction,
	},
	GetSpendingSummary: {
		action:      "get spending summary",
		description: "Get a summary of spending by category over the last N days.",
		params:      map[string]*genai.Schema{"days": integer("Number of trailing days. Defaults to 30.")},
		run:         (*Registry).getSpendingSummary,
	},

	GetAccounts: {
		action:      "fetch accounts",
		description: "Fetch the user's bank accounts, balances, and IDs.",
		run:         (*Registry).getAccounts,
	},
	AddAccount: {
		action:      "create account",
		description: "Add a new bank account. Type examples: 'checking', 'savings', 'credit'.",
		params: map[string]*genai.Schema{
			"name":    str("Account name."),
			"type":    str("Account type."),
			"balance": num("Current balance."),
			"initial": str("Single letter shown on the account card. Defaults to B."),
			"color":   str("Card color class. Defaults to bg-blue-500."),
		},
		required: []string{"name", "type", "balance"},
		run:      (*Registry).addAccount,
	},
	UpdateAccount: {
		action:      "update account",
		description: "Update an account's name or balance using its ID.",
		params: map[string]*genai.Schema{
			"account_id": str("Account ID from get_accounts."),
			"name":       str("New account name."),
			"balance":    num("New balance."),
		},
		required: []string{"account_id"},
		run:      (*Registry).updateAccount,
	},
	DeleteAccount: {
		action:      "delete account",
		description: "Delete an account by its ID.",
		params:      map[string]*genai.Schema{"account_id": str("Account ID from get_accounts.")},
		required:    []string{"account_id"},
		run:         (*Registry).deleteAccount,
	},

	GetExpenses: {
		action:      "fetch expenses",
		description: "Fetch the user's monthly recurring expenses and IDs.",
		run:         (*Registry).getExpenses,
	},
	AddRecurringExpense: {
		action:      "add expense",
		description: "Add a new monthly recurring expense.",
		params: map[string]*genai.Schema{
			"name":     str("Expense name."),
			"amount":   num("Monthly amount."),
			"category": str("Expense category."),
			"is_fixed": boolean("Whether the amount is fixed. Defaults to true."),
			"icon":     str("Icon name. Defaults to Bill."),
		},
		required: []string{"name", "amount", "category"},
		run:      (*Registry).addRecurringExpense,
	},
	DeleteRecurringExpense: {
		action:      "delete expense",
		description: "Delete a recurring expense by its ID.",
		params:      map[string]*genai.Schema{"expense_id": str("Expense ID from get_expenses.")},
		required:    []string{"expense_id"},
		run:         (*Registry).deleteRecurringExpense,
	},

	GetGoals: {
		action:      "fetch goals",
		description: "Fetch the user's financial goals, progress, and IDs.",
		run:         (*Registry).getGoals,
	},
	CreateFinancialGoal: {
		action:      "create goal",
		description: "Create a new financial goal.",
		params: map[string]*genai.Schema{
			"name":          str("Goal name."),
			"description":   str("What the goal is for."),
			"target_amount": num("Amount to save."),
			"icon":          str("Icon name. Defaults to Target."),
		},
		required: []string{"name", "description", "target_amount"},
		run:      (*Registry).createFinancialGoal,
	},
	UpdateGoal: {
		action:      "update goal",
		description: "Update a goal's saved amount or target amount using its ID.",
		params: map[string]*genai.Schema{
			"goal_id":       str("Goal ID from get_goals."),
			"saved_amount":  num("New saved amount."),
			"target_amount": num("New target amount."),
		},
		required: []string{"goal_id"},
		run:      (*Registry).updateGoal,
	},
	DeleteGoal: {
		action:      "delete goal",
		description: "Delete a financial goal by its ID.",
		params:      map[string]*genai.Schema{"goal_id": str("Goal ID from get_goals.")},
		required:    []string{"goal_id"},
		run:         (*Registry).deleteGoal,
	},

	GetAchievements: {
		action:      "fetch achievements",
		description: "Get a list of achievements the user has unlocked.",
		run:         (*Registry).getAchievements,
	},
	GetXPLevel: {
		action:      "fetch XP level",
		description: "Get the user's current XP and Level.",
		run:         (*Registry).getXPLevel,
	},
	GetFinancialAdviceCategories: {
		action:      "fetch advice categories",
		description: "Get a list of topics Penny can provide advice on.",
		run:         (*Registry).getFinancialAdviceCategories,
	},
}

// Declarations returns the function declarations for every tool, in catalog
// order.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	return Declarations()
}

// Declarations returns the owner-independent tool catalog.
func Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(Names))
	for _, name := range Names {
		spec := catalog[name]
		decl := &genai.FunctionDeclaration{
			Name:        string(name),
			Description: spec.description,
		}
		if len(spec.params) > 0 {
			decl.Parameters = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: spec.params,
				Required:   spec.required,
			}
		}
		decls = append(decls, decl)
	}
	return decls
}
