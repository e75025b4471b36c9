package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func parseIDs(id, owner string) (uuid.UUID, uuid.UUID, error) {
	pid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse id %q: %w", id, err)
	}
	pown, err := uuid.Parse(owner)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("parse owner %q: %w", owner, err)
	}
	return pid, pown, nil
}

// Accounts

const accountColumns = `id, owner_id, name, type, balance, color, initial`

func scanAccount(row scanner) (domain.Account, error) {
	var (
		a                  domain.Account
		id, owner, balance string
	)
	if err := row.Scan(&id, &owner, &a.Name, &a.Type, &balance, &a.Color, &a.Initial); err != nil {
		return a, err
	}
	var err error
	if a.ID, a.OwnerID, err = parseIDs(id, owner); err != nil {
		return a, err
	}
	if a.Balance, err = decimal.NewFromString(balance); err != nil {
		return a, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, owner uuid.UUID) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_id = ? ORDER BY rowid`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: query: %w", err)
	}
	defer rows.Close()

	var result []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAccounts: scan: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAccounts: iterate: %w", err)
	}
	return result, nil
}

func (s *Store) GetAccount(ctx context.Context, owner, id uuid.UUID) (*domain.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ? AND owner_id = ?`, id.String(), owner.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(ledger.EntityAccount)
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	if a.OwnerID == uuid.Nil {
		return fmt.Errorf("CreateAccount: owner is required")
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_id, name, type, balance, color, initial, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.OwnerID.String(), a.Name, a.Type, a.Balance.String(), a.Color, a.Initial, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("CreateAccount: insert: %w", err)
	}
	return nil
}

func (s *Store) UpdateAccount(ctx context.Context, a *domain.Account) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, type = ?, balance = ?, color = ?, initial = ?
		 WHERE id = ? AND owner_id = ?`,
		a.Name, a.Type, a.Balance.String(), a.Color, a.Initial, a.ID.String(), a.OwnerID.String())
	if err != nil {
		return fmt.Errorf("UpdateAccount: update: %w", err)
	}
	return affectedOne(res, ledger.EntityAccount)
}

func (s *Store) DeleteAccount(ctx context.Context, owner, id uuid.UUID) error {
	return s.deleteOwned(ctx, "accounts", ledger.EntityAccount, owner, id)
}

// Recurring expenses

const expenseColumns = `id, owner_id, name, category, amount, is_fixed, icon`

func scanExpense(row scanner) (domain.Expense, error) {
	var (
		e                 domain.Expense
		id, owner, amount string
	)
	if err := row.Scan(&id, &owner, &e.Name, &e.Category, &amount, &e.IsFixed, &e.Icon); err != nil {
		return e, err
	}
	var err error
	if e.ID, e.OwnerID, err = parseIDs(id, owner); err != nil {
		return e, err
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return e, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return e, nil
}

func (s *Store) ListExpenses(ctx context.Context, owner uuid.UUID) ([]domain.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE owner_id = ? ORDER BY rowid`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("ListExpenses: query: %w", err)
	}
	defer rows.Close()

	var result []domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("ListExpenses: scan: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListExpenses: iterate: %w", err)
	}
	return result, nil
}

func (s *Store) GetExpense(ctx context.Context, owner, id uuid.UUID) (*domain.Expense, error) {
	e, err := scanExpense(s.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND owner_id = ?`, id.String(), owner.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(ledger.EntityExpense)
	}
	if err != nil {
		return nil, fmt.Errorf("GetExpense: %w", err)
	}
	return &e, nil
}

func (s *Store) CreateExpense(ctx context.Context, e *domain.Expense) error {
	if e.OwnerID == uuid.Nil {
		return fmt.Errorf("CreateExpense: owner is required")
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, name, category, amount, is_fixed, icon, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.OwnerID.String(), e.Name, e.Category, e.Amount.String(), e.IsFixed, e.Icon, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("CreateExpense: insert: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpense(ctx context.Context, owner, id uuid.UUID) error {
	return s.deleteOwned(ctx, "expenses", ledger.EntityExpense, owner, id)
}

// Goals

const goalColumns = `id, owner_id, name, description, target_amount, saved_amount, icon`

func scanGoal(row scanner) (domain.Goal, error) {
	var (
		g                        domain.Goal
		id, owner, target, saved string
	)
	if err := row.Scan(&id, &owner, &g.Name, &g.Description, &target, &saved, &g.Icon); err != nil {
		return g, err
	}
	var err error
	if g.ID, g.OwnerID, err = parseIDs(id, owner); err != nil {
		return g, err
	}
	if g.TargetAmount, err = decimal.NewFromString(target); err != nil {
		return g, fmt.Errorf("parse target_amount %q: %w", target, err)
	}
	if g.SavedAmount, err = decimal.NewFromString(saved); err != nil {
		return g, fmt.Errorf("parse saved_amount %q: %w", saved, err)
	}
	return g, nil
}

func (s *Store) ListGoals(ctx context.Context, owner uuid.UUID) ([]domain.Goal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE owner_id = ? ORDER BY rowid`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("ListGoals: query: %w", err)
	}
	defer rows.Close()

	var result []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("ListGoals: scan: %w", err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListGoals: iterate: %w", err)
	}
	return result, nil
}

func (s *Store) GetGoal(ctx context.Context, owner, id uuid.UUID) (*domain.Goal, error) {
	g, err := scanGoal(s.db.QueryRowContext(ctx,
		`SELECT `+goalColumns+` FROM goals WHERE id = ? AND owner_id = ?`, id.String(), owner.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(ledger.EntityGoal)
	}
	if err != nil {
		return nil, fmt.Errorf("GetGoal: %w", err)
	}
	return &g, nil
}

func (s *Store) CreateGoal(ctx context.Context, g *domain.Goal) error {
	if g.OwnerID == uuid.Nil {
		return fmt.Errorf("CreateGoal: owner is required")
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (id, owner_id, name, description, target_amount, saved_amount, icon, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID.String(), g.OwnerID.String(), g.Name, g.Description,
		g.TargetAmount.String(), g.SavedAmount.String(), g.Icon, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("CreateGoal: insert: %w", err)
	}
	return nil
}

func (s *Store) UpdateGoal(ctx context.Context, g *domain.Goal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE goals SET name = ?, description = ?, target_amount = ?, saved_amount = ?, icon = ?
		 WHERE id = ? AND owner_id = ?`,
		g.Name, g.Description, g.TargetAmount.String(), g.SavedAmount.String(), g.Icon,
		g.ID.String(), g.OwnerID.String())
	if err != nil {
		return fmt.Errorf("UpdateGoal: update: %w", err)
	}
	return affectedOne(res, ledger.EntityGoal)
}

func (s *Store) DeleteGoal(ctx context.Context, owner, id uuid.UUID) error {
	return s.deleteOwned(ctx, "goals", ledger.EntityGoal, owner, id)
}

// Achievements and profile

func (s *Store) ListAchievements(ctx context.Context, owner uuid.UUID) ([]domain.Achievement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, icon, xp_reward, unlocked_at FROM achievements
		 WHERE owner_id = ? ORDER BY unlocked_at, name`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("ListAchievements: query: %w", err)
	}
	defer rows.Close()

	var result []domain.Achievement
	for rows.Next() {
		var (
			a          domain.Achievement
			unlockedAt string
		)
		if err := rows.Scan(&a.Name, &a.Description, &a.Icon, &a.XPReward, &unlockedAt); err != nil {
			return nil, fmt.Errorf("ListAchievements: scan: %w", err)
		}
		if a.UnlockedAt, err = time.Parse(timeLayout, unlockedAt); err != nil {
			return nil, fmt.Errorf("ListAchievements: parse unlocked_at %q: %w", unlockedAt, err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListAchievements: iterate: %w", err)
	}
	return result, nil
}

// UnlockAchievement records an achievement once per name and credits its XP
// reward in the same transaction.
func (s *Store) UnlockAchievement(ctx context.Context, owner uuid.UUID, a domain.Achievement) error {
	if a.UnlockedAt.IsZero() {
		a.UnlockedAt = s.now().UTC()
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("UnlockAchievement: begin: %w", err)
	}
	defer dbtx.Rollback()

	res, err := dbtx.ExecContext(ctx,
		`INSERT OR IGNORE INTO achievements (owner_id, name, description, icon, xp_reward, unlocked_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		owner.String(), a.Name, a.Description, a.Icon, a.XPReward, a.UnlockedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("UnlockAchievement: insert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	_, err = dbtx.ExecContext(ctx,
		`INSERT INTO profiles (owner_id, xp, level) VALUES (?, ?, 1)
		 ON CONFLICT(owner_id) DO UPDATE SET xp = xp + excluded.xp`,
		owner.String(), a.XPReward)
	if err != nil {
		return fmt.Errorf("UnlockAchievement: credit xp: %w", err)
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("UnlockAchievement: commit: %w", err)
	}
	return nil
}

func (s *Store) GetProfile(ctx context.Context, owner uuid.UUID) (*domain.Profile, error) {
	var (
		p    = domain.Profile{OwnerID: owner}
		rate sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT xp, level, hourly_rate FROM profiles WHERE owner_id = ?`, owner.String()).
		Scan(&p.XP, &p.Level, &rate)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.NewProfile(owner), nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetProfile: %w", err)
	}
	if rate.Valid && rate.String != "" {
		d, err := decimal.NewFromString(rate.String)
		if err != nil {
			return nil, fmt.Errorf("GetProfile: parse hourly_rate %q: %w", rate.String, err)
		}
		p.HourlyRate = &d
	}
	return &p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p *domain.Profile) error {
	if p.OwnerID == uuid.Nil {
		return fmt.Errorf("SaveProfile: owner is required")
	}
	var rate sql.NullString
	if p.HourlyRate != nil {
		rate = sql.NullString{String: p.HourlyRate.String(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (owner_id, xp, level, hourly_rate) VALUES (?, ?, ?, ?)
		 ON CONFLICT(owner_id) DO UPDATE SET xp = excluded.xp, level = excluded.level, hourly_rate = excluded.hourly_rate`,
		p.OwnerID.String(), p.XP, p.Level, rate)
	if err != nil {
		return fmt.Errorf("SaveProfile: upsert: %w", err)
	}
	return nil
}
