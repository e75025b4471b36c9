// Package sqlite is a ledger.Store on modernc.org/sqlite with embedded
// golang-migrate migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Harikeshav-R/Penny/internal/domain"
	"github.com/Harikeshav-R/Penny/internal/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// Fixed width so TEXT comparison orders chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store persists the ledger in a single SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates the database directory if needed, runs migrations and
// returns a ready store.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("Open: create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("Open: open sqlite database: %w", err)
	}
	// SQLite allows one writer; serialise through a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: ping database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("Open: set busy timeout: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		tx                domain.Transaction
		id, owner, amount string
		date              string
	)
	if err := row.Scan(&id, &owner, &tx.Merchant, &tx.Category, &amount, &date, &tx.Icon); err != nil {
		return tx, err
	}

	var err error
	if tx.ID, err = uuid.Parse(id); err != nil {
		return tx, fmt.Errorf("parse id %q: %w", id, err)
	}
	if tx.OwnerID, err = uuid.Parse(owner); err != nil {
		return tx, fmt.Errorf("parse owner %q: %w", owner, err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return tx, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	if tx.Date, err = time.Parse(timeLayout, date); err != nil {
		return tx, fmt.Errorf("parse date %q: %w", date, err)
	}
	return tx, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a case-insensitive substring LIKE pattern in which
// wildcards typed by the caller match literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

const transactionColumns = `id, owner_id, merchant, category, amount, date, icon`

func (s *Store) ListTransactions(ctx context.Context, owner uuid.UUID, filter ledger.TransactionFilter) ([]domain.Transaction, error) {
	var (
		where = []string{"owner_id = ?"}
		args  = []any{owner.String()}
	)
	if filter.Category != "" {
		where = append(where, `LOWER(category) LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(filter.Category))
	}
	if filter.Merchant != "" {
		where = append(where, `LOWER(merchant) LIKE ? ESCAPE '\'`)
		args = append(args, containsPattern(filter.Merchant))
	}
	if !filter.Since.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	args = append(args, ledger.NormalizeLimit(filter.Limit))

	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY date DESC, rowid DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: query: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactions: scan: %w", err)
		}
		result = append(result, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactions: iterate: %w", err)
	}
	return result, nil
}

func (s *Store) GetTransaction(ctx context.Context, owner, id uuid.UUID) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`,
		id.String(), owner.String())

	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError(ledger.EntityTransaction)
	}
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, owner_id, merchant, category, amount, date, icon, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID.String(), tx.OwnerID.String(), tx.Merchant, tx.Category,
		tx.Amount.String(), tx.Date.UTC().Format(timeLayout), tx.Icon, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("CreateTransaction: insert: %w", err)
	}
	return nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx *domain.Transaction) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET merchant = ?, category = ?, amount = ?, date = ?, icon = ?
		 WHERE id = ? AND owner_id = ?`,
		tx.Merchant, tx.Category, tx.Amount.String(), tx.Date.UTC().Format(timeLayout), tx.Icon,
		tx.ID.String(), tx.OwnerID.String())
	if err != nil {
		return fmt.Errorf("UpdateTransaction: update: %w", err)
	}
	return affectedOne(res, ledger.EntityTransaction)
}

func (s *Store) DeleteTransaction(ctx context.Context, owner, id uuid.UUID) error {
	return s.deleteOwned(ctx, "transactions", ledger.EntityTransaction, owner, id)
}

// SpendingByCategory sums in Go; SQLite would coerce TEXT amounts to REAL.
func (s *Store) SpendingByCategory(ctx context.Context, owner uuid.UUID, since time.Time) ([]domain.CategoryTotal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, amount FROM transactions WHERE owner_id = ? AND date >= ?`,
		owner.String(), since.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("SpendingByCategory: query: %w", err)
	}
	defer rows.Close()

	var (
		order  []string
		totals = make(map[string]decimal.Decimal)
	)
	for rows.Next() {
		var category, amount string
		if err := rows.Scan(&category, &amount); err != nil {
			return nil, fmt.Errorf("SpendingByCategory: scan: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("SpendingByCategory: parse amount %q: %w", amount, err)
		}
		if _, ok := totals[category]; !ok {
			order = append(order, category)
		}
		totals[category] = totals[category].Add(d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SpendingByCategory: iterate: %w", err)
	}

	result := make([]domain.CategoryTotal, 0, len(order))
	for _, category := range order {
		result = append(result, domain.CategoryTotal{Category: category, Total: totals[category]})
	}
	ledger.SortTotals(result)
	return result, nil
}

func (s *Store) deleteOwned(ctx context.Context, table, entity string, owner, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE id = ? AND owner_id = ?`, id.String(), owner.String())
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	return affectedOne(res, entity)
}

func affectedOne(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", entity, err)
	}
	if n == 0 {
		return domain.NewNotFoundError(entity)
	}
	return nil
}

var _ ledger.Store = (*Store)(nil)
