package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"bugetar/internal/core"
	applog "bugetar/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db  *sql.DB
	log *applog.Logger
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, log: applog.Default(applog.ComponentStorage)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	businessID := sql.NullString{String: t.BusinessID, Valid: t.BusinessID != ""}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, type, category, date, owner_user_id, business_id, business_expense)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Amount.String(), string(t.Type), t.Category, t.Date.UTC(),
		t.OwnerUserID, businessID, t.BusinessExpense)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	r.log.InfoContext(ctx, "Transaction saved",
		applog.FieldTransactionID, t.ID,
		"type", t.Type,
		applog.FieldCategory, t.Category,
		applog.FieldAmount, t.Amount.String())
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, amount, type, category, date, owner_user_id, business_id, business_expense
		FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns every recorded transaction ordered by date. Role
// scoping happens in memory against the full set, so this is the single read
// path the insight pipeline uses.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Transaction, error) {
	return r.listTransactions(ctx, `
		SELECT id, amount, type, category, date, owner_user_id, business_id, business_expense
		FROM transactions ORDER BY date, id`)
}

func (r *SQLiteRepository) ListTransactionsByOwner(ctx context.Context, ownerUserID string) ([]core.Transaction, error) {
	return r.listTransactions(ctx, `
		SELECT id, amount, type, category, date, owner_user_id, business_id, business_expense
		FROM transactions WHERE owner_user_id = ? ORDER BY date, id`, ownerUserID)
}

func (r *SQLiteRepository) listTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t          core.Transaction
		amount     string
		txType     string
		businessID sql.NullString
	)
	err := row.Scan(&t.ID, &amount, &txType, &t.Category, &t.Date,
		&t.OwnerUserID, &businessID, &t.BusinessExpense)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	t.Type = core.TxType(txType)
	t.BusinessID = businessID.String
	return t, nil
}

func (r *SQLiteRepository) CreateBusiness(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO businesses (id, name) VALUES (?, ?)`, id, name)
	if err != nil {
		return fmt.Errorf("create business: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) BusinessExists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM businesses WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check business: %w", err)
	}
	return n > 0, nil
}

// AssociateAccountant grants an accountant read access to a business's books.
// Re-associating is a no-op.
func (r *SQLiteRepository) AssociateAccountant(ctx context.Context, accountantUserID, businessID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accountant_businesses (accountant_user_id, business_id)
		VALUES (?, ?)
		ON CONFLICT (accountant_user_id, business_id) DO NOTHING`,
		accountantUserID, businessID)
	if err != nil {
		return fmt.Errorf("associate accountant: %w", err)
	}

	r.log.InfoContext(ctx, "Accountant associated",
		"accountant", accountantUserID,
		applog.FieldBusinessID, businessID)
	return nil
}

func (r *SQLiteRepository) ListAccountantBusinesses(ctx context.Context, accountantUserID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT business_id FROM accountant_businesses
		WHERE accountant_user_id = ? ORDER BY business_id`, accountantUserID)
	if err != nil {
		return nil, fmt.Errorf("list accountant businesses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan business id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accountant businesses: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) UpsertCategoryTarget(ctx context.Context, t core.CategoryTarget) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO category_targets (user_id, month, category, limit_amount, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month, category)
		DO UPDATE SET limit_amount = excluded.limit_amount, updated_at = excluded.updated_at`,
		t.UserID, t.Month, t.Category, t.Limit.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert category target: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListCategoryTargets(ctx context.Context, userID, month string) ([]core.CategoryTarget, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, month, category, limit_amount FROM category_targets
		WHERE user_id = ? AND month = ? ORDER BY category`, userID, month)
	if err != nil {
		return nil, fmt.Errorf("list category targets: %w", err)
	}
	defer rows.Close()

	var targets []core.CategoryTarget
	for rows.Next() {
		var (
			t     core.CategoryTarget
			limit string
		)
		if err := rows.Scan(&t.UserID, &t.Month, &t.Category, &limit); err != nil {
			return nil, fmt.Errorf("scan category target: %w", err)
		}
		t.Limit, err = decimal.NewFromString(limit)
		if err != nil {
			return nil, fmt.Errorf("parse limit %q: %w", limit, err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category targets: %w", err)
	}
	return targets, nil
}

// MonthlySummary is the denormalized per-owner month rollup maintained by the
// refresh worker.
type MonthlySummary struct {
	OwnerUserID  string
	Month        string
	IncomeTotal  decimal.Decimal
	ExpenseTotal decimal.Decimal
	TxCount      int
	RefreshedAt  time.Time
}

// RefreshMonthlySummary recomputes one owner-month rollup straight from the
// transactions table and upserts the result.
func (r *SQLiteRepository) RefreshMonthlySummary(ctx context.Context, ownerUserID, month string) error {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN CAST(amount AS REAL) ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN CAST(amount AS REAL) ELSE 0 END), 0),
			COUNT(*)
		FROM transactions
		WHERE owner_user_id = ? AND strftime('%Y-%m', date) = ?`, ownerUserID, month)

	var income, expense float64
	var count int
	if err := row.Scan(&income, &expense, &count); err != nil {
		return fmt.Errorf("aggregate month: %w", err)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monthly_summaries (owner_user_id, month, income_total, expense_total, tx_count, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_user_id, month)
		DO UPDATE SET
			income_total = excluded.income_total,
			expense_total = excluded.expense_total,
			tx_count = excluded.tx_count,
			refreshed_at = excluded.refreshed_at`,
		ownerUserID, month,
		decimal.NewFromFloat(income).Round(2).String(),
		decimal.NewFromFloat(expense).Round(2).String(),
		count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert monthly summary: %w", err)
	}

	r.log.InfoContext(ctx, "Monthly summary refreshed",
		applog.FieldOwnerUserID, ownerUserID,
		applog.FieldMonth, month,
		"tx_count", count)
	return nil
}

// OwnerMonth identifies one summary bucket.
type OwnerMonth struct {
	OwnerUserID string
	Month       string
}

// ListOwnerMonths returns the distinct owner-month pairs present in the
// transactions table, newest month first. The periodic sweep uses it to
// rebuild summaries that missed their event.
func (r *SQLiteRepository) ListOwnerMonths(ctx context.Context, limit int) ([]OwnerMonth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT owner_user_id, strftime('%Y-%m', date) AS month
		FROM transactions ORDER BY month DESC, owner_user_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list owner months: %w", err)
	}
	defer rows.Close()

	var out []OwnerMonth
	for rows.Next() {
		var om OwnerMonth
		if err := rows.Scan(&om.OwnerUserID, &om.Month); err != nil {
			return nil, fmt.Errorf("scan owner month: %w", err)
		}
		out = append(out, om)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate owner months: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) GetMonthlySummary(ctx context.Context, ownerUserID, month string) (MonthlySummary, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT owner_user_id, month, income_total, expense_total, tx_count, refreshed_at
		FROM monthly_summaries WHERE owner_user_id = ? AND month = ?`, ownerUserID, month)

	var (
		s               MonthlySummary
		income, expense string
	)
	err := row.Scan(&s.OwnerUserID, &s.Month, &income, &expense, &s.TxCount, &s.RefreshedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return MonthlySummary{}, ErrNotFound
	}
	if err != nil {
		return MonthlySummary{}, fmt.Errorf("get monthly summary: %w", err)
	}

	if s.IncomeTotal, err = decimal.NewFromString(income); err != nil {
		return MonthlySummary{}, fmt.Errorf("parse income total %q: %w", income, err)
	}
	if s.ExpenseTotal, err = decimal.NewFromString(expense); err != nil {
		return MonthlySummary{}, fmt.Errorf("parse expense total %q: %w", expense, err)
	}
	return s, nil
}
