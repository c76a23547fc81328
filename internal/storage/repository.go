package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"profitloss/internal/core"
	"profitloss/internal/report"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("already exists")
	// ErrConflict is returned when a delete would orphan referencing rows.
	ErrConflict = errors.New("still referenced")
)

type SQLiteRepository struct {
	db *sql.DB
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

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the underlying database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// --- COA categories ---

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (*core.Category, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM coa_categories WHERE name = ?`, c.Name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check category name: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("category name %q: %w", c.Name, ErrDuplicate)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO coa_categories (name, type) VALUES (?, ?)`, c.Name, string(c.Type))
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id

	slog.InfoContext(ctx, "Category created", "id", c.ID, "name", c.Name, "type", c.Type)
	return &c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (*core.Category, error) {
	var c core.Category
	var typ string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, type FROM coa_categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	c.Type = core.CategoryType(typ)
	return &c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, type FROM coa_categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		var typ string
		if err := rows.Scan(&c.ID, &c.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.Type = core.CategoryType(typ)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) (*core.Category, error) {
	if _, err := r.GetCategory(ctx, c.ID); err != nil {
		return nil, err
	}

	var taken int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM coa_categories WHERE name = ? AND id != ?`, c.Name, c.ID).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check category name: %w", err)
	}
	if taken > 0 {
		return nil, fmt.Errorf("category name %q: %w", c.Name, ErrDuplicate)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE coa_categories SET name = ?, type = ?, updated_at = datetime('now') WHERE id = ?`,
		c.Name, string(c.Type), c.ID)
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	slog.InfoContext(ctx, "Category updated", "id", c.ID, "name", c.Name, "type", c.Type)
	return &c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := r.GetCategory(ctx, id); err != nil {
		return err
	}

	var refs int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM chart_of_accounts WHERE category_id = ?`, id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("check category accounts: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("category %d has %d accounts: %w", id, refs, ErrConflict)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM coa_categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}

	slog.InfoContext(ctx, "Category deleted", "id", id)
	return nil
}

// --- Chart of accounts ---

// AccountWithCategory joins an account to its category for read responses.
type AccountWithCategory struct {
	core.Account
	CategoryName string
	CategoryType core.CategoryType
}

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (*core.Account, error) {
	if _, err := r.GetCategory(ctx, a.CategoryID); err != nil {
		return nil, err
	}

	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM chart_of_accounts WHERE code = ?`, a.Code).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("check account code: %w", err)
	}
	if exists > 0 {
		return nil, fmt.Errorf("account code %q: %w", a.Code, ErrDuplicate)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chart_of_accounts (category_id, code, name) VALUES (?, ?, ?)`,
		a.CategoryID, a.Code, a.Name)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("account insert id: %w", err)
	}
	a.ID = id

	slog.InfoContext(ctx, "Account created", "id", a.ID, "code", a.Code, "name", a.Name)
	return &a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id int64) (*core.Account, error) {
	var a core.Account
	err := r.db.QueryRowContext(ctx,
		`SELECT id, category_id, code, name FROM chart_of_accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.CategoryID, &a.Code, &a.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]AccountWithCategory, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.category_id, a.code, a.name, c.name, c.type
		FROM chart_of_accounts a
		JOIN coa_categories c ON c.id = a.category_id
		ORDER BY a.code`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []AccountWithCategory
	for rows.Next() {
		var a AccountWithCategory
		var typ string
		if err := rows.Scan(&a.ID, &a.CategoryID, &a.Code, &a.Name, &a.CategoryName, &typ); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.CategoryType = core.CategoryType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a core.Account) (*core.Account, error) {
	if _, err := r.GetAccount(ctx, a.ID); err != nil {
		return nil, err
	}
	if _, err := r.GetCategory(ctx, a.CategoryID); err != nil {
		return nil, err
	}

	var taken int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM chart_of_accounts WHERE code = ? AND id != ?`, a.Code, a.ID).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check account code: %w", err)
	}
	if taken > 0 {
		return nil, fmt.Errorf("account code %q: %w", a.Code, ErrDuplicate)
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE chart_of_accounts SET category_id = ?, code = ?, name = ?, updated_at = datetime('now') WHERE id = ?`,
		a.CategoryID, a.Code, a.Name, a.ID)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}

	slog.InfoContext(ctx, "Account updated", "id", a.ID, "code", a.Code, "name", a.Name)
	return &a, nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id int64) error {
	if _, err := r.GetAccount(ctx, id); err != nil {
		return err
	}

	var refs int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM transactions WHERE account_id = ?`, id).Scan(&refs)
	if err != nil {
		return fmt.Errorf("check account transactions: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("account %d has %d transactions: %w", id, refs, ErrConflict)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM chart_of_accounts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	slog.InfoContext(ctx, "Account deleted", "id", id)
	return nil
}

// --- Transactions ---

// TransactionWithAccount joins a transaction to its account and category,
// the shape list responses and the sync worker need.
type TransactionWithAccount struct {
	core.Transaction
	AccountCode  string
	AccountName  string
	CategoryName string
	CategoryType core.CategoryType
	Version      int64
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	if _, err := r.GetAccount(ctx, t.AccountID); err != nil {
		return nil, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (account_id, date, description, debit_cents, credit_cents)
		VALUES (?, ?, ?, ?, ?)`,
		t.AccountID, t.Date.String(), t.Description, core.Cents(t.Debit), core.Cents(t.Credit))
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID,
		"account_id", t.AccountID,
		"date", t.Date.String(),
		"debit_cents", core.Cents(t.Debit),
		"credit_cents", core.Cents(t.Credit))
	return &t, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (*TransactionWithAccount, error) {
	var t TransactionWithAccount
	var date, typ string
	var debitCents, creditCents int64
	err := r.db.QueryRowContext(ctx, `
		SELECT t.id, t.account_id, t.date, t.description, t.debit_cents, t.credit_cents, t.version,
		       a.code, a.name, c.name, c.type
		FROM transactions t
		JOIN chart_of_accounts a ON a.id = t.account_id
		JOIN coa_categories c ON c.id = a.category_id
		WHERE t.id = ?`, id).
		Scan(&t.ID, &t.AccountID, &date, &t.Description, &debitCents, &creditCents, &t.Version,
			&t.AccountCode, &t.AccountName, &t.CategoryName, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	if t.Date, err = core.ParseDate(date); err != nil {
		return nil, fmt.Errorf("transaction %d date: %w", id, err)
	}
	t.Debit = core.FromCents(debitCents)
	t.Credit = core.FromCents(creditCents)
	t.CategoryType = core.CategoryType(typ)
	return &t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]TransactionWithAccount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.account_id, t.date, t.description, t.debit_cents, t.credit_cents, t.version,
		       a.code, a.name, c.name, c.type
		FROM transactions t
		JOIN chart_of_accounts a ON a.id = t.account_id
		JOIN coa_categories c ON c.id = a.category_id
		ORDER BY t.date, t.id`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []TransactionWithAccount
	for rows.Next() {
		var t TransactionWithAccount
		var date, typ string
		var debitCents, creditCents int64
		if err := rows.Scan(&t.ID, &t.AccountID, &date, &t.Description, &debitCents, &creditCents, &t.Version,
			&t.AccountCode, &t.AccountName, &t.CategoryName, &typ); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %d date: %w", t.ID, err)
		}
		t.Debit = core.FromCents(debitCents)
		t.Credit = core.FromCents(creditCents)
		t.CategoryType = core.CategoryType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTransaction rewrites the row, bumps its version and re-queues it for
// sync.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (*TransactionWithAccount, error) {
	if _, err := r.GetTransaction(ctx, t.ID); err != nil {
		return nil, err
	}
	if _, err := r.GetAccount(ctx, t.AccountID); err != nil {
		return nil, err
	}

	_, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET account_id = ?, date = ?, description = ?, debit_cents = ?, credit_cents = ?,
		    version = version + 1, sync_status = 'pending', updated_at = datetime('now')
		WHERE id = ?`,
		t.AccountID, t.Date.String(), t.Description, core.Cents(t.Debit), core.Cents(t.Credit), t.ID)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", t.ID, "account_id", t.AccountID)
	return r.GetTransaction(ctx, t.ID)
}

// --- Profit & loss ---

// ProfitLossRows returns per category per month debit and credit sums for
// transactions dated inside [start, end].
func (r *SQLiteRepository) ProfitLossRows(ctx context.Context, start, end core.Date) ([]report.Row, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.type,
		       CAST(strftime('%Y', t.date) AS INTEGER) AS year,
		       CAST(strftime('%m', t.date) AS INTEGER) AS month,
		       COALESCE(SUM(t.debit_cents), 0),
		       COALESCE(SUM(t.credit_cents), 0)
		FROM transactions t
		JOIN chart_of_accounts a ON a.id = t.account_id
		JOIN coa_categories c ON c.id = a.category_id
		WHERE t.date >= ? AND t.date <= ?
		GROUP BY c.id, c.name, c.type, year, month
		ORDER BY year, month, c.id`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query profit loss rows: %w", err)
	}
	defer rows.Close()

	var out []report.Row
	for rows.Next() {
		var row report.Row
		var typ string
		var debitCents, creditCents int64
		if err := rows.Scan(&row.CategoryID, &row.CategoryName, &typ,
			&row.Year, &row.Month, &debitCents, &creditCents); err != nil {
			return nil, fmt.Errorf("scan profit loss row: %w", err)
		}
		row.CategoryType = core.CategoryType(typ)
		row.TotalDebit = core.FromCents(debitCents)
		row.TotalCredit = core.FromCents(creditCents)
		out = append(out, row)
	}
	return out, rows.Err()
}

// --- Sync state ---

// PendingSyncTransaction is the minimal shape sync queue messages carry.
type PendingSyncTransaction struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

func (r *SQLiteRepository) GetPendingSyncTransactions(ctx context.Context, limit int) ([]PendingSyncTransaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at FROM transactions
		WHERE sync_status = 'pending'
		ORDER BY id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []PendingSyncTransaction
	for rows.Next() {
		var p PendingSyncTransaction
		var createdAt string
		if err := rows.Scan(&p.ID, &p.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("scan pending sync transaction: %w", err)
		}
		if ts, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			p.CreatedAt = ts
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced marks a transaction as successfully mirrored to the ledger sheet.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'synced' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction synced: %w", err)
	}

	slog.InfoContext(ctx, "Transaction marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a transaction whose sheet append failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark transaction sync error: %w", err)
	}

	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id)
	return nil
}
