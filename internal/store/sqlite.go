// internal/store/sqlite.go

// Package store persists account definitions and last-run status in SQLite.
// Writes are whole-record replacements keyed by account name, so concurrent
// runs for different accounts never contend.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements schemas.StatusStore on a single SQLite file.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ schemas.StatusStore = (*SQLiteStore)(nil)

// Open creates the data directory if needed, runs migrations, and returns a
// ready store.
func Open(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "portal-sentry.db")
	sqlDB, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db := sqlx.NewDb(sqlDB, "sqlite3")
	// SQLite does not support concurrent writers.
	db.SetMaxOpenConns(1)

	return &SQLiteStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// CreateAccount inserts a new account, enforcing name uniqueness.
func (s *SQLiteStore) CreateAccount(ctx context.Context, acc schemas.Account) error {
	now := time.Now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	var exists int
	if err := s.db.GetContext(ctx, &exists, `SELECT COUNT(1) FROM accounts WHERE name = ?`, acc.Name); err != nil {
		return fmt.Errorf("check account existence: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("account %q: %w", acc.Name, schemas.ErrAccountExists)
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO accounts (
			name, username, password, login_url, schedule,
			notify_on_run, email_to, send_on_no_data, weekly_report, monthly_report,
			created_at, updated_at
		) VALUES (
			:name, :username, :password, :login_url, :schedule,
			:notify_on_run, :email_to, :send_on_no_data, :weekly_report, :monthly_report,
			:created_at, :updated_at
		)`, acc)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount fetches one account by name.
func (s *SQLiteStore) GetAccount(ctx context.Context, name string) (schemas.Account, error) {
	var acc schemas.Account
	err := s.db.GetContext(ctx, &acc, `SELECT * FROM accounts WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return schemas.Account{}, fmt.Errorf("account %q: %w", name, schemas.ErrAccountNotFound)
	}
	if err != nil {
		return schemas.Account{}, fmt.Errorf("get account: %w", err)
	}
	return acc, nil
}

// SaveAccount replaces the stored record wholesale.
func (s *SQLiteStore) SaveAccount(ctx context.Context, acc schemas.Account) error {
	acc.UpdatedAt = time.Now().UTC()

	res, err := s.db.NamedExecContext(ctx, `
		UPDATE accounts SET
			username = :username,
			password = :password,
			login_url = :login_url,
			schedule = :schedule,
			notify_on_run = :notify_on_run,
			email_to = :email_to,
			send_on_no_data = :send_on_no_data,
			weekly_report = :weekly_report,
			monthly_report = :monthly_report,
			updated_at = :updated_at
		WHERE name = :name`, acc)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %q: %w", acc.Name, schemas.ErrAccountNotFound)
	}
	return nil
}

// DeleteAccount removes the account and its status record in one transaction.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, name string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("account %q: %w", name, schemas.ErrAccountNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM statuses WHERE account = ?`, name); err != nil {
		return fmt.Errorf("delete status: %w", err)
	}

	return tx.Commit()
}

// ListAccounts returns all accounts ordered by name.
func (s *SQLiteStore) ListAccounts(ctx context.Context) ([]schemas.Account, error) {
	var accounts []schemas.Account
	if err := s.db.SelectContext(ctx, &accounts, `SELECT * FROM accounts ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// SetStatus upserts the whole status record for an account.
func (s *SQLiteStore) SetStatus(ctx context.Context, rec schemas.StatusRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO statuses (account, last_run_at, result, row_count, last_error, screenshot_path)
		VALUES (:account, :last_run_at, :result, :row_count, :last_error, :screenshot_path)
		ON CONFLICT(account) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			result = excluded.result,
			row_count = excluded.row_count,
			last_error = excluded.last_error,
			screenshot_path = excluded.screenshot_path`, rec)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}

// GetStatus returns the latest status for an account. An account that exists
// but has never run yields the pending default.
func (s *SQLiteStore) GetStatus(ctx context.Context, name string) (schemas.StatusRecord, error) {
	var rec schemas.StatusRecord
	err := s.db.GetContext(ctx, &rec, `SELECT * FROM statuses WHERE account = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		if _, accErr := s.GetAccount(ctx, name); accErr != nil {
			return schemas.StatusRecord{}, accErr
		}
		return schemas.StatusRecord{Account: name, Result: schemas.ResultPending}, nil
	}
	if err != nil {
		return schemas.StatusRecord{}, fmt.Errorf("get status: %w", err)
	}
	return rec, nil
}

// ListStatuses returns the latest status for every account that has one.
func (s *SQLiteStore) ListStatuses(ctx context.Context) ([]schemas.StatusRecord, error) {
	var recs []schemas.StatusRecord
	if err := s.db.SelectContext(ctx, &recs, `SELECT * FROM statuses ORDER BY account`); err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	return recs, nil
}
