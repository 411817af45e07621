// Package store provides SQLite-backed persistence for the development server.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/taskdeck/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrUsernameTaken is returned when an account with the username exists.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrNoResetToken is returned when the account has no usable reset token.
	ErrNoResetToken = errors.New("no password reset token")
)

// Store provides access to the devserver SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations. Use ":memory:" for a
// throwaway database.
func New(dbPath string) (*Store, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps an in-memory database alive for the life of the Store.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		username TEXT,
		password_hash TEXT,
		country_code TEXT,
		phone_number TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY (account_id) REFERENCES accounts(id)
	);

	CREATE TABLE IF NOT EXISTS password_reset_tokens (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		token_hash TEXT NOT NULL,
		expires_at DATETIME NOT NULL,
		used INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (account_id) REFERENCES accounts(id)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_username ON accounts(username) WHERE username IS NOT NULL;
	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_phone ON accounts(country_code, phone_number) WHERE phone_number IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_tasks_account_id ON tasks(account_id);
	CREATE INDEX IF NOT EXISTS idx_reset_tokens_account_id ON password_reset_tokens(account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Account Operations ---

const accountColumns = `id, first_name, last_name, username, country_code, phone_number`

func scanAccount(row interface{ Scan(...any) error }) (*models.Account, error) {
	var acc models.Account
	var username, countryCode, phone sql.NullString
	if err := row.Scan(&acc.ID, &acc.FirstName, &acc.LastName, &username, &countryCode, &phone); err != nil {
		return nil, err
	}
	acc.Username = username.String
	if phone.Valid {
		acc.PhoneNumber = &models.PhoneNumber{CountryCode: countryCode.String, Number: phone.String}
	}
	return &acc, nil
}

// CreateAccount inserts a username/password account.
func (s *Store) CreateAccount(firstName, lastName, username, passwordHash string) (*models.Account, error) {
	acc := &models.Account{
		ID:        uuid.New().String(),
		FirstName: firstName,
		LastName:  lastName,
		Username:  username,
	}

	_, err := s.db.Exec(
		`INSERT INTO accounts (id, first_name, last_name, username, password_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		acc.ID, acc.FirstName, acc.LastName, acc.Username, passwordHash, time.Now().UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// GetOrCreateAccountByPhone returns the account registered to phone,
// creating it on first use.
func (s *Store) GetOrCreateAccountByPhone(phone models.PhoneNumber) (*models.Account, error) {
	acc, err := s.GetAccountByPhone(phone)
	if err != nil || acc != nil {
		return acc, err
	}

	acc = &models.Account{ID: uuid.New().String(), PhoneNumber: &phone}
	_, err = s.db.Exec(
		`INSERT INTO accounts (id, country_code, phone_number, created_at) VALUES (?, ?, ?, ?)`,
		acc.ID, phone.CountryCode, phone.Number, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return acc, nil
}

// GetAccount retrieves an account by ID. Returns nil when absent.
func (s *Store) GetAccount(id string) (*models.Account, error) {
	acc, err := scanAccount(s.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return acc, nil
}

// GetAccountByPhone retrieves an account by phone number. Returns nil when
// absent.
func (s *Store) GetAccountByPhone(phone models.PhoneNumber) (*models.Account, error) {
	acc, err := scanAccount(s.db.QueryRow(
		`SELECT `+accountColumns+` FROM accounts WHERE country_code = ? AND phone_number = ?`,
		phone.CountryCode, phone.Number,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	return acc, nil
}

// GetCredentials returns the account and password hash for username.
// Returns nil when absent.
func (s *Store) GetCredentials(username string) (*models.Account, string, error) {
	var hash sql.NullString
	var acc models.Account
	var user, countryCode, phone sql.NullString
	err := s.db.QueryRow(
		`SELECT `+accountColumns+`, password_hash FROM accounts WHERE username = ?`,
		username,
	).Scan(&acc.ID, &acc.FirstName, &acc.LastName, &user, &countryCode, &phone, &hash)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("query account: %w", err)
	}
	acc.Username = user.String
	if phone.Valid {
		acc.PhoneNumber = &models.PhoneNumber{CountryCode: countryCode.String, Number: phone.String}
	}
	return &acc, hash.String, nil
}

// --- Task Operations ---

// CreateTask inserts a new task owned by accountID.
func (s *Store) CreateTask(accountID, title, description string) (*models.Task, error) {
	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Title:       title,
		Description: description,
	}

	_, err := s.db.Exec(
		`INSERT INTO tasks (id, account_id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID, task.AccountID, task.Title, task.Description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return task, nil
}

// GetTask retrieves one of an account's tasks. Returns nil when absent.
func (s *Store) GetTask(accountID, id string) (*models.Task, error) {
	task := &models.Task{}
	err := s.db.QueryRow(
		`SELECT id, account_id, title, description FROM tasks WHERE id = ? AND account_id = ?`,
		id, accountID,
	).Scan(&task.ID, &task.AccountID, &task.Title, &task.Description)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return task, nil
}

// ListTasks returns one page of an account's tasks, newest first, and the
// account's total task count.
func (s *Store) ListTasks(accountID string, page, size int) ([]models.Task, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE account_id = ?`, accountID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT id, account_id, title, description FROM tasks WHERE account_id = ? ORDER BY rowid DESC LIMIT ? OFFSET ?`,
		accountID, size, (page-1)*size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(&task.ID, &task.AccountID, &task.Title, &task.Description); err != nil {
			return nil, 0, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, total, rows.Err()
}

// UpdateTask replaces a task's title and description. Returns nil when the
// task does not exist.
func (s *Store) UpdateTask(accountID, id, title, description string) (*models.Task, error) {
	result, err := s.db.Exec(
		`UPDATE tasks SET title = ?, description = ?, updated_at = ? WHERE id = ? AND account_id = ?`,
		title, description, time.Now().UTC(), id, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return &models.Task{ID: id, AccountID: accountID, Title: title, Description: description}, nil
}

// DeleteTask removes a task. It reports whether a task was removed.
func (s *Store) DeleteTask(accountID, id string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM tasks WHERE id = ? AND account_id = ?`, id, accountID)
	if err != nil {
		return false, fmt.Errorf("delete task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}
	return n > 0, nil
}

// --- Password Reset Token Operations ---

// ResetToken is a stored password reset token. Only its hash is kept.
type ResetToken struct {
	ID        string
	AccountID string
	TokenHash string
	ExpiresAt time.Time
}

// CreateResetToken stores a new reset token hash for accountID.
func (s *Store) CreateResetToken(accountID, tokenHash string, ttl time.Duration) (*ResetToken, error) {
	now := time.Now().UTC()
	tok := &ResetToken{
		ID:        uuid.New().String(),
		AccountID: accountID,
		TokenHash: tokenHash,
		ExpiresAt: now.Add(ttl),
	}

	_, err := s.db.Exec(
		`INSERT INTO password_reset_tokens (id, account_id, token_hash, expires_at, created_at) VALUES (?, ?, ?, ?, ?)`,
		tok.ID, tok.AccountID, tok.TokenHash, tok.ExpiresAt, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reset token: %w", err)
	}
	return tok, nil
}

// LatestResetToken returns the newest unused reset token of an account.
func (s *Store) LatestResetToken(accountID string) (*ResetToken, error) {
	var tok ResetToken
	err := s.db.QueryRow(
		`SELECT id, account_id, token_hash, expires_at FROM password_reset_tokens
		 WHERE account_id = ? AND used = 0 ORDER BY rowid DESC LIMIT 1`,
		accountID,
	).Scan(&tok.ID, &tok.AccountID, &tok.TokenHash, &tok.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoResetToken
	}
	if err != nil {
		return nil, fmt.Errorf("query reset token: %w", err)
	}
	return &tok, nil
}

// ResetPasswordTx sets the new password hash and consumes the reset token in
// a single transaction.
func (s *Store) ResetPasswordTx(tokenID, accountID, passwordHash string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`UPDATE password_reset_tokens SET used = 1 WHERE id = ? AND used = 0`, tokenID)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoResetToken
	}

	if _, err := tx.Exec(`UPDATE accounts SET password_hash = ? WHERE id = ?`, passwordHash, accountID); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
