package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ruteri/wallet-kernel/interfaces"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores users in an embedded SQLite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open user database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps pragmas in force.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate user database: %w", err)
	}

	return &SQLiteRepository{db: db, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) Create(ctx context.Context, user *interfaces.UserEntity) error {
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (username, encrypted_password, salt, kyc_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, user.Username, user.EncryptedPassword, user.Salt, string(user.KycStatus), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", interfaces.ErrUserExists, user.Username)
		}
		return fmt.Errorf("failed to create user %s: %w", user.Username, err)
	}
	user.CreatedAt, user.UpdatedAt = now, now
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, username string) (*interfaces.UserEntity, error) {
	var (
		user                 interfaces.UserEntity
		kyc                  string
		createdAt, updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT username, encrypted_password, salt, kyc_status, created_at, updated_at
		FROM users WHERE username = ?
	`, username).Scan(&user.Username, &user.EncryptedPassword, &user.Salt, &kyc, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUserNotFound, username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}
	user.KycStatus = interfaces.KycStatus(kyc)
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	user.WalletTransactions, err = r.transactions(ctx, username)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *SQLiteRepository) transactions(ctx context.Context, username string) ([]interfaces.WalletTxInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, block_id, transaction_id, receiver, incoming, amount, network, status, explorer_url
		FROM wallet_transactions WHERE username = ? ORDER BY id
	`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var txs []interfaces.WalletTxInfo
	for rows.Next() {
		var (
			tx   interfaces.WalletTxInfo
			date string
		)
		if err := rows.Scan(&date, &tx.BlockID, &tx.TransactionID, &tx.Receiver, &tx.Incoming, &tx.Amount, &tx.Network, &tx.Status, &tx.ExplorerURL); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		if tx.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction rows: %w", err)
	}
	return txs, nil
}

// Update overwrites the mutable user fields. The transaction history is
// only changed through AppendWalletTransaction.
func (r *SQLiteRepository) Update(ctx context.Context, user *interfaces.UserEntity) error {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET encrypted_password = ?, salt = ?, kyc_status = ?, updated_at = ?
		WHERE username = ?
	`, user.EncryptedPassword, user.Salt, string(user.KycStatus), formatTime(now), user.Username)
	if err != nil {
		return fmt.Errorf("failed to update user %s: %w", user.Username, err)
	}
	if err := expectOneRow(res, user.Username); err != nil {
		return err
	}
	user.UpdatedAt = now
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, username string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete user %s: %w", username, err)
	}
	return expectOneRow(res, username)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT username FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) AppendWalletTransaction(ctx context.Context, username string, tx interfaces.WalletTxInfo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallet_transactions (username, date, block_id, transaction_id, receiver, incoming, amount, network, status, explorer_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, username, formatTime(tx.Date), tx.BlockID, tx.TransactionID, tx.Receiver, tx.Incoming, tx.Amount, tx.Network, tx.Status, tx.ExplorerURL)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY") {
			return fmt.Errorf("%w: %s", interfaces.ErrUserNotFound, username)
		}
		return fmt.Errorf("failed to append transaction for %s: %w", username, err)
	}
	return nil
}

func expectOneRow(res sql.Result, username string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", interfaces.ErrUserNotFound, username)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q in user database: %w", s, err)
	}
	return t, nil
}
