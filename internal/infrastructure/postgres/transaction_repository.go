package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Tovborg/TovborgFinance/internal/domain/transaction"
)

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	db *DB
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, account_id, transaction_id, amount, currency, booking_date, value_date,
	description, remittance_information, creditor_name, debtor_name,
	transaction_type, status, created_at`

// InsertBatch appends ledger entries for one account in a single storage
// transaction. A per-account advisory lock serializes concurrent ingestions
// so two runs over the same account cannot race past the dedupe check.
// Already-stored identifiers are left untouched and counted as skipped.
func (r *TransactionRepository) InsertBatch(ctx context.Context, accountID int64, entries []transaction.CreateParams) (created, skipped int, err error) {
	if len(entries) == 0 {
		return 0, 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock is released automatically when the transaction ends.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1::text))`, fmt.Sprintf("account:%d", accountID)); err != nil {
		return 0, 0, fmt.Errorf("failed to acquire ingestion lock: %w", err)
	}

	query := `
		INSERT INTO transactions (
			account_id, transaction_id, amount, currency, booking_date, value_date,
			description, remittance_information, creditor_name, debtor_name,
			transaction_type, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (transaction_id) DO NOTHING`

	for _, entry := range entries {
		result, err := tx.ExecContext(ctx, query,
			accountID, entry.TransactionID, entry.Amount, entry.Currency,
			entry.BookingDate, entry.ValueDate,
			entry.Description, entry.RemittanceInformation,
			entry.CreditorName, entry.DebtorName,
			entry.TransactionType, entry.Status,
		)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert transaction %s: %w", entry.TransactionID, err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to get affected rows: %w", err)
		}
		if rows > 0 {
			created++
		} else {
			skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit ingestion: %w", err)
	}
	return created, skipped, nil
}

// GetByTransactionID retrieves an entry by its external identifier.
// Returns (nil, nil) when the identifier has never been ingested.
func (r *TransactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE transaction_id = $1`

	txn, err := scanTransaction(r.db.QueryRowContext(ctx, query, transactionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// ListByAccountID retrieves stored entries for an account, newest booking date first
func (r *TransactionRepository) ListByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY booking_date DESC, id DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, query, accountID, limit, offset)
}

// ListByUserID retrieves stored entries across all accounts of a user
func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id IN (
			SELECT a.id FROM accounts a
			JOIN bank_requisitions r ON r.id = a.requisition_id
			WHERE r.user_id = $1
		)
		ORDER BY booking_date DESC, id DESC
		LIMIT $2 OFFSET $3`
	return r.list(ctx, query, userID, limit, offset)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// CountByAccountID returns the number of stored entries for an account
func (r *TransactionRepository) CountByAccountID(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var txn transaction.Transaction
	var valueDate sql.NullTime

	err := row.Scan(
		&txn.ID, &txn.AccountID, &txn.TransactionID, &txn.Amount, &txn.Currency,
		&txn.BookingDate, &valueDate,
		&txn.Description, &txn.RemittanceInformation,
		&txn.CreditorName, &txn.DebtorName,
		&txn.TransactionType, &txn.Status, &txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if valueDate.Valid {
		txn.ValueDate = &valueDate.Time
	}

	return &txn, nil
}
