package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Tovborg/TovborgFinance/internal/domain/account"
)

// TokenCipher encrypts account tokens before they hit storage and
// decrypts them on the way out.
type TokenCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AccountRepository implements the account.Repository interface for PostgreSQL
type AccountRepository struct {
	db     *DB
	cipher TokenCipher
}

// NewAccountRepository creates a new PostgreSQL account repository.
// Account tokens are stored encrypted with the given cipher.
func NewAccountRepository(db *DB, cipher TokenCipher) *AccountRepository {
	return &AccountRepository{db: db, cipher: cipher}
}

// Accounts carry no user_id column; ownership is always resolved through
// the requisition they are linked to.
const accountColumns = `
	a.id, a.requisition_id, r.user_id, a.resource_id, a.account_token,
	a.name, a.iban, a.currency, a.balance, a.balance_updated_at,
	a.created_at, a.updated_at`

const accountFrom = ` FROM accounts a JOIN bank_requisitions r ON r.id = a.requisition_id`

// GetByID retrieves an account by its local ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*account.Account, error) {
	query := `SELECT` + accountColumns + accountFrom + ` WHERE a.id = $1`

	acc, err := r.scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, account.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return acc, nil
}

// FindByResourceID looks an account up by its external resource identifier.
// Returns (nil, nil) when no account is linked to that identifier yet.
func (r *AccountRepository) FindByResourceID(ctx context.Context, resourceID string) (*account.Account, error) {
	query := `SELECT` + accountColumns + accountFrom + ` WHERE a.resource_id = $1`

	acc, err := r.scanAccount(r.db.QueryRowContext(ctx, query, resourceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account by resource id: %w", err)
	}
	return acc, nil
}

// ListByUserID retrieves all accounts belonging to a user, newest first
func (r *AccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*account.Account, error) {
	query := `SELECT` + accountColumns + accountFrom + ` WHERE r.user_id = $1 ORDER BY a.created_at DESC`
	return r.list(ctx, query, userID)
}

// ListByRequisitionID retrieves the accounts linked to one requisition
func (r *AccountRepository) ListByRequisitionID(ctx context.Context, requisitionID int64) ([]*account.Account, error) {
	query := `SELECT` + accountColumns + accountFrom + ` WHERE a.requisition_id = $1 ORDER BY a.created_at DESC`
	return r.list(ctx, query, requisitionID)
}

func (r *AccountRepository) list(ctx context.Context, query string, arg any) ([]*account.Account, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account
	for rows.Next() {
		acc, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// SaveReconciled persists a reconciliation batch atomically. Every upsert
// runs in one transaction and the returned slice preserves batch order.
//
// The ON CONFLICT update is guarded by an ownership check: when the stored
// account hangs off a requisition owned by a different user than the
// incoming one, the update matches no row, the statement returns no row
// and the whole batch rolls back with ErrResourceConflict. An identifier
// is never silently re-linked across users.
func (r *AccountRepository) SaveReconciled(ctx context.Context, batch []account.UpsertParams) ([]*account.Account, error) {
	if len(batch) == 0 {
		return nil, nil
	}
	for _, params := range batch {
		if err := params.Validate(); err != nil {
			return nil, fmt.Errorf("invalid account parameters: %w", err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO accounts (requisition_id, resource_id, account_token, name, iban, currency, balance, balance_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (resource_id) DO UPDATE SET
			requisition_id     = EXCLUDED.requisition_id,
			account_token      = EXCLUDED.account_token,
			name               = EXCLUDED.name,
			iban               = COALESCE(EXCLUDED.iban, accounts.iban),
			currency           = EXCLUDED.currency,
			balance            = COALESCE(EXCLUDED.balance, accounts.balance),
			balance_updated_at = COALESCE(EXCLUDED.balance_updated_at, accounts.balance_updated_at),
			updated_at         = NOW()
		WHERE (SELECT user_id FROM bank_requisitions WHERE id = accounts.requisition_id)
		    = (SELECT user_id FROM bank_requisitions WHERE id = EXCLUDED.requisition_id)
		RETURNING id, requisition_id,
			(SELECT user_id FROM bank_requisitions WHERE id = requisition_id),
			resource_id, account_token, name, iban, currency,
			balance, balance_updated_at, created_at, updated_at`

	saved := make([]*account.Account, 0, len(batch))
	for _, params := range batch {
		token, err := r.cipher.Encrypt(params.AccountToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt account token: %w", err)
		}

		row := tx.QueryRowContext(ctx, query,
			params.RequisitionID, params.ResourceID, token,
			params.Name, params.IBAN, params.Currency,
			params.Balance, params.BalanceUpdatedAt,
		)

		acc, err := r.scanAccount(row)
		if err == sql.ErrNoRows {
			return nil, account.ErrResourceConflict
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, account.ErrResourceConflict
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save account %s: %w", params.ResourceID, err)
		}
		saved = append(saved, acc)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return saved, nil
}

// Delete removes an account; its transactions cascade in storage
func (r *AccountRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) scanAccount(row rowScanner) (*account.Account, error) {
	var acc account.Account
	var iban sql.NullString
	var balance sql.NullFloat64
	var balanceUpdatedAt sql.NullTime

	err := row.Scan(
		&acc.ID, &acc.RequisitionID, &acc.UserID, &acc.ResourceID, &acc.AccountToken,
		&acc.Name, &iban, &acc.Currency, &balance, &balanceUpdatedAt,
		&acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	acc.AccountToken, err = r.cipher.Decrypt(acc.AccountToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt account token: %w", err)
	}

	if iban.Valid {
		acc.IBAN = &iban.String
	}
	if balance.Valid {
		acc.Balance = &balance.Float64
	}
	if balanceUpdatedAt.Valid {
		acc.BalanceUpdatedAt = &balanceUpdatedAt.Time
	}

	return &acc, nil
}
