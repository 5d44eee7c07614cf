package transaction

import "context"

// Repository defines the interface for transaction data access
type Repository interface {
	// InsertBatch appends new ledger entries for one account in a single
	// storage transaction, serialized per account so two concurrent
	// ingestions cannot double-insert. Entries whose transaction
	// identifier is already stored are left untouched and counted as
	// skipped; the batch either commits fully or not at all.
	InsertBatch(ctx context.Context, accountID int64, entries []CreateParams) (created, skipped int, err error)

	// GetByTransactionID retrieves an entry by its external identifier.
	// Intentionally returns (nil, nil) when absent.
	GetByTransactionID(ctx context.Context, transactionID string) (*Transaction, error)

	// ListByAccountID retrieves stored entries for an account, newest
	// booking date first.
	ListByAccountID(ctx context.Context, accountID int64, limit, offset int) ([]*Transaction, error)

	// ListByUserID retrieves stored entries across all of a user's accounts
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Transaction, error)

	// CountByAccountID returns the number of stored entries for an account
	CountByAccountID(ctx context.Context, accountID int64) (int64, error)
}
