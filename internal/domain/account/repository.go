package account

import "context"

// Repository defines the interface for account data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// GetByID retrieves an account by its local ID.
	// Returns ErrAccountNotFound when absent.
	GetByID(ctx context.Context, id int64) (*Account, error)

	// FindByResourceID looks an account up by its external resource
	// identifier. Intentionally returns (nil, nil) when absent.
	FindByResourceID(ctx context.Context, resourceID string) (*Account, error)

	// ListByUserID retrieves all accounts for a specific user
	ListByUserID(ctx context.Context, userID int64) ([]*Account, error)

	// ListByRequisitionID retrieves the accounts linked to one requisition
	ListByRequisitionID(ctx context.Context, requisitionID int64) ([]*Account, error)

	// SaveReconciled persists a reconciliation batch in a single storage
	// transaction: either every upsert commits or none does. A unique
	// violation on the resource identifier aborts the batch with
	// ErrResourceConflict.
	SaveReconciled(ctx context.Context, batch []UpsertParams) ([]*Account, error)

	// Delete removes an account; storage cascades to its transactions.
	Delete(ctx context.Context, id int64) error
}
