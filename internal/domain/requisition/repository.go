package requisition

import "context"

// Repository defines the interface for requisition data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	Create(ctx context.Context, params CreateParams) (*Requisition, error)

	// GetByReference resolves a requisition by its unique internal
	// correlation reference. Returns ErrRequisitionNotFound when absent.
	GetByReference(ctx context.Context, reference string) (*Requisition, error)

	ListByUserID(ctx context.Context, userID int64) ([]*Requisition, error)

	// UpdateStatus mutates the only mutable field of a requisition.
	UpdateStatus(ctx context.Context, reference, status string) error

	// Delete removes a requisition; storage cascades to its accounts
	// and their transactions.
	Delete(ctx context.Context, reference string) error
}
