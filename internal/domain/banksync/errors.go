package banksync

import (
	"errors"
	"fmt"
)

var (
	// ErrNotOwner is returned when the resolved requisition or account
	// exists but belongs to a different user than the caller.
	ErrNotOwner = errors.New("resource is not owned by the requesting user")

	// ErrNoAccountsLinked marks the valid-but-empty case: the user has not
	// completed account selection at the bank yet. Distinct from any
	// transport failure.
	ErrNoAccountsLinked = errors.New("requisition has no linked accounts yet")

	// ErrIngestionFailed is returned when every entry of a transaction
	// payload failed to normalize.
	ErrIngestionFailed = errors.New("no transaction entry could be ingested")
)

// OwnershipConflictError aborts a reconciliation when a remote account is
// already linked to a different user's requisition. This is a security
// boundary: the whole run stops and nothing from it is committed.
type OwnershipConflictError struct {
	ResourceID string
	Reference  string
}

func (e *OwnershipConflictError) Error() string {
	return fmt.Sprintf("account %s is already linked to another user (requisition %s)", e.ResourceID, e.Reference)
}
