package account

import (
	"errors"
	"time"
)

// Domain errors
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrForbidden       = errors.New("access forbidden")

	// ErrResourceConflict is surfaced when the storage layer's unique
	// constraint on the external resource identifier rejects a write.
	// Two concurrent reconciliations racing on the same remote account
	// end here; the conflict is reported, never silently resolved.
	ErrResourceConflict = errors.New("account resource identifier already linked")
)

// Account is a bank account reconciled from the remote provider.
// ResourceID is the provider's stable account identifier and is unique
// across the whole system, not just per requisition. AccountToken is the
// opaque handle used for subsequent per-account API calls.
type Account struct {
	ID               int64      `json:"id"`
	RequisitionID    int64      `json:"requisitionId"`
	UserID           int64      `json:"userId"` // owner, resolved via the requisition
	ResourceID       string     `json:"resourceId"`
	AccountToken     string     `json:"-"`
	Name             string     `json:"name"`
	IBAN             *string    `json:"iban,omitempty"`
	Currency         string     `json:"currency"`
	Balance          *float64   `json:"balance,omitempty"`
	BalanceUpdatedAt *time.Time `json:"balanceUpdatedAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// UpsertParams contains parameters for creating or updating a reconciled
// account keyed on its external resource identifier.
type UpsertParams struct {
	RequisitionID    int64
	ResourceID       string
	AccountToken     string
	Name             string
	IBAN             *string
	Currency         string
	Balance          *float64
	BalanceUpdatedAt *time.Time
}

// Validate validates the upsert parameters
func (p UpsertParams) Validate() error {
	if p.ResourceID == "" {
		return errors.New("resource ID is required")
	}
	if p.AccountToken == "" {
		return errors.New("account token is required")
	}
	if p.RequisitionID <= 0 {
		return errors.New("valid requisition ID is required")
	}
	if p.Currency == "" {
		return errors.New("currency is required")
	}
	return nil
}
