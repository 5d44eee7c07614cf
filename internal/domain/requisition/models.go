package requisition

import (
	"errors"
	"time"
)

var ErrRequisitionNotFound = errors.New("requisition not found")

// Requisition represents one bank-connection consent flow at the provider.
// Immutable after creation except for Status; deleting a requisition
// cascades to its reconciled accounts.
type Requisition struct {
	ID               int64     `json:"id"`
	RequisitionID    string    `json:"requisitionId"` // provider-issued identifier
	InstitutionID    string    `json:"institutionId"`
	Reference        string    `json:"reference"` // internal correlation reference, unique
	Link             string    `json:"link"`      // consent redirect URL
	Status           string    `json:"status"`
	AccountSelection bool      `json:"accountSelection"`
	UserID           int64     `json:"userId"`
	CreatedAt        time.Time `json:"createdAt"`
}

type CreateParams struct {
	RequisitionID    string
	InstitutionID    string
	Reference        string
	Link             string
	Status           string
	AccountSelection bool
	UserID           int64
}

// Validate checks the fields a requisition cannot be persisted without.
func (p CreateParams) Validate() error {
	if p.RequisitionID == "" {
		return errors.New("provider requisition ID is required")
	}
	if p.InstitutionID == "" {
		return errors.New("institution ID is required")
	}
	if p.Reference == "" {
		return errors.New("reference is required")
	}
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	return nil
}
