package transaction

import (
	"errors"
	"time"
)

// Transaction status values as reported by the banking provider.
const (
	StatusBooked  = "booked"
	StatusPending = "pending"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// Transaction is a single booked or pending ledger entry. TransactionID is
// the provider's identifier and the deduplication key: once stored, an
// entry is never overwritten by a later ingestion of the same identifier.
type Transaction struct {
	ID                    int64      `json:"id"`
	AccountID             int64      `json:"accountId"`
	TransactionID         string     `json:"transactionId"`
	Amount                float64    `json:"amount"`
	Currency              string     `json:"currency"`
	BookingDate           time.Time  `json:"bookingDate"`
	ValueDate             *time.Time `json:"valueDate,omitempty"`
	Description           string     `json:"description"`
	RemittanceInformation string     `json:"remittanceInformation"`
	CreditorName          string     `json:"creditorName"`
	DebtorName            string     `json:"debtorName"`
	TransactionType       string     `json:"transactionType"`
	Status                string     `json:"status"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// CreateParams contains the normalized fields for one new ledger entry.
type CreateParams struct {
	TransactionID         string
	Amount                float64
	Currency              string
	BookingDate           time.Time
	ValueDate             *time.Time
	Description           string
	RemittanceInformation string
	CreditorName          string
	DebtorName            string
	TransactionType       string
	Status                string
}
