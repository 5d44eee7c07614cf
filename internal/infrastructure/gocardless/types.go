package gocardless

import (
	"fmt"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

// tokenResponse is the payload of POST /token/new/
type tokenResponse struct {
	Access        string `json:"access"`
	AccessExpires int    `json:"access_expires"`
}

// errorResponse is the provider's error body shape
type errorResponse struct {
	Summary    string `json:"summary"`
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

// Institution is one entry of the provider's bank catalog for a country
type Institution struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	BIC                  string   `json:"bic"`
	TransactionTotalDays string   `json:"transaction_total_days"`
	Countries            []string `json:"countries"`
	Logo                 string   `json:"logo"`
}

// Requisition represents a consent session at the provider. Accounts holds
// the external account tokens linked once the user completes selection;
// an empty list is a valid state, not an error.
type Requisition struct {
	ID               string   `json:"id"`
	Created          string   `json:"created"`
	Status           string   `json:"status"`
	InstitutionID    string   `json:"institution_id"`
	Link             string   `json:"link"`
	Reference        string   `json:"reference"`
	Accounts         []string `json:"accounts"`
	AccountSelection bool     `json:"account_selection"`
}

// AccountDetails is the payload of GET /accounts/{token}/details/
type AccountDetails struct {
	Account AccountDetail `json:"account"`
}

// AccountDetail carries the fields the sync pipeline depends on; the rest
// of the provider payload is ignored.
type AccountDetail struct {
	ResourceID      string `json:"resourceId"`
	IBAN            string `json:"iban"`
	Currency        string `json:"currency"`
	Name            string `json:"name"`
	OwnerName       string `json:"ownerName"`
	Product         string `json:"product"`
	CashAccountType string `json:"cashAccountType"`
}

// DisplayName picks the best available human-readable name for the account
func (d *AccountDetail) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	if d.Product != "" {
		return d.Product
	}
	if d.OwnerName != "" {
		return d.OwnerName
	}
	return "Bank account"
}

// Amount is the provider's {amount, currency} pair. Amounts come over the
// wire as strings.
type Amount struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Value returns the amount as a float64
func (a Amount) Value() (float64, error) {
	if a.Amount == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(a.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse amount '%s': %w", a.Amount, err)
	}
	return v, nil
}

// Balance is one entry of the balances list for an account
type Balance struct {
	BalanceAmount Amount `json:"balanceAmount"`
	BalanceType   string `json:"balanceType"`
	ReferenceDate string `json:"referenceDate"`
}

// GetReferenceDate parses and returns the balance reference date
func (b *Balance) GetReferenceDate() (*time.Time, error) {
	if b.ReferenceDate == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, b.ReferenceDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse referenceDate '%s': %w", b.ReferenceDate, err)
	}
	return &t, nil
}

// BalancesResponse is the payload of GET /accounts/{token}/balances/
type BalancesResponse struct {
	Balances []Balance `json:"balances"`
}

// Preferred selects the balance entry to store: "expected" if present,
// else "interimAvailable". Returns nil when neither exists so callers
// store no balance rather than a fabricated zero.
func (r *BalancesResponse) Preferred() *Balance {
	for i := range r.Balances {
		if r.Balances[i].BalanceType == "expected" {
			return &r.Balances[i]
		}
	}
	for i := range r.Balances {
		if r.Balances[i].BalanceType == "interimAvailable" {
			return &r.Balances[i]
		}
	}
	return nil
}

// TransactionsResponse is the payload of GET /accounts/{token}/transactions/
type TransactionsResponse struct {
	Transactions TransactionBuckets `json:"transactions"`
}

// TransactionBuckets groups entries into settled and not-yet-settled
type TransactionBuckets struct {
	Booked  []TransactionEntry `json:"booked"`
	Pending []TransactionEntry `json:"pending"`
}

// TransactionEntry is a single ledger entry as reported by the provider
type TransactionEntry struct {
	TransactionID                          string   `json:"transactionId"`
	TransactionAmount                      Amount   `json:"transactionAmount"`
	Description                            string   `json:"description"`
	BookingDate                            string   `json:"bookingDate"`
	ValueDate                              string   `json:"valueDate"`
	RemittanceInformationUnstructured      string   `json:"remittanceInformationUnstructured"`
	RemittanceInformationUnstructuredArray []string `json:"remittanceInformationUnstructuredArray"`
	CreditorName                           string   `json:"creditorName"`
	DebtorName                             string   `json:"debtorName"`
	BankTransactionCode                    string   `json:"bankTransactionCode"`
	ProprietaryBankTransactionCode         string   `json:"proprietaryBankTransactionCode"`
}

// GetBookingDate parses and returns the booking date
func (e *TransactionEntry) GetBookingDate() (*time.Time, error) {
	if e.BookingDate == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, e.BookingDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bookingDate '%s': %w", e.BookingDate, err)
	}
	return &t, nil
}

// GetValueDate parses and returns the value date if present
func (e *TransactionEntry) GetValueDate() (*time.Time, error) {
	if e.ValueDate == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, e.ValueDate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse valueDate '%s': %w", e.ValueDate, err)
	}
	return &t, nil
}

// RemittanceText resolves the remittance fallback chain: the unstructured
// text, else the first entry of the unstructured array, else "Unknown".
func (e *TransactionEntry) RemittanceText() string {
	if e.RemittanceInformationUnstructured != "" {
		return e.RemittanceInformationUnstructured
	}
	if len(e.RemittanceInformationUnstructuredArray) > 0 {
		return e.RemittanceInformationUnstructuredArray[0]
	}
	return "Unknown"
}
