package gocardless

import "context"

// ClientInterface defines the methods the sync pipeline requires from the
// GoCardless API client
type ClientInterface interface {
	Authenticate(ctx context.Context) error
	ListInstitutions(ctx context.Context, countryCode string) ([]Institution, error)
	CreateRequisition(ctx context.Context, institutionID, redirectURL, reference string) (*Requisition, error)
	ListLinkedAccounts(ctx context.Context, requisitionID string) ([]string, error)
	GetAccountDetails(ctx context.Context, accountToken string) (*AccountDetails, error)
	GetAccountBalances(ctx context.Context, accountToken string) (*BalancesResponse, error)
	GetAccountTransactions(ctx context.Context, accountToken string) (*TransactionsResponse, error)
}
