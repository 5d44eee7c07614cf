// Package gocardless wraps the GoCardless Bank Account Data API v2.
// All remote calls of the sync pipeline go through this client; it holds
// the session credential and presents domain-shaped results, but performs
// no local persistence and no retries.
package gocardless

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultBaseURL = "https://bankaccountdata.gocardless.com/api/v2"
	defaultTimeout = 30 * time.Second
	connectTimeout = 5 * time.Second
)

// Credentials are the three provider secrets exchanged for an access token
type Credentials struct {
	SecretID   string
	SecretKey  string
	SecretName string
}

// Client handles communication with the GoCardless Bank Account Data API.
// The access token is held per client instance with its refresh timestamp
// and obtained lazily, exactly once per idle instance; a token gone stale
// surfaces as an AuthError on the next call rather than being refreshed.
type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      Credentials

	mu              sync.Mutex
	token           string
	tokenObtainedAt time.Time
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// NewClient creates a new GoCardless API client
func NewClient(creds Credentials) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
			Transport: otelhttp.NewTransport(&http.Transport{
				DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
			}),
		},
		baseURL: defaultBaseURL,
		creds:   creds,
	}
}

// Authenticate exchanges the configured secret pair for a short-lived
// access token. Returns ErrMissingCredentials when any secret is absent
// and an AuthError when the provider rejects the exchange.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	if c.creds.SecretID == "" || c.creds.SecretKey == "" || c.creds.SecretName == "" {
		return ErrMissingCredentials
	}

	payload, err := json.Marshal(map[string]string{
		"secret_id":  c.creds.SecretID,
		"secret_key": c.creds.SecretKey,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token/new/", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &AuthError{Summary: "token exchange request failed"}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &AuthError{StatusCode: resp.StatusCode, Summary: "failed to read token response"}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &AuthError{StatusCode: resp.StatusCode, Summary: summarizeError(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil || tr.Access == "" {
		return &AuthError{StatusCode: resp.StatusCode, Summary: "token response missing access token"}
	}

	c.token = tr.Access
	c.tokenObtainedAt = time.Now()
	return nil
}

// ensureToken authenticates lazily on the first call of an idle client
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" {
		if err := c.authenticateLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.token, nil
}

// ListInstitutions returns the catalog of supported banks for a country.
// Callers must tolerate an empty list.
func (c *Client) ListInstitutions(ctx context.Context, countryCode string) ([]Institution, error) {
	var institutions []Institution
	if err := c.get(ctx, "list institutions", "/institutions/?country="+countryCode, &institutions); err != nil {
		return nil, err
	}
	return institutions, nil
}

// CreateRequisition requests a new consent session with the provider.
// When reference is empty a fresh random correlation token is generated.
func (c *Client) CreateRequisition(ctx context.Context, institutionID, redirectURL, reference string) (*Requisition, error) {
	const op = "create requisition"

	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	if reference == "" {
		reference = uuid.NewString()
	}

	payload, err := json.Marshal(map[string]string{
		"institution_id": institutionID,
		"redirect":       redirectURL,
		"reference":      reference,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal requisition payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/requisitions/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	var requisition Requisition
	if err := c.do(req, op, &requisition); err != nil {
		return nil, err
	}

	if requisition.ID == "" || requisition.Link == "" || requisition.Status == "" {
		return nil, &APIError{Operation: op, Summary: "requisition response missing id, status or link"}
	}

	return &requisition, nil
}

// ListLinkedAccounts returns the external account tokens linked to a
// requisition. An empty result means the user has not completed account
// selection yet; it is a valid outcome, not an error.
func (c *Client) ListLinkedAccounts(ctx context.Context, requisitionID string) ([]string, error) {
	var requisition Requisition
	if err := c.get(ctx, "list linked accounts", "/requisitions/"+requisitionID+"/", &requisition); err != nil {
		return nil, err
	}
	return requisition.Accounts, nil
}

// GetAccountDetails fetches details for one linked account token
func (c *Client) GetAccountDetails(ctx context.Context, accountToken string) (*AccountDetails, error) {
	var details AccountDetails
	if err := c.get(ctx, "get account details", "/accounts/"+accountToken+"/details/", &details); err != nil {
		return nil, err
	}
	return &details, nil
}

// GetAccountBalances fetches the balance list for one linked account token
func (c *Client) GetAccountBalances(ctx context.Context, accountToken string) (*BalancesResponse, error) {
	var balances BalancesResponse
	if err := c.get(ctx, "get account balances", "/accounts/"+accountToken+"/balances/", &balances); err != nil {
		return nil, err
	}
	return &balances, nil
}

// GetAccountTransactions fetches booked and pending entries for one
// linked account token
func (c *Client) GetAccountTransactions(ctx context.Context, accountToken string) (*TransactionsResponse, error) {
	var transactions TransactionsResponse
	if err := c.get(ctx, "get account transactions", "/accounts/"+accountToken+"/transactions/", &transactions); err != nil {
		return nil, err
	}
	return &transactions, nil
}

// get performs an authenticated GET and decodes the response into out
func (c *Client) get(ctx context.Context, op, path string, out any) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, op, out)
}

// do executes a prepared request, mapping every failure mode to the error
// taxonomy: rejected token to AuthError, anything else to APIError.
// Timeouts are not distinguished from other transport failures.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &APIError{Operation: op, Summary: "request failed: " + transportSummary(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Summary: "failed to read response body"}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{StatusCode: resp.StatusCode, Summary: summarizeError(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Summary: summarizeError(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Summary: "failed to decode response payload"}
	}

	return nil
}

// summarizeError extracts a short description from a provider error body
// without passing the raw body through to callers.
func summarizeError(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		if er.Summary != "" {
			return er.Summary
		}
		if er.Detail != "" {
			return er.Detail
		}
	}
	return "provider returned an error"
}

// transportSummary reduces a transport error to a stable description
func transportSummary(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	return "network error"
}
