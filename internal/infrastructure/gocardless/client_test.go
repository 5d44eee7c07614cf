package gocardless

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{
	SecretID:   "secret-id",
	SecretKey:  "secret-key",
	SecretName: "secret-name",
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(testCreds)
	client.baseURL = server.URL
	return client, server
}

// tokenThen wraps a handler with the token exchange endpoint so calls that
// authenticate lazily succeed.
func tokenThen(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/new/" {
			json.NewEncoder(w).Encode(map[string]any{"access": "test-token", "access_expires": 86400})
			return
		}
		next(w, r)
	}
}

func TestAuthenticate(t *testing.T) {
	var gotBody map[string]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/token/new/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(map[string]any{"access": "test-token", "access_expires": 86400})
	}))

	err := client.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "secret-id", gotBody["secret_id"])
	assert.Equal(t, "secret-key", gotBody["secret_key"])
	assert.Equal(t, "test-token", client.token)
	assert.False(t, client.tokenObtainedAt.IsZero())
}

func TestAuthenticate_MissingCredentials(t *testing.T) {
	client := NewClient(Credentials{SecretID: "only-id"})
	err := client.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestAuthenticate_Rejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"summary": "Invalid secrets"})
	}))

	err := client.Authenticate(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, authErr.Error(), "Invalid secrets")
}

func TestAuthenticate_MissingAccessToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"access_expires": 86400})
	}))

	err := client.Authenticate(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Contains(t, authErr.Summary, "missing access token")
}

func TestListInstitutions(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/institutions/", r.URL.Path)
		require.Equal(t, "DK", r.URL.Query().Get("country"))
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]Institution{
			{ID: "DANSKEBANK_DK", Name: "Danske Bank", BIC: "DABADKKK", Countries: []string{"DK"}},
			{ID: "NORDEA_DK", Name: "Nordea", Countries: []string{"DK"}},
		})
	}))

	institutions, err := client.ListInstitutions(context.Background(), "DK")
	require.NoError(t, err)
	require.Len(t, institutions, 2)
	assert.Equal(t, "DANSKEBANK_DK", institutions[0].ID)
	assert.Equal(t, "Danske Bank", institutions[0].Name)
}

func TestListInstitutions_EmptyCatalog(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Institution{})
	}))

	institutions, err := client.ListInstitutions(context.Background(), "XX")
	require.NoError(t, err)
	assert.Empty(t, institutions)
}

func TestCreateRequisition(t *testing.T) {
	var gotBody map[string]string
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/requisitions/", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(Requisition{
			ID:            "req-123",
			Status:        "CR",
			InstitutionID: gotBody["institution_id"],
			Link:          "https://ob.gocardless.com/psd2/start/req-123",
			Reference:     gotBody["reference"],
		})
	}))

	req, err := client.CreateRequisition(context.Background(), "DANSKEBANK_DK", "https://app.example.com/callback", "my-ref")
	require.NoError(t, err)
	assert.Equal(t, "req-123", req.ID)
	assert.Equal(t, "my-ref", req.Reference)
	assert.Equal(t, "DANSKEBANK_DK", gotBody["institution_id"])
	assert.Equal(t, "https://app.example.com/callback", gotBody["redirect"])
}

func TestCreateRequisition_GeneratesReference(t *testing.T) {
	var gotBody map[string]string
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(Requisition{
			ID:     "req-123",
			Status: "CR",
			Link:   "https://ob.gocardless.com/psd2/start/req-123",
		})
	}))

	_, err := client.CreateRequisition(context.Background(), "DANSKEBANK_DK", "https://app.example.com/callback", "")
	require.NoError(t, err)
	assert.NotEmpty(t, gotBody["reference"])
}

func TestCreateRequisition_IncompleteResponse(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Requisition{ID: "req-123", Status: "CR"})
	}))

	_, err := client.CreateRequisition(context.Background(), "DANSKEBANK_DK", "https://app.example.com/callback", "ref")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Summary, "missing")
}

func TestListLinkedAccounts(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/requisitions/req-123/", r.URL.Path)
		json.NewEncoder(w).Encode(Requisition{
			ID:       "req-123",
			Status:   "LN",
			Accounts: []string{"tok-1", "tok-2"},
		})
	}))

	tokens, err := client.ListLinkedAccounts(context.Background(), "req-123")
	require.NoError(t, err)
	assert.Equal(t, []string{"tok-1", "tok-2"}, tokens)
}

func TestGetAccountDetails(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/tok-1/details/", r.URL.Path)
		json.NewEncoder(w).Encode(AccountDetails{
			Account: AccountDetail{
				ResourceID: "res-1",
				IBAN:       "DK5000400440116243",
				Currency:   "DKK",
				Name:       "Checking",
			},
		})
	}))

	details, err := client.GetAccountDetails(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "res-1", details.Account.ResourceID)
	assert.Equal(t, "DKK", details.Account.Currency)
}

func TestGetAccountBalances(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/tok-1/balances/", r.URL.Path)
		json.NewEncoder(w).Encode(BalancesResponse{
			Balances: []Balance{
				{BalanceAmount: Amount{Amount: "1500.50", Currency: "DKK"}, BalanceType: "expected", ReferenceDate: "2024-05-01"},
			},
		})
	}))

	balances, err := client.GetAccountBalances(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, balances.Balances, 1)
	v, err := balances.Balances[0].BalanceAmount.Value()
	require.NoError(t, err)
	assert.Equal(t, 1500.50, v)
}

func TestGetAccountTransactions(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accounts/tok-1/transactions/", r.URL.Path)
		json.NewEncoder(w).Encode(TransactionsResponse{
			Transactions: TransactionBuckets{
				Booked: []TransactionEntry{
					{
						TransactionID:                     "T1",
						TransactionAmount:                 Amount{Amount: "-50.00", Currency: "DKK"},
						BookingDate:                       "2024-05-01",
						RemittanceInformationUnstructured: "Coffee",
					},
				},
				Pending: []TransactionEntry{
					{TransactionID: "T2", TransactionAmount: Amount{Amount: "-12.00", Currency: "DKK"}, ValueDate: "2024-05-02"},
				},
			},
		})
	}))

	payload, err := client.GetAccountTransactions(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, payload.Transactions.Booked, 1)
	require.Len(t, payload.Transactions.Pending, 1)
	assert.Equal(t, "T1", payload.Transactions.Booked[0].TransactionID)
	assert.Equal(t, "Coffee", payload.Transactions.Booked[0].RemittanceText())
}

func TestDo_UnauthorizedBecomesAuthError(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"summary": "Token is invalid or expired"})
	}))

	_, err := client.GetAccountDetails(context.Background(), "tok-1")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
}

func TestDo_ServerErrorBecomesAPIError(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Rate limit exceeded"})
	}))

	_, err := client.GetAccountBalances(context.Background(), "tok-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Summary, "Rate limit exceeded")
}

func TestDo_MalformedPayloadBecomesAPIError(t *testing.T) {
	client, _ := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))

	_, err := client.GetAccountTransactions(context.Background(), "tok-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Summary, "decode")
}

func TestDo_NetworkFailureBecomesAPIError(t *testing.T) {
	client, server := newTestClient(t, tokenThen(func(w http.ResponseWriter, r *http.Request) {}))

	// Authenticate first so the failing call is the API call itself
	require.NoError(t, client.Authenticate(context.Background()))
	server.Close()

	_, err := client.ListInstitutions(context.Background(), "DK")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
}

func TestEnsureToken_AuthenticatesOnce(t *testing.T) {
	tokenCalls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token/new/" {
			tokenCalls++
			json.NewEncoder(w).Encode(map[string]any{"access": "test-token"})
			return
		}
		json.NewEncoder(w).Encode([]Institution{})
	}))

	_, err := client.ListInstitutions(context.Background(), "DK")
	require.NoError(t, err)
	_, err = client.ListInstitutions(context.Background(), "DK")
	require.NoError(t, err)

	assert.Equal(t, 1, tokenCalls)
}
