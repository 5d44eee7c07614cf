package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tovborg/TovborgFinance/internal/domain/account"
	"github.com/Tovborg/TovborgFinance/internal/domain/banksync"
	"github.com/Tovborg/TovborgFinance/internal/domain/requisition"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/gocardless"
	"github.com/Tovborg/TovborgFinance/internal/shared/middleware"
)

func newRequisitionHandler(client *MockClient, reqRepo *MockRequisitionRepo, accRepo *MockAccountRepo) *RequisitionHandler {
	return NewRequisitionHandler(
		client,
		reqRepo,
		banksync.NewReconcileService(client, reqRepo, accRepo),
		"https://app.example.com/callback",
	)
}

func TestHandleRequisitions_Create(t *testing.T) {
	client := &MockClient{
		CreateRequisitionFunc: func(ctx context.Context, institutionID, redirectURL, reference string) (*gocardless.Requisition, error) {
			return &gocardless.Requisition{
				ID:            "req-123",
				Status:        "CR",
				InstitutionID: institutionID,
				Link:          "https://ob.gocardless.com/psd2/start/req-123",
				Reference:     "generated-ref",
			}, nil
		},
	}

	var gotParams requisition.CreateParams
	reqRepo := &MockRequisitionRepo{
		CreateFunc: func(ctx context.Context, params requisition.CreateParams) (*requisition.Requisition, error) {
			gotParams = params
			return &requisition.Requisition{
				ID:            1,
				RequisitionID: params.RequisitionID,
				Reference:     params.Reference,
				Link:          params.Link,
				Status:        params.Status,
				UserID:        params.UserID,
			}, nil
		},
	}
	handler := newRequisitionHandler(client, reqRepo, &MockAccountRepo{})

	body := strings.NewReader(`{"institutionId":"DANSKEBANK_DK"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/openbanking/requisitions", body)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, int64(1)))

	w := httptest.NewRecorder()
	handler.HandleRequisitions(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	if gotParams.RequisitionID != "req-123" || gotParams.UserID != 1 {
		t.Errorf("persisted params = %+v", gotParams)
	}
	var created requisition.Requisition
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.Link == "" {
		t.Error("response is missing the consent link")
	}
}

func TestHandleRequisitions_CreateMissingInstitution(t *testing.T) {
	handler := newRequisitionHandler(&MockClient{}, &MockRequisitionRepo{}, &MockAccountRepo{})

	body := strings.NewReader(`{}`)
	req := httptest.NewRequest(http.MethodPost, "/api/openbanking/requisitions", body)
	req = req.WithContext(context.WithValue(req.Context(), middleware.UserIDKey, int64(1)))

	w := httptest.NewRecorder()
	handler.HandleRequisitions(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleRequisitions_ListEmptyIsJSONArray(t *testing.T) {
	handler := newRequisitionHandler(&MockClient{}, &MockRequisitionRepo{}, &MockAccountRepo{})

	w := httptest.NewRecorder()
	handler.HandleRequisitions(w, authedRequest(http.MethodGet, "/api/openbanking/requisitions", 1))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "[]\n" {
		t.Errorf("body = %q, want empty JSON array", got)
	}
}

func TestHandleRequisitionByReference(t *testing.T) {
	owned := &requisition.Requisition{ID: 1, Reference: "ref-1", UserID: 1}

	tests := []struct {
		name       string
		method     string
		userID     int64
		repo       *MockRequisitionRepo
		wantStatus int
	}{
		{
			name:   "get owned",
			method: http.MethodGet,
			userID: 1,
			repo: &MockRequisitionRepo{
				GetByReferenceFunc: func(ctx context.Context, reference string) (*requisition.Requisition, error) {
					return owned, nil
				},
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "get foreign",
			method: http.MethodGet,
			userID: 2,
			repo: &MockRequisitionRepo{
				GetByReferenceFunc: func(ctx context.Context, reference string) (*requisition.Requisition, error) {
					return owned, nil
				},
			},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "get missing",
			method:     http.MethodGet,
			userID:     1,
			repo:       &MockRequisitionRepo{},
			wantStatus: http.StatusNotFound,
		},
		{
			name:   "delete owned",
			method: http.MethodDelete,
			userID: 1,
			repo: &MockRequisitionRepo{
				GetByReferenceFunc: func(ctx context.Context, reference string) (*requisition.Requisition, error) {
					return owned, nil
				},
			},
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newRequisitionHandler(&MockClient{}, tt.repo, &MockAccountRepo{})

			req := authedRequest(tt.method, "/api/openbanking/requisitions/ref-1", tt.userID)
			req.SetPathValue("reference", "ref-1")

			w := httptest.NewRecorder()
			handler.HandleRequisitionByReference(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleReconcile(t *testing.T) {
	client := &MockClient{
		ListLinkedAccountsFunc: func(ctx context.Context, requisitionID string) ([]string, error) {
			return []string{"tok-1"}, nil
		},
		GetAccountDetailsFunc: func(ctx context.Context, token string) (*gocardless.AccountDetails, error) {
			return &gocardless.AccountDetails{
				Account: gocardless.AccountDetail{ResourceID: "res-1", Currency: "DKK", Name: "Checking"},
			}, nil
		},
		GetAccountBalancesFunc: func(ctx context.Context, token string) (*gocardless.BalancesResponse, error) {
			return &gocardless.BalancesResponse{
				Balances: []gocardless.Balance{
					{BalanceAmount: gocardless.Amount{Amount: "100.00", Currency: "DKK"}, BalanceType: "expected"},
				},
			}, nil
		},
	}
	reqRepo := &MockRequisitionRepo{
		GetByReferenceFunc: func(ctx context.Context, reference string) (*requisition.Requisition, error) {
			return &requisition.Requisition{ID: 1, RequisitionID: "req-123", Reference: reference, UserID: 1}, nil
		},
	}
	accRepo := &MockAccountRepo{
		SaveReconciledFunc: func(ctx context.Context, batch []account.UpsertParams) ([]*account.Account, error) {
			saved := make([]*account.Account, len(batch))
			for i, p := range batch {
				saved[i] = &account.Account{ID: int64(i + 1), ResourceID: p.ResourceID, Name: p.Name, Currency: p.Currency, Balance: p.Balance}
			}
			return saved, nil
		},
	}
	handler := newRequisitionHandler(client, reqRepo, accRepo)

	req := authedRequest(http.MethodPost, "/api/openbanking/requisitions/ref-1/accounts", 1)
	req.SetPathValue("reference", "ref-1")

	w := httptest.NewRecorder()
	handler.HandleReconcile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var result banksync.ReconcileResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(result.Accounts) != 1 || !result.CreatedNew {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandleReconcile_ErrorMapping(t *testing.T) {
	linkedOK := func(ctx context.Context, requisitionID string) ([]string, error) {
		return []string{"tok-1"}, nil
	}
	ownedReq := func(ctx context.Context, reference string) (*requisition.Requisition, error) {
		return &requisition.Requisition{ID: 1, RequisitionID: "req-123", Reference: reference, UserID: 1}, nil
	}

	tests := []struct {
		name       string
		userID     int64
		client     *MockClient
		reqRepo    *MockRequisitionRepo
		accRepo    *MockAccountRepo
		wantStatus int
	}{
		{
			name:       "requisition not found",
			userID:     1,
			client:     &MockClient{},
			reqRepo:    &MockRequisitionRepo{},
			accRepo:    &MockAccountRepo{},
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "not owner",
			userID:     2,
			client:     &MockClient{},
			reqRepo:    &MockRequisitionRepo{GetByReferenceFunc: ownedReq},
			accRepo:    &MockAccountRepo{},
			wantStatus: http.StatusForbidden,
		},
		{
			name:   "no accounts linked",
			userID: 1,
			client: &MockClient{
				ListLinkedAccountsFunc: func(ctx context.Context, requisitionID string) ([]string, error) {
					return nil, nil
				},
			},
			reqRepo:    &MockRequisitionRepo{GetByReferenceFunc: ownedReq},
			accRepo:    &MockAccountRepo{},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name:   "ownership conflict",
			userID: 1,
			client: &MockClient{
				ListLinkedAccountsFunc: linkedOK,
				GetAccountDetailsFunc: func(ctx context.Context, token string) (*gocardless.AccountDetails, error) {
					return &gocardless.AccountDetails{
						Account: gocardless.AccountDetail{ResourceID: "res-1", Currency: "DKK"},
					}, nil
				},
				GetAccountBalancesFunc: func(ctx context.Context, token string) (*gocardless.BalancesResponse, error) {
					return &gocardless.BalancesResponse{
						Balances: []gocardless.Balance{
							{BalanceAmount: gocardless.Amount{Amount: "1.00"}, BalanceType: "expected"},
						},
					}, nil
				},
			},
			reqRepo: &MockRequisitionRepo{GetByReferenceFunc: ownedReq},
			accRepo: &MockAccountRepo{
				FindByResourceIDFunc: func(ctx context.Context, resourceID string) (*account.Account, error) {
					return &account.Account{ID: 7, ResourceID: resourceID, UserID: 99}, nil
				},
			},
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newRequisitionHandler(tt.client, tt.reqRepo, tt.accRepo)

			req := authedRequest(http.MethodPost, "/api/openbanking/requisitions/ref-1/accounts", tt.userID)
			req.SetPathValue("reference", "ref-1")

			w := httptest.NewRecorder()
			handler.HandleReconcile(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}
