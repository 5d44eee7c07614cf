package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/Tovborg/TovborgFinance/internal/domain/account"
	"github.com/Tovborg/TovborgFinance/internal/domain/banksync"
	"github.com/Tovborg/TovborgFinance/internal/domain/transaction"
	"github.com/Tovborg/TovborgFinance/internal/shared/middleware"
)

type AccountHandler struct {
	accountService  *account.Service
	transactionRepo transaction.Repository
	ingestService   *banksync.IngestService
}

func NewAccountHandler(
	accountService *account.Service,
	transactionRepo transaction.Repository,
	ingestService *banksync.IngestService,
) *AccountHandler {
	return &AccountHandler{
		accountService:  accountService,
		transactionRepo: transactionRepo,
		ingestService:   ingestService,
	}
}

// HandleListAccounts returns all accounts for the authenticated user
func (h *AccountHandler) HandleListAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	accounts, err := h.accountService.ListAccountsByUserID(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing accounts for user %d: %v", userID, err)
		http.Error(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}

	if accounts == nil {
		accounts = []*account.Account{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(accounts)
}

// HandleAccountByID handles GET and DELETE on a specific account
func (h *AccountHandler) HandleAccountByID(w http.ResponseWriter, r *http.Request) {
	userID, accountID, ok := h.resolveAccountRequest(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		acc, err := h.accountService.GetAccount(r.Context(), accountID, userID)
		if err != nil {
			writeAccountError(w, accountID, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(acc)
	case http.MethodDelete:
		if err := h.accountService.DeleteAccount(r.Context(), accountID, userID); err != nil {
			writeAccountError(w, accountID, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleAccountTransactions lists the stored ledger entries of one account.
// GET /api/accounts/{id}/transactions?limit=50&offset=0
func (h *AccountHandler) HandleAccountTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, accountID, ok := h.resolveAccountRequest(w, r)
	if !ok {
		return
	}

	// Ownership check before touching the ledger
	if _, err := h.accountService.GetAccount(r.Context(), accountID, userID); err != nil {
		writeAccountError(w, accountID, err)
		return
	}

	limit, offset := parsePagination(r)
	transactions, err := h.transactionRepo.ListByAccountID(r.Context(), accountID, limit, offset)
	if err != nil {
		log.Printf("Error listing transactions for account %d: %v", accountID, err)
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	if transactions == nil {
		transactions = []*transaction.Transaction{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

// HandleSyncTransactions ingests the provider's transaction feed for one
// account. POST /api/accounts/{id}/transactions/sync
func (h *AccountHandler) HandleSyncTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, accountID, ok := h.resolveAccountRequest(w, r)
	if !ok {
		return
	}

	result, err := h.ingestService.IngestAccountTransactions(r.Context(), accountID, userID)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrAccountNotFound):
			http.Error(w, "Account not found", http.StatusNotFound)
		case errors.Is(err, banksync.ErrNotOwner):
			http.Error(w, "Forbidden", http.StatusForbidden)
		case errors.Is(err, banksync.ErrIngestionFailed):
			log.Printf("Ingestion failed for account %d: %v", accountID, err)
			http.Error(w, "Transaction feed could not be ingested", http.StatusUnprocessableEntity)
		default:
			writeProviderError(w, "sync transactions", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *AccountHandler) resolveAccountRequest(w http.ResponseWriter, r *http.Request) (userID, accountID int64, ok bool) {
	userID, authed := r.Context().Value(middleware.UserIDKey).(int64)
	if !authed {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return 0, 0, false
	}

	accountID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid account ID", http.StatusBadRequest)
		return 0, 0, false
	}

	return userID, accountID, true
}

func writeAccountError(w http.ResponseWriter, accountID int64, err error) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		http.Error(w, "Account not found", http.StatusNotFound)
	case errors.Is(err, account.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		log.Printf("Error on account %d: %v", accountID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
