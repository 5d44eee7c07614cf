package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Tovborg/TovborgFinance/internal/infrastructure/gocardless"
)

// BankHandler exposes the provider's institution catalog
type BankHandler struct {
	client         gocardless.ClientInterface
	defaultCountry string
}

func NewBankHandler(client gocardless.ClientInterface, defaultCountry string) *BankHandler {
	return &BankHandler{client: client, defaultCountry: defaultCountry}
}

// HandleListBanks returns the institutions available in a country.
// The country defaults to the configured one and can be overridden
// with ?country=SE.
func (h *BankHandler) HandleListBanks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	country := r.URL.Query().Get("country")
	if country == "" {
		country = h.defaultCountry
	}

	institutions, err := h.client.ListInstitutions(r.Context(), country)
	if err != nil {
		writeProviderError(w, "list banks", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(institutions)
}

// writeProviderError maps upstream provider failures onto HTTP statuses.
// Provider trouble is never the client's fault, so everything here is a
// 502 except missing server credentials.
func writeProviderError(w http.ResponseWriter, op string, err error) {
	var authErr *gocardless.AuthError
	var apiErr *gocardless.APIError

	switch {
	case errors.Is(err, gocardless.ErrMissingCredentials):
		log.Printf("Provider credentials missing during %s", op)
		http.Error(w, "Bank provider is not configured", http.StatusInternalServerError)
	case errors.As(err, &authErr):
		log.Printf("Provider auth failure during %s: %v", op, err)
		http.Error(w, "Bank provider rejected our credentials", http.StatusBadGateway)
	case errors.As(err, &apiErr):
		log.Printf("Provider failure during %s: %v", op, err)
		http.Error(w, "Bank provider request failed", http.StatusBadGateway)
	default:
		log.Printf("Error during %s: %v", op, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
