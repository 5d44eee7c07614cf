package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Tovborg/TovborgFinance/internal/domain/account"
	"github.com/Tovborg/TovborgFinance/internal/domain/banksync"
	"github.com/Tovborg/TovborgFinance/internal/domain/requisition"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/gocardless"
	"github.com/Tovborg/TovborgFinance/internal/shared/middleware"
)

// RequisitionHandler manages bank-connection consent sessions
type RequisitionHandler struct {
	client           gocardless.ClientInterface
	requisitionRepo  requisition.Repository
	reconcileService *banksync.ReconcileService
	redirectURL      string
}

func NewRequisitionHandler(
	client gocardless.ClientInterface,
	requisitionRepo requisition.Repository,
	reconcileService *banksync.ReconcileService,
	redirectURL string,
) *RequisitionHandler {
	return &RequisitionHandler{
		client:           client,
		requisitionRepo:  requisitionRepo,
		reconcileService: reconcileService,
		redirectURL:      redirectURL,
	}
}

type CreateRequisitionRequest struct {
	InstitutionID string `json:"institutionId"`
}

// HandleRequisitions handles POST (create) and GET (list) on the
// requisitions collection
func (h *RequisitionHandler) HandleRequisitions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodPost:
		h.handleCreate(w, r, userID)
	case http.MethodGet:
		h.handleList(w, r, userID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *RequisitionHandler) handleCreate(w http.ResponseWriter, r *http.Request, userID int64) {
	var req CreateRequisitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.InstitutionID == "" {
		http.Error(w, "Institution ID is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// The provider generates the consent link; the reference comes back
	// with it and becomes our correlation key.
	remote, err := h.client.CreateRequisition(ctx, req.InstitutionID, h.redirectURL, "")
	if err != nil {
		writeProviderError(w, "create requisition", err)
		return
	}

	created, err := h.requisitionRepo.Create(ctx, requisition.CreateParams{
		RequisitionID:    remote.ID,
		InstitutionID:    remote.InstitutionID,
		Reference:        remote.Reference,
		Link:             remote.Link,
		Status:           remote.Status,
		AccountSelection: remote.AccountSelection,
		UserID:           userID,
	})
	if err != nil {
		log.Printf("Error persisting requisition %s: %v", remote.Reference, err)
		http.Error(w, "Failed to save requisition", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)
}

func (h *RequisitionHandler) handleList(w http.ResponseWriter, r *http.Request, userID int64) {
	requisitions, err := h.requisitionRepo.ListByUserID(r.Context(), userID)
	if err != nil {
		log.Printf("Error listing requisitions for user %d: %v", userID, err)
		http.Error(w, "Failed to list requisitions", http.StatusInternalServerError)
		return
	}

	if requisitions == nil {
		requisitions = []*requisition.Requisition{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requisitions)
}

// HandleRequisitionByReference handles GET and DELETE on one requisition
func (h *RequisitionHandler) HandleRequisitionByReference(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	reference := r.PathValue("reference")
	if reference == "" {
		http.Error(w, "Requisition reference is required", http.StatusBadRequest)
		return
	}

	req, err := h.requisitionRepo.GetByReference(r.Context(), reference)
	if err != nil {
		if errors.Is(err, requisition.ErrRequisitionNotFound) {
			http.Error(w, "Requisition not found", http.StatusNotFound)
			return
		}
		log.Printf("Error resolving requisition %s: %v", reference, err)
		http.Error(w, "Failed to get requisition", http.StatusInternalServerError)
		return
	}
	if req.UserID != userID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(req)
	case http.MethodDelete:
		if err := h.requisitionRepo.Delete(r.Context(), reference); err != nil {
			log.Printf("Error deleting requisition %s: %v", reference, err)
			http.Error(w, "Failed to delete requisition", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleReconcile triggers account reconciliation for one requisition.
// POST /api/openbanking/requisitions/{reference}/accounts
func (h *RequisitionHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	reference := r.PathValue("reference")
	if reference == "" {
		http.Error(w, "Requisition reference is required", http.StatusBadRequest)
		return
	}

	result, err := h.reconcileService.ReconcileRequisition(r.Context(), reference, userID)
	if err != nil {
		h.writeReconcileError(w, reference, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *RequisitionHandler) writeReconcileError(w http.ResponseWriter, reference string, err error) {
	var ownershipErr *banksync.OwnershipConflictError

	switch {
	case errors.Is(err, requisition.ErrRequisitionNotFound):
		http.Error(w, "Requisition not found", http.StatusNotFound)
	case errors.Is(err, banksync.ErrNotOwner):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, banksync.ErrNoAccountsLinked):
		http.Error(w, "No accounts linked yet, complete the bank consent first", http.StatusUnprocessableEntity)
	case errors.As(err, &ownershipErr):
		log.Printf("Ownership conflict reconciling %s: %v", reference, err)
		http.Error(w, "Account is already linked to another user", http.StatusConflict)
	case errors.Is(err, account.ErrResourceConflict):
		log.Printf("Resource conflict reconciling %s: %v", reference, err)
		http.Error(w, "Account is already linked to another user", http.StatusConflict)
	default:
		writeProviderError(w, "reconcile requisition "+reference, err)
	}
}
