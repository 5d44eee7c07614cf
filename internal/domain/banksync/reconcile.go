// Package banksync provides the domain services that turn a bank-connection
// consent into locally reconciled accounts and ledger entries.
package banksync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tovborg/TovborgFinance/internal/domain/account"
	"github.com/Tovborg/TovborgFinance/internal/domain/requisition"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/gocardless"
)

var (
	syncTracer = otel.Tracer("tovborgfinance/banksync")
	syncMeter  = otel.Meter("tovborgfinance/banksync")

	accountsReconciled, _ = syncMeter.Int64Counter("banksync.accounts.reconciled",
		metric.WithDescription("Accounts created or updated by reconciliation"))
	syncDuration, _ = syncMeter.Float64Histogram("banksync.duration",
		metric.WithDescription("Sync operation duration in seconds"), metric.WithUnit("s"))
)

// MergeOutcome tags the fate of one remote account inside a reconciliation
type MergeOutcome string

const (
	MergeCreated MergeOutcome = "created"
	MergeUpdated MergeOutcome = "updated"
)

// AccountSummary describes one processed account in a reconcile result
type AccountSummary struct {
	AccountID  int64        `json:"accountId"`
	ResourceID string       `json:"resourceId"`
	Name       string       `json:"name"`
	Currency   string       `json:"currency"`
	Balance    *float64     `json:"balance,omitempty"`
	Outcome    MergeOutcome `json:"outcome"`
}

// ReconcileResult contains the results of a reconciliation run. CreatedNew
// is true iff at least one account was newly inserted; callers use it to
// decide whether to prompt further onboarding.
type ReconcileResult struct {
	Reference  string           `json:"reference"`
	Accounts   []AccountSummary `json:"accounts"`
	CreatedNew bool             `json:"createdNew"`
	Errors     []string         `json:"errors"`
}

// ReconcileService turns a requisition's external account tokens into
// durable local accounts.
type ReconcileService struct {
	client          gocardless.ClientInterface
	requisitionRepo requisition.Repository
	accountRepo     account.Repository
}

// NewReconcileService creates a new reconciliation service
func NewReconcileService(
	client gocardless.ClientInterface,
	requisitionRepo requisition.Repository,
	accountRepo account.Repository,
) *ReconcileService {
	return &ReconcileService{
		client:          client,
		requisitionRepo: requisitionRepo,
		accountRepo:     accountRepo,
	}
}

// mergeItem pairs the staged upsert parameters with their outcome tag so
// nothing is written until the whole plan is known.
type mergeItem struct {
	params  account.UpsertParams
	outcome MergeOutcome
}

// ReconcileRequisition merges the accounts linked to a requisition into
// local storage. Per-token failures are absorbed into the result; an
// ownership conflict aborts the entire run before anything is committed.
func (s *ReconcileService) ReconcileRequisition(ctx context.Context, reference string, userID int64) (*ReconcileResult, error) {
	ctx, span := syncTracer.Start(ctx, "banksync.reconcile",
		trace.WithAttributes(attribute.String("requisition.reference", reference)))
	defer span.End()
	start := time.Now()

	req, err := s.requisitionRepo.GetByReference(ctx, reference)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if req.UserID != userID {
		span.SetStatus(codes.Error, "ownership check failed")
		return nil, ErrNotOwner
	}

	tokens, err := s.client.ListLinkedAccounts(ctx, req.RequisitionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list linked accounts: %w", err)
	}
	if len(tokens) == 0 {
		return nil, ErrNoAccountsLinked
	}

	result := &ReconcileResult{Reference: reference, Errors: []string{}}

	log.Printf("User %d: Reconciling %d linked accounts for requisition %s", userID, len(tokens), reference)

	plan := make([]mergeItem, 0, len(tokens))
	for _, token := range tokens {
		item, err := s.mergeAccount(ctx, req, token)
		if err != nil {
			var conflict *OwnershipConflictError
			if errors.As(err, &conflict) {
				// Security boundary: stop immediately, commit nothing.
				span.SetStatus(codes.Error, conflict.Error())
				return nil, err
			}
			errMsg := fmt.Sprintf("failed to merge account token %s: %v", token, err)
			result.Errors = append(result.Errors, errMsg)
			log.Printf("User %d: %s", userID, errMsg)
			continue
		}
		plan = append(plan, item)
		if item.outcome == MergeCreated {
			result.CreatedNew = true
		}
	}

	// One storage transaction for the whole plan; the unique constraint on
	// the resource identifier is the final arbiter for concurrent runs.
	batch := make([]account.UpsertParams, len(plan))
	for i, item := range plan {
		batch[i] = item.params
	}
	saved, err := s.accountRepo.SaveReconciled(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to commit reconciled accounts: %w", err)
	}

	for i, acc := range saved {
		result.Accounts = append(result.Accounts, AccountSummary{
			AccountID:  acc.ID,
			ResourceID: acc.ResourceID,
			Name:       acc.Name,
			Currency:   acc.Currency,
			Balance:    acc.Balance,
			Outcome:    plan[i].outcome,
		})
	}

	accountsReconciled.Add(ctx, int64(len(saved)))
	syncDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", "reconcile")))

	log.Printf("User %d: Reconcile complete for %s - Processed: %d, CreatedNew: %v, Errors: %d",
		userID, reference, len(saved), result.CreatedNew, len(result.Errors))

	return result, nil
}

// mergeAccount fetches one remote account and decides its fate: create,
// update, or ownership conflict. Fetch failures and malformed payloads are
// per-token errors the caller absorbs.
func (s *ReconcileService) mergeAccount(ctx context.Context, req *requisition.Requisition, token string) (mergeItem, error) {
	details, err := s.client.GetAccountDetails(ctx, token)
	if err != nil {
		return mergeItem{}, fmt.Errorf("details fetch failed: %w", err)
	}
	balances, err := s.client.GetAccountBalances(ctx, token)
	if err != nil {
		return mergeItem{}, fmt.Errorf("balance fetch failed: %w", err)
	}

	resourceID := details.Account.ResourceID
	if resourceID == "" {
		return mergeItem{}, errors.New("details payload missing resource identifier")
	}
	if len(balances.Balances) == 0 {
		return mergeItem{}, errors.New("balances payload missing balance list")
	}

	var balance *float64
	var balanceAt *time.Time
	if preferred := balances.Preferred(); preferred != nil {
		v, err := preferred.BalanceAmount.Value()
		if err != nil {
			return mergeItem{}, err
		}
		balance = &v
		if ref, err := preferred.GetReferenceDate(); err == nil && ref != nil {
			balanceAt = ref
		} else {
			now := time.Now().UTC()
			balanceAt = &now
		}
	}

	currency := details.Account.Currency
	if currency == "" {
		currency = "DKK"
	}
	var iban *string
	if details.Account.IBAN != "" {
		iban = &details.Account.IBAN
	}

	params := account.UpsertParams{
		RequisitionID:    req.ID,
		ResourceID:       resourceID,
		AccountToken:     token,
		Name:             details.Account.DisplayName(),
		IBAN:             iban,
		Currency:         currency,
		Balance:          balance,
		BalanceUpdatedAt: balanceAt,
	}
	if err := params.Validate(); err != nil {
		return mergeItem{}, err
	}

	existing, err := s.accountRepo.FindByResourceID(ctx, resourceID)
	if err != nil {
		return mergeItem{}, fmt.Errorf("failed to look up existing account: %w", err)
	}
	if existing != nil {
		if existing.UserID != req.UserID {
			return mergeItem{}, &OwnershipConflictError{ResourceID: resourceID, Reference: req.Reference}
		}
		// Same owner, possibly via a different requisition: update fields
		// and re-point ownership to the current requisition.
		return mergeItem{params: params, outcome: MergeUpdated}, nil
	}

	return mergeItem{params: params, outcome: MergeCreated}, nil
}
