package banksync

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Tovborg/TovborgFinance/internal/domain/account"
	"github.com/Tovborg/TovborgFinance/internal/domain/transaction"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/gocardless"
)

var transactionsIngested, _ = syncMeter.Int64Counter("banksync.transactions.ingested",
	metric.WithDescription("Ledger entries appended by ingestion"))

// IngestResult contains the results of a transaction ingestion run
type IngestResult struct {
	AccountID int64    `json:"accountId"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// IngestService pulls an account's ledger entries from the provider and
// stores each external transaction exactly once.
type IngestService struct {
	client          gocardless.ClientInterface
	accountRepo     account.Repository
	transactionRepo transaction.Repository
}

// NewIngestService creates a new transaction ingestion service
func NewIngestService(
	client gocardless.ClientInterface,
	accountRepo account.Repository,
	transactionRepo transaction.Repository,
) *IngestService {
	return &IngestService{
		client:          client,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
	}
}

// IngestAccountTransactions resolves the account, enforces ownership,
// fetches the remote payload and merges it into storage.
func (s *IngestService) IngestAccountTransactions(ctx context.Context, accountID, userID int64) (*IngestResult, error) {
	ctx, span := syncTracer.Start(ctx, "banksync.ingest",
		trace.WithAttributes(attribute.Int64("account.id", accountID)))
	defer span.End()

	acc, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if acc.UserID != userID {
		span.SetStatus(codes.Error, "ownership check failed")
		return nil, ErrNotOwner
	}

	payload, err := s.client.GetAccountTransactions(ctx, acc.AccountToken)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	return s.Ingest(ctx, acc, payload)
}

// Ingest normalizes and appends the entries of one transaction payload.
// Booked entries are processed before pending ones, in document order.
// Already-stored identifiers are skipped, never overwritten: the first
// ingestion is the source of truth for an entry.
func (s *IngestService) Ingest(ctx context.Context, acc *account.Account, payload *gocardless.TransactionsResponse) (*IngestResult, error) {
	start := time.Now()
	result := &IngestResult{AccountID: acc.ID, Errors: []string{}}

	buckets := []struct {
		status  string
		entries []gocardless.TransactionEntry
	}{
		{transaction.StatusBooked, payload.Transactions.Booked},
		{transaction.StatusPending, payload.Transactions.Pending},
	}

	var batch []transaction.CreateParams
	total, failed := 0, 0
	for _, bucket := range buckets {
		for i := range bucket.entries {
			entry := &bucket.entries[i]
			total++

			if entry.TransactionID == "" {
				// Without an identifier the entry can be neither
				// deduplicated nor referenced later.
				result.Skipped++
				continue
			}

			params, err := normalizeEntry(entry, bucket.status)
			if err != nil {
				failed++
				result.Skipped++
				errMsg := fmt.Sprintf("skipping entry %s: %v", entry.TransactionID, err)
				result.Errors = append(result.Errors, errMsg)
				log.Printf("Account %d: %s", acc.ID, errMsg)
				continue
			}
			batch = append(batch, params)
		}
	}

	if total > 0 && failed == total {
		return nil, ErrIngestionFailed
	}

	created, skipped, err := s.transactionRepo.InsertBatch(ctx, acc.ID, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to store transactions: %w", err)
	}
	result.Created = created
	result.Skipped += skipped

	transactionsIngested.Add(ctx, int64(created))
	syncDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", "ingest")))

	log.Printf("Account %d: Ingestion complete - Created: %d, Skipped: %d, Errors: %d",
		acc.ID, result.Created, result.Skipped, len(result.Errors))

	return result, nil
}

// normalizeEntry maps one provider entry onto storage parameters, applying
// the documented fallbacks: value date stands in for a missing booking
// date, currency defaults to DKK, free-text fields default to "Unknown".
func normalizeEntry(entry *gocardless.TransactionEntry, status string) (transaction.CreateParams, error) {
	amount, err := entry.TransactionAmount.Value()
	if err != nil {
		return transaction.CreateParams{}, err
	}

	currency := entry.TransactionAmount.Currency
	if currency == "" {
		currency = "DKK"
	}

	bookingDate, err := entry.GetBookingDate()
	if err != nil {
		return transaction.CreateParams{}, err
	}
	valueDate, err := entry.GetValueDate()
	if err != nil {
		return transaction.CreateParams{}, err
	}
	if bookingDate == nil {
		if valueDate == nil {
			return transaction.CreateParams{}, fmt.Errorf("entry has neither booking date nor value date")
		}
		bookingDate = valueDate
	}

	return transaction.CreateParams{
		TransactionID:         entry.TransactionID,
		Amount:                amount,
		Currency:              currency,
		BookingDate:           *bookingDate,
		ValueDate:             valueDate,
		Description:           fallback(entry.Description),
		RemittanceInformation: entry.RemittanceText(),
		CreditorName:          fallback(entry.CreditorName),
		DebtorName:            fallback(entry.DebtorName),
		TransactionType:       fallback(entry.ProprietaryBankTransactionCode),
		Status:                status,
	}, nil
}

func fallback(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
