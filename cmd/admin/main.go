package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Tovborg/TovborgFinance/internal/domain/account"
	"github.com/Tovborg/TovborgFinance/internal/domain/banksync"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/crypto"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/gocardless"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/postgres"
	"github.com/Tovborg/TovborgFinance/internal/shared/config"
)

const usage = `TovborgFinance Admin CLI - Management commands for the API

Usage:
  admin <command> [options]

Commands:
  reconcile          Reconcile the linked accounts of a requisition
  sync-transactions  Ingest provider transactions for stored accounts

Examples:
  # Reconcile one requisition by its reference
  admin reconcile --reference=9bdc2aa2-...

  # Ingest transactions for specific accounts
  admin sync-transactions --account-id=1,2,3

  # Ingest transactions for every account of a user
  admin sync-transactions --user-id=1

  # Run with custom worker count for higher concurrency
  admin sync-transactions --user-id=1 --workers=8 --timeout=10m
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "reconcile":
		runReconcile(os.Args[2:])
	case "sync-transactions":
		runSyncTransactions(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Print(usage)
		os.Exit(1)
	}
}

// services bundles everything the commands need
type services struct {
	db              *postgres.DB
	requisitionRepo *postgres.RequisitionRepository
	accountRepo     *postgres.AccountRepository
	reconcile       *banksync.ReconcileService
	ingest          *banksync.IngestService
}

func initServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("Connected to database")

	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}

	requisitionRepo := postgres.NewRequisitionRepository(db)
	accountRepo := postgres.NewAccountRepository(db, encryptor)
	transactionRepo := postgres.NewTransactionRepository(db)

	gcClient := gocardless.NewClient(gocardless.Credentials{
		SecretID:   cfg.GoCardless.SecretID,
		SecretKey:  cfg.GoCardless.SecretKey,
		SecretName: cfg.GoCardless.SecretName,
	})

	return &services{
		db:              db,
		requisitionRepo: requisitionRepo,
		accountRepo:     accountRepo,
		reconcile:       banksync.NewReconcileService(gcClient, requisitionRepo, accountRepo),
		ingest:          banksync.NewIngestService(gcClient, accountRepo, transactionRepo),
	}, nil
}

func runReconcile(args []string) {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)

	reference := fs.String("reference", "", "Requisition reference to reconcile")
	timeoutStr := fs.String("timeout", "5m", "Timeout for the operation (e.g., 1m, 5m)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *reference == "" {
		fmt.Println("Error: must specify --reference")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	svc, err := initServices()
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer svc.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Resolve the owner so the run acts on the requisition's own user
	req, err := svc.requisitionRepo.GetByReference(ctx, *reference)
	if err != nil {
		log.Fatalf("Failed to resolve requisition: %v", err)
	}

	result, err := svc.reconcile.ReconcileRequisition(ctx, *reference, req.UserID)
	if err != nil {
		log.Fatalf("Reconciliation failed: %v", err)
	}

	fmt.Printf("\n=== Requisition %s ===\n", result.Reference)
	fmt.Printf("  Accounts reconciled: %d\n", len(result.Accounts))
	fmt.Printf("  Newly created:       %v\n", result.CreatedNew)
	for _, acc := range result.Accounts {
		fmt.Printf("    - [%s] %s (%s)\n", acc.Outcome, acc.Name, acc.ResourceID)
	}
	printErrors(result.Errors)
}

func runSyncTransactions(args []string) {
	fs := flag.NewFlagSet("sync-transactions", flag.ExitOnError)

	accountIDStr := fs.String("account-id", "", "Account ID(s) to sync (comma-separated for multiple)")
	userIDFlag := fs.Int64("user-id", 0, "Sync every account of this user")
	workers := fs.Int("workers", 4, "Number of concurrent workers")
	timeoutStr := fs.String("timeout", "30m", "Timeout for the operation (e.g., 5m, 1h)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if *accountIDStr == "" && *userIDFlag == 0 {
		fmt.Println("Error: must specify --account-id or --user-id")
		fs.Usage()
		os.Exit(1)
	}

	timeout, err := time.ParseDuration(*timeoutStr)
	if err != nil {
		log.Fatalf("Invalid timeout format: %v", err)
	}

	svc, err := initServices()
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer svc.db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var accounts []*account.Account

	if *userIDFlag != 0 {
		accounts, err = svc.accountRepo.ListByUserID(ctx, *userIDFlag)
		if err != nil {
			log.Fatalf("Failed to list accounts: %v", err)
		}
	} else {
		for _, p := range strings.Split(*accountIDStr, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			id, err := strconv.ParseInt(p, 10, 64)
			if err != nil {
				log.Fatalf("Invalid account ID '%s': %v", p, err)
			}
			acc, err := svc.accountRepo.GetByID(ctx, id)
			if err != nil {
				log.Fatalf("Failed to resolve account %d: %v", id, err)
			}
			accounts = append(accounts, acc)
		}
	}

	if len(accounts) == 0 {
		log.Println("No accounts to process")
		return
	}

	log.Printf("Starting transaction sync for %d account(s) with %d workers", len(accounts), *workers)
	startTime := time.Now()

	// Bounded worker pool over the account list
	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, *workers)
	results := make(map[int64]*banksync.IngestResult)
	failures := make(map[int64]error)

	for _, acc := range accounts {
		wg.Add(1)
		sem <- struct{}{}
		go func(acc *account.Account) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := svc.ingest.IngestAccountTransactions(ctx, acc.ID, acc.UserID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[acc.ID] = err
				return
			}
			results[acc.ID] = result
		}(acc)
	}
	wg.Wait()

	for id, result := range results {
		fmt.Printf("\n=== Account %d ===\n", id)
		fmt.Printf("  Created: %d\n", result.Created)
		fmt.Printf("  Skipped: %d\n", result.Skipped)
		printErrors(result.Errors)
	}
	for id, err := range failures {
		fmt.Printf("\n=== Account %d ===\n", id)
		fmt.Printf("  Failed: %v\n", err)
	}

	log.Printf("Transaction sync completed in %v", time.Since(startTime))
}

func printErrors(errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Printf("  Errors: %d\n", len(errs))
	for i, e := range errs {
		if i >= 5 {
			fmt.Printf("    ... and %d more errors\n", len(errs)-5)
			break
		}
		fmt.Printf("    - %s\n", e)
	}
}
