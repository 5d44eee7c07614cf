package main

import (
	"log"

	"github.com/Tovborg/TovborgFinance/internal/domain/account"
	"github.com/Tovborg/TovborgFinance/internal/domain/banksync"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/crypto"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/gocardless"
	"github.com/Tovborg/TovborgFinance/internal/infrastructure/postgres"
	httphandlers "github.com/Tovborg/TovborgFinance/internal/interfaces/http"
	"github.com/Tovborg/TovborgFinance/internal/shared/auth"
	"github.com/Tovborg/TovborgFinance/internal/shared/config"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	DB *postgres.DB

	// Handlers
	AuthHandler        *httphandlers.AuthHandler
	UserHandler        *httphandlers.UserHandler
	BankHandler        *httphandlers.BankHandler
	RequisitionHandler *httphandlers.RequisitionHandler
	AccountHandler     *httphandlers.AccountHandler
	TransactionHandler *httphandlers.TransactionHandler

	// Auth
	JWT *auth.JWT
}

// NewDependencies initializes all application dependencies.
func NewDependencies(cfg *config.Config) (*Dependencies, error) {
	// Connect to database
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}
	log.Println("Connected to database")

	// Initialize encryptor for account tokens at rest
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	requisitionRepo := postgres.NewRequisitionRepository(db)
	accountRepo := postgres.NewAccountRepository(db, encryptor)
	transactionRepo := postgres.NewTransactionRepository(db)

	// Initialize bank data provider client
	gcClient := gocardless.NewClient(gocardless.Credentials{
		SecretID:   cfg.GoCardless.SecretID,
		SecretKey:  cfg.GoCardless.SecretKey,
		SecretName: cfg.GoCardless.SecretName,
	})

	// Initialize domain services
	accountService := account.NewService(accountRepo)
	reconcileService := banksync.NewReconcileService(gcClient, requisitionRepo, accountRepo)
	ingestService := banksync.NewIngestService(gcClient, accountRepo, transactionRepo)

	// Initialize auth components
	jwt := auth.NewJWT(cfg.JWT.Secret)
	googleOAuth := auth.NewGoogleOAuthProvider(
		cfg.OAuth.Google.ClientID,
		cfg.OAuth.Google.ClientSecret,
		cfg.OAuth.Google.CallbackURL,
	)

	// Initialize handlers
	authHandler := httphandlers.NewAuthHandler(userRepo, googleOAuth, jwt, cfg.OAuth.Google.CallbackURL)
	userHandler := httphandlers.NewUserHandler(userRepo)
	bankHandler := httphandlers.NewBankHandler(gcClient, cfg.GoCardless.Country)
	requisitionHandler := httphandlers.NewRequisitionHandler(gcClient, requisitionRepo, reconcileService, cfg.GoCardless.RedirectURL)
	accountHandler := httphandlers.NewAccountHandler(accountService, transactionRepo, ingestService)
	transactionHandler := httphandlers.NewTransactionHandler(transactionRepo)

	return &Dependencies{
		DB:                 db,
		AuthHandler:        authHandler,
		UserHandler:        userHandler,
		BankHandler:        bankHandler,
		RequisitionHandler: requisitionHandler,
		AccountHandler:     accountHandler,
		TransactionHandler: transactionHandler,
		JWT:                jwt,
	}, nil
}

// Close releases all resources held by dependencies.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
