package main

import (
	"log"
	"net/http"

	httphandlers "github.com/Tovborg/TovborgFinance/internal/interfaces/http"
	"github.com/Tovborg/TovborgFinance/internal/shared/config"
	"github.com/Tovborg/TovborgFinance/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", httphandlers.HandleHealth)

	// Public auth routes
	mux.HandleFunc("/api/auth/register", deps.AuthHandler.HandleRegister)
	mux.HandleFunc("/api/auth/login", deps.AuthHandler.HandleLogin)
	mux.HandleFunc("/api/auth/logout", deps.AuthHandler.HandleLogout)
	mux.HandleFunc("/api/auth/oauth/url", deps.AuthHandler.HandleAuthURL)
	mux.HandleFunc("/api/auth/oauth/callback", deps.AuthHandler.HandleCallback)

	// Protected routes
	authMiddleware := middleware.Auth(deps.JWT)

	mux.Handle("/api/users/me", authMiddleware(http.HandlerFunc(deps.UserHandler.HandleMe)))

	mux.Handle("/api/openbanking/banks", authMiddleware(http.HandlerFunc(deps.BankHandler.HandleListBanks)))
	mux.Handle("/api/openbanking/requisitions", authMiddleware(http.HandlerFunc(deps.RequisitionHandler.HandleRequisitions)))
	mux.Handle("/api/openbanking/requisitions/{reference}", authMiddleware(http.HandlerFunc(deps.RequisitionHandler.HandleRequisitionByReference)))
	mux.Handle("/api/openbanking/requisitions/{reference}/accounts", authMiddleware(http.HandlerFunc(deps.RequisitionHandler.HandleReconcile)))

	mux.Handle("/api/accounts", authMiddleware(http.HandlerFunc(deps.AccountHandler.HandleListAccounts)))
	mux.Handle("/api/accounts/{id}", authMiddleware(http.HandlerFunc(deps.AccountHandler.HandleAccountByID)))
	mux.Handle("/api/accounts/{id}/transactions", authMiddleware(http.HandlerFunc(deps.AccountHandler.HandleAccountTransactions)))
	mux.Handle("/api/accounts/{id}/transactions/sync", authMiddleware(http.HandlerFunc(deps.AccountHandler.HandleSyncTransactions)))

	mux.Handle("/api/transactions", authMiddleware(http.HandlerFunc(deps.TransactionHandler.HandleListTransactions)))

	// Apply global middleware
	handler := middleware.Logging(middleware.Tracing(middleware.Telemetry(middleware.CORS(cfg.Server.AllowedHosts)(mux))))

	// Apply security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		log.Println("TLS security middleware enabled (HSTS + SecureCookies)")
	}

	return handler
}
