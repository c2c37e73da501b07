/**
 * @description
 * This file sets up the HTTP router for the ledger-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * the authentication middleware for each route group.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterConfig carries the auth settings the route groups need.
type RouterConfig struct {
	JWKSURL        string
	Issuer         string
	Audience       string
	InternalAPIKey string
}

// LedgerRoutes creates and returns a new router for the ledger service.
func LedgerRoutes(h *LedgerHandlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", h.HealthHandler)

	jwks := NewJWKSCache(cfg.JWKSURL, 15*time.Minute)
	authenticate := AuthMiddleware(jwks, cfg.Issuer, cfg.Audience)

	// User-facing routes.
	r.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Get("/balance", h.GetBalanceHandler)
		r.Get("/transactions", h.ListTransactionsHandler)
		r.Get("/transactions/{transactionID}", h.GetTransactionHandler)
		r.Post("/deposits", h.DepositHandler)
		r.Post("/withdrawals", h.WithdrawalHandler)

		r.Post("/beneficiaries", h.CreateBeneficiaryHandler)
		r.Get("/beneficiaries", h.ListBeneficiariesHandler)
		r.Delete("/beneficiaries/{beneficiaryID}", h.DeleteBeneficiaryHandler)
		r.Put("/beneficiaries/{beneficiaryID}/default", h.SetDefaultBeneficiaryHandler)
	})

	// Admin review routes.
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(RequireAdmin)

		r.Post("/adjustments", h.AdjustmentHandler)
		r.Get("/deposits/pending", h.ListPendingDepositsHandler)
		r.Post("/deposits/{transactionID}/decision", h.ApproveDepositHandler)
		r.Get("/withdrawals/pending", h.ListPendingWithdrawalsHandler)
		r.Post("/withdrawals/{transactionID}/decision", h.ApproveWithdrawalHandler)
		r.Get("/beneficiaries/pending", h.ListPendingBeneficiariesHandler)
		r.Post("/beneficiaries/{beneficiaryID}/decision", h.ReviewBeneficiaryHandler)
	})

	// Service-to-service routes.
	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))

		r.Post("/accounts", h.CreateAccountHandler)
	})

	return r
}
