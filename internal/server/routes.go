package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/hbarro/lares/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Auth
	mux.HandleFunc("/api/auth/token", s.handleAuthToken)
	mux.HandleFunc("/api/auth/validate", s.handleAuthValidate)

	// Accounts
	mux.HandleFunc("/api/accounts/", s.routeAccounts)
	mux.HandleFunc("/api/accounts", s.handleAccounts)

	// Transactions
	mux.HandleFunc("/api/transactions/transfer", s.handleTransfer)
	mux.HandleFunc("/api/transactions/", s.handleTransactionByID)
	mux.HandleFunc("/api/transactions", s.handleTransactions)

	// Cards and invoices
	mux.HandleFunc("/api/cards/", s.routeCards)
	mux.HandleFunc("/api/cards", s.handleCards)
	mux.HandleFunc("/api/invoices/close-overdue", s.handleCloseOverdue)
	mux.HandleFunc("/api/invoices/", s.routeInvoices)
	mux.HandleFunc("/api/invoices", s.handleInvoiceList)

	// Recurring
	mux.HandleFunc("/api/recurring/process", s.handleRecurringProcess)
	mux.HandleFunc("/api/recurring/", s.handleRecurringByID)
	mux.HandleFunc("/api/recurring", s.handleRecurring)

	// Portfolios
	mux.HandleFunc("/api/portfolios/", s.routePortfolios)
	mux.HandleFunc("/api/portfolios", s.handlePortfolios)

	// Budgets and categories
	mux.HandleFunc("/api/budgets/", s.handleBudgetByID)
	mux.HandleFunc("/api/budgets", s.handleBudgets)
	mux.HandleFunc("/api/categories/", s.handleCategoryByID)
	mux.HandleFunc("/api/categories", s.handleCategories)
}

// routeAccounts dispatches /api/accounts/{id}[/{action}] to the appropriate handler.
func (s *Server) routeAccounts(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/accounts/")
	if path == "" {
		s.handleAccounts(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handleAccountByID(w, r, id)
	case "archive":
		s.handleAccountArchive(w, r, id)
	case "balance-check":
		s.handleAccountBalanceCheck(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeCards dispatches /api/cards/{id}[/{action}] to the appropriate handler.
func (s *Server) routeCards(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/cards/")
	if path == "" {
		s.handleCards(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch subpath {
	case "":
		s.handleCardByID(w, r, id)
	case "purchases":
		s.handleCardPurchase(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeInvoices dispatches /api/invoices/{id}/* to the appropriate handler.
func (s *Server) routeInvoices(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/invoices/")
	if path == "" {
		s.handleInvoiceList(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch {
	case subpath == "":
		s.handleInvoiceGet(w, r, id)
	case subpath == "items":
		s.handleInvoiceItems(w, r, id)
	case strings.HasPrefix(subpath, "items/"):
		itemID := strings.TrimPrefix(subpath, "items/")
		s.handleInvoiceItem(w, r, id, itemID)
	case subpath == "pay":
		s.handleInvoicePay(w, r, id)
	case subpath == "advance-payment":
		s.handleInvoiceAdvancePayment(w, r, id)
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routePortfolios dispatches /api/portfolios/{id}/* to the appropriate handler.
func (s *Server) routePortfolios(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/portfolios/")
	if path == "" {
		s.handlePortfolios(w, r)
		return
	}

	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	subpath := ""
	if len(parts) > 1 {
		subpath = parts[1]
	}

	switch {
	case subpath == "":
		s.handlePortfolioByID(w, r, id)
	case subpath == "assets":
		s.handlePortfolioAssets(w, r, id)
	case subpath == "movements":
		s.handlePortfolioMovements(w, r, id)
	case subpath == "dividends":
		s.handlePortfolioDividend(w, r, id)
	case subpath == "valuation":
		s.handlePortfolioValuation(w, r, id)
	case strings.HasPrefix(subpath, "assets/"):
		s.routeAssets(w, r, id, strings.TrimPrefix(subpath, "assets/"))
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

// routeAssets dispatches /api/portfolios/{id}/assets/{assetID}/movements[/{movementID}].
func (s *Server) routeAssets(w http.ResponseWriter, r *http.Request, portfolioID, subpath string) {
	parts := strings.SplitN(subpath, "/", 3)
	if len(parts) < 2 || parts[1] != "movements" {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	assetID := parts[0]

	if len(parts) == 2 {
		s.handleAssetMovements(w, r, portfolioID, assetID)
		return
	}
	s.handleAssetMovement(w, r, portfolioID, assetID, parts[2])
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
