package server

import (
	"net/http"

	"github.com/hbarro/lares/internal/models"
)

// handleAccounts handles GET /api/accounts (list) and POST /api/accounts (create).
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		accounts, err := s.app.Ledger.ListAccounts(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, accounts)
	case http.MethodPost:
		var req struct {
			Name           string             `json:"name"`
			Type           models.AccountType `json:"type"`
			InitialBalance float64            `json:"initial_balance"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		account := &models.Account{
			Name:           req.Name,
			Type:           req.Type,
			InitialBalance: req.InitialBalance,
		}
		if err := s.app.Ledger.CreateAccount(r.Context(), account); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, account)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleAccountByID handles GET/PUT/DELETE /api/accounts/{id}.
func (s *Server) handleAccountByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		account, err := s.app.Ledger.GetAccount(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, account)
	case http.MethodPut:
		var req struct {
			Name string             `json:"name"`
			Type models.AccountType `json:"type"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if err := s.app.Ledger.UpdateAccount(r.Context(), id, req.Name, req.Type); err != nil {
			WriteServiceError(w, err)
			return
		}
		account, err := s.app.Ledger.GetAccount(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, account)
	case http.MethodDelete:
		confirm := r.URL.Query().Get("confirm") == "true"
		if err := s.app.Ledger.DeleteAccount(r.Context(), id, confirm); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleAccountArchive handles POST /api/accounts/{id}/archive.
func (s *Server) handleAccountArchive(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	if err := s.app.Ledger.ArchiveAccount(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"archived": id})
}

// handleAccountBalanceCheck handles GET /api/accounts/{id}/balance-check.
func (s *Server) handleAccountBalanceCheck(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	check, err := s.app.Ledger.VerifyBalance(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, check)
}
