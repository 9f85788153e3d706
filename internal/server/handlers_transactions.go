package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hbarro/lares/internal/interfaces"
	"github.com/hbarro/lares/internal/models"
)

// handleTransactions handles GET /api/transactions (list) and POST /api/transactions (create).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := interfaces.TransactionQuery{
			AccountID: r.URL.Query().Get("account_id"),
			Kind:      models.TransactionKind(r.URL.Query().Get("kind")),
			Category:  r.URL.Query().Get("category"),
		}
		if v := r.URL.Query().Get("from"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
				return
			}
			q.From = t
		}
		if v := r.URL.Query().Get("to"); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
				return
			}
			q.To = t
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				WriteError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			q.Limit = n
		}
		txs, err := s.app.Ledger.ListTransactions(r.Context(), q)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, txs)
	case http.MethodPost:
		var tx models.Transaction
		if !DecodeJSON(w, r, &tx) {
			return
		}
		if err := s.app.Ledger.ApplyTransaction(r.Context(), &tx); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, &tx)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleTransactionByID handles GET/PUT/DELETE /api/transactions/{id}.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		tx, err := s.app.Ledger.GetTransaction(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, tx)
	case http.MethodPut:
		var fields models.Transaction
		if !DecodeJSON(w, r, &fields) {
			return
		}
		if err := s.app.Ledger.UpdateTransaction(r.Context(), id, fields); err != nil {
			WriteServiceError(w, err)
			return
		}
		tx, err := s.app.Ledger.GetTransaction(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, tx)
	case http.MethodDelete:
		if err := s.app.Ledger.DeleteTransaction(r.Context(), id); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleTransfer handles POST /api/transactions/transfer.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		FromAccountID string    `json:"from_account_id"`
		ToAccountID   string    `json:"to_account_id"`
		Amount        float64   `json:"amount"`
		Date          time.Time `json:"date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	if err := s.app.Ledger.TransferFunds(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount, req.Date); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"from_account_id": req.FromAccountID,
		"to_account_id":   req.ToAccountID,
		"amount":          req.Amount,
	})
}
