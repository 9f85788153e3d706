package server

import (
	"net/http"
	"time"

	"github.com/hbarro/lares/internal/models"
)

// handleCards handles GET /api/cards (list) and POST /api/cards (create).
func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		cards, err := s.app.Invoices.ListCards(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, cards)
	case http.MethodPost:
		var card models.CreditCard
		if !DecodeJSON(w, r, &card) {
			return
		}
		if err := s.app.Invoices.CreateCard(r.Context(), &card); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, &card)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleCardByID handles GET/PUT/DELETE /api/cards/{id}.
func (s *Server) handleCardByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		card, err := s.app.Invoices.GetCard(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, card)
	case http.MethodPut:
		var card models.CreditCard
		if !DecodeJSON(w, r, &card) {
			return
		}
		card.ID = id
		if err := s.app.Invoices.UpdateCard(r.Context(), &card); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, &card)
	case http.MethodDelete:
		if err := s.app.Invoices.DeleteCard(r.Context(), id); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleCardPurchase handles POST /api/cards/{id}/purchases. The purchase
// lands on the invoice of the billing period its date resolves to; with
// installments > 1 the amount is split across consecutive periods.
func (s *Server) handleCardPurchase(w http.ResponseWriter, r *http.Request, cardID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Description  string         `json:"description"`
		Amount       float64        `json:"amount"`
		Category     string         `json:"category"`
		PurchaseDate time.Time      `json:"purchase_date"`
		Splits       []models.Split `json:"splits,omitempty"`
		Installments int            `json:"installments"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.PurchaseDate.IsZero() {
		req.PurchaseDate = time.Now().UTC()
	}
	if req.Installments == 0 {
		req.Installments = 1
	}

	item := models.InvoiceItem{
		Description:  req.Description,
		Amount:       req.Amount,
		Category:     req.Category,
		PurchaseDate: req.PurchaseDate,
		Splits:       req.Splits,
	}
	items, err := s.app.Invoices.AddPurchase(r.Context(), cardID, item, req.Installments)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, items)
}

// handleInvoiceList handles GET /api/invoices.
func (s *Server) handleInvoiceList(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	invoices, err := s.app.Invoices.ListInvoices(r.Context())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, invoices)
}

// handleInvoiceGet handles GET /api/invoices/{id}.
func (s *Server) handleInvoiceGet(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	invoice, err := s.app.Invoices.GetInvoice(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, invoice)
}

// handleInvoiceItems handles GET /api/invoices/{id}/items.
func (s *Server) handleInvoiceItems(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	items, err := s.app.Invoices.ListItems(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, items)
}

// handleInvoiceItem handles PUT/DELETE /api/invoices/{id}/items/{itemID}.
func (s *Server) handleInvoiceItem(w http.ResponseWriter, r *http.Request, invoiceID, itemID string) {
	switch r.Method {
	case http.MethodPut:
		var fields models.InvoiceItem
		if !DecodeJSON(w, r, &fields) {
			return
		}
		if err := s.app.Invoices.UpdateLineItem(r.Context(), invoiceID, itemID, fields); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"updated": itemID})
	case http.MethodDelete:
		if err := s.app.Invoices.DeleteLineItem(r.Context(), invoiceID, itemID); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": itemID})
	default:
		RequireMethod(w, r, http.MethodPut, http.MethodDelete)
	}
}

// handleInvoicePay handles POST /api/invoices/{id}/pay.
func (s *Server) handleInvoicePay(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		AccountID   string    `json:"account_id"`
		PaymentDate time.Time `json:"payment_date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.PaymentDate.IsZero() {
		req.PaymentDate = time.Now().UTC()
	}

	if err := s.app.Invoices.PayInvoice(r.Context(), id, req.AccountID, req.PaymentDate); err != nil {
		WriteServiceError(w, err)
		return
	}
	invoice, err := s.app.Invoices.GetInvoice(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, invoice)
}

// handleInvoiceAdvancePayment handles POST /api/invoices/{id}/advance-payment.
func (s *Server) handleInvoiceAdvancePayment(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		AccountID string    `json:"account_id"`
		Amount    float64   `json:"amount"`
		Date      time.Time `json:"date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	if err := s.app.Invoices.MakeAdvancePayment(r.Context(), id, req.Amount, req.AccountID, req.Date); err != nil {
		WriteServiceError(w, err)
		return
	}
	invoice, err := s.app.Invoices.GetInvoice(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, invoice)
}

// handleCloseOverdue handles POST /api/invoices/close-overdue.
func (s *Server) handleCloseOverdue(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	closed, err := s.app.Invoices.CloseOverdueInvoices(r.Context(), time.Now().UTC())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"closed": closed})
}
