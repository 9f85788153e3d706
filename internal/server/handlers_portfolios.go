package server

import (
	"net/http"
	"time"

	"github.com/hbarro/lares/internal/models"
)

// handlePortfolios handles GET /api/portfolios (list) and POST /api/portfolios (create).
func (s *Server) handlePortfolios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		portfolios, err := s.app.Investments.ListPortfolios(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, portfolios)
	case http.MethodPost:
		var p models.Portfolio
		if !DecodeJSON(w, r, &p) {
			return
		}
		if err := s.app.Investments.CreatePortfolio(r.Context(), &p); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, &p)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handlePortfolioByID handles GET/DELETE /api/portfolios/{id}.
func (s *Server) handlePortfolioByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		p, err := s.app.Investments.GetPortfolio(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if err := s.app.Investments.DeletePortfolio(r.Context(), id); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodDelete)
	}
}

// handlePortfolioAssets handles GET /api/portfolios/{id}/assets.
func (s *Server) handlePortfolioAssets(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	assets, err := s.app.Investments.ListAssets(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, assets)
}

// handlePortfolioMovements handles POST /api/portfolios/{id}/movements.
// It appends a buy or sell to the asset's movement log, creating the asset
// on first use.
func (s *Server) handlePortfolioMovements(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Ticker       string              `json:"ticker"`
		Kind         models.MovementKind `json:"kind"`
		Quantity     float64             `json:"quantity"`
		PricePerUnit float64             `json:"price_per_unit"`
		Date         time.Time           `json:"date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Date.IsZero() {
		req.Date = time.Now().UTC()
	}

	mv := models.Movement{
		Kind:         req.Kind,
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		Date:         req.Date,
	}
	asset, err := s.app.Investments.RecordMovement(r.Context(), portfolioID, req.Ticker, mv)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, asset)
}

// handlePortfolioDividend handles POST /api/portfolios/{id}/dividends.
func (s *Server) handlePortfolioDividend(w http.ResponseWriter, r *http.Request, portfolioID string) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Ticker      string    `json:"ticker"`
		Amount      float64   `json:"amount"`
		PaymentDate time.Time `json:"payment_date"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.PaymentDate.IsZero() {
		req.PaymentDate = time.Now().UTC()
	}

	mv, err := s.app.Investments.RecordDividend(r.Context(), portfolioID, req.Ticker, req.Amount, req.PaymentDate)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, mv)
}

// handlePortfolioValuation handles GET /api/portfolios/{id}/valuation.
func (s *Server) handlePortfolioValuation(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	valuation, err := s.app.Investments.Valuation(r.Context(), id)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, valuation)
}

// handleAssetMovements handles GET /api/portfolios/{id}/assets/{assetID}/movements.
func (s *Server) handleAssetMovements(w http.ResponseWriter, r *http.Request, portfolioID, assetID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	movements, err := s.app.Investments.ListMovements(r.Context(), portfolioID, assetID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, movements)
}

// handleAssetMovement handles DELETE /api/portfolios/{id}/assets/{assetID}/movements/{movementID}.
// The asset's aggregates are recomputed by replaying the remaining log.
func (s *Server) handleAssetMovement(w http.ResponseWriter, r *http.Request, portfolioID, assetID, movementID string) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	asset, err := s.app.Investments.DeleteMovementAndRecalculate(r.Context(), portfolioID, assetID, movementID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, asset)
}
