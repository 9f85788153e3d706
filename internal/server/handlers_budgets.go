package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hbarro/lares/internal/models"
)

// handleBudgets handles GET /api/budgets?year=&month= (status) and
// POST /api/budgets (upsert).
func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		now := time.Now().UTC()
		year := now.Year()
		month := now.Month()
		if v := r.URL.Query().Get("year"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "invalid year")
				return
			}
			year = n
		}
		if v := r.URL.Query().Get("month"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 12 {
				WriteError(w, http.StatusBadRequest, "invalid month")
				return
			}
			month = time.Month(n)
		}
		statuses, err := s.app.Budgets.Status(r.Context(), year, month)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, statuses)
	case http.MethodPost:
		var b models.Budget
		if !DecodeJSON(w, r, &b) {
			return
		}
		if err := s.app.Budgets.Set(r.Context(), &b); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, &b)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleBudgetByID handles DELETE /api/budgets/{id}.
func (s *Server) handleBudgetByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/budgets/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	if err := s.app.Budgets.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// handleCategories handles GET /api/categories (list, seeding defaults on
// first use) and POST /api/categories (add).
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := s.app.Budgets.ListCategories(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, categories)
	case http.MethodPost:
		var c models.Category
		if !DecodeJSON(w, r, &c) {
			return
		}
		if err := s.app.Budgets.AddCategory(r.Context(), &c); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, &c)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleCategoryByID handles DELETE /api/categories/{id}.
func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/categories/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	if err := s.app.Budgets.DeleteCategory(r.Context(), id); err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
