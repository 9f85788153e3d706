package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/hbarro/lares/internal/models"
)

// handleRecurring handles GET /api/recurring (list) and POST /api/recurring (create).
func (s *Server) handleRecurring(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		defs, err := s.app.Recurring.List(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, defs)
	case http.MethodPost:
		var def models.RecurringTransaction
		if !DecodeJSON(w, r, &def) {
			return
		}
		if err := s.app.Recurring.Create(r.Context(), &def); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, &def)
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleRecurringByID handles GET/PUT/DELETE /api/recurring/{id}.
func (s *Server) handleRecurringByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/recurring/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		def, err := s.app.Recurring.Get(r.Context(), id)
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, def)
	case http.MethodPut:
		var def models.RecurringTransaction
		if !DecodeJSON(w, r, &def) {
			return
		}
		def.ID = id
		if err := s.app.Recurring.Update(r.Context(), &def); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, &def)
	case http.MethodDelete:
		if err := s.app.Recurring.Delete(r.Context(), id); err != nil {
			WriteServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		RequireMethod(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleRecurringProcess handles POST /api/recurring/process. Normally the
// session-start maintenance runs this; the endpoint exists for manual runs.
func (s *Server) handleRecurringProcess(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	materialized, err := s.app.Recurring.ProcessDue(r.Context(), time.Now().UTC())
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"materialized": materialized})
}
