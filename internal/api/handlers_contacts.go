package api

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/contact-verifier/internal/errors"
	"github.com/gorilla/mux"
)

// handleAddContacts handles POST /api/contacts - add phone numbers to the
// caller's backlog. Numbers already present are skipped, not duplicated.
func (s *Server) handleAddContacts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return
	}

	var req struct {
		Phones []string `json:"phones"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	phones := make([]string, 0, len(req.Phones))
	for _, phone := range req.Phones {
		phone = strings.TrimSpace(phone)
		if phone != "" {
			phones = append(phones, phone)
		}
	}
	if len(phones) == 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "phones list cannot be empty", nil)
		return
	}

	records, err := s.contacts.BatchCreate(r.Context(), ownerID, phones)
	if err != nil {
		s.logger.WithError(err).WithField("ownerId", ownerID).Error("Failed to add contacts")
		respondCategorized(w, apperrors.NewDatabaseError("add contacts", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"created": len(records),
		"records": records,
	})
}

// handleListContacts handles GET /api/contacts - list the caller's records
func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return
	}

	query := r.URL.Query()

	limit := 100
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	offset := 0
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	records, err := s.contacts.ListByOwner(r.Context(), ownerID, limit, offset)
	if err != nil {
		s.logger.WithError(err).WithField("ownerId", ownerID).Error("Failed to list contacts")
		respondCategorized(w, apperrors.NewDatabaseError("list contacts", err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleDeleteContact handles DELETE /api/contacts/{id}
func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return
	}

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Record ID required", nil)
		return
	}

	if err := s.contacts.Delete(r.Context(), ownerID, id); err != nil {
		respondCategorized(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"id":      id,
	})
}
