package api

import (
	"net/http"
)

// handleStartVerification handles POST /api/verification/start
func (s *Server) handleStartVerification(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return
	}

	// delaySeconds is a pointer so an explicit zero (drain without pausing)
	// is distinguishable from "not set".
	var req struct {
		BatchSize    int  `json:"batchSize,omitempty"`
		DelaySeconds *int `json:"delaySeconds,omitempty"`
	}
	// An empty body means "use defaults"
	if r.Body != nil && r.ContentLength != 0 {
		if err := parseJSONBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
			return
		}
	}
	delaySeconds := -1
	if req.DelaySeconds != nil {
		if *req.DelaySeconds < 0 {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "delaySeconds must not be negative", nil)
			return
		}
		delaySeconds = *req.DelaySeconds
	}

	total, err := s.engine.Start(r.Context(), ownerID, req.BatchSize, delaySeconds)
	if err != nil {
		s.logger.WithError(err).WithField("ownerId", ownerID).Warn("Start verification rejected")
		respondCategorized(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"total": total,
	})
}

// handleStopVerification handles POST /api/verification/stop
func (s *Server) handleStopVerification(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return
	}

	if err := s.engine.Stop(r.Context(), ownerID); err != nil {
		respondCategorized(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
	})
}

// handleVerificationStatus handles POST /api/verification/status.
// Always 200; an absent job reads as not running.
func (s *Server) handleVerificationStatus(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := callerID(r)
	if !ok {
		respondError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "User ID required", nil)
		return
	}

	respondJSON(w, http.StatusOK, s.engine.Status(ownerID))
}

// handleInteractiveCheck handles POST /api/verification/check
func (s *Server) handleInteractiveCheck(w http.ResponseWriter, r *http.Request) {
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

	results, err := s.interactive.Check(r.Context(), ownerID, req.Phones)
	if err != nil {
		s.logger.WithError(err).WithField("ownerId", ownerID).Warn("Interactive check rejected")
		respondCategorized(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}
