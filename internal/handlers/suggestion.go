package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"focustrack-backend/internal/middleware"
	"focustrack-backend/internal/models"
	"focustrack-backend/internal/services"
)

type SuggestionHandler struct {
	reschedule *services.RescheduleService
}

func NewSuggestionHandler(reschedule *services.RescheduleService) *SuggestionHandler {
	return &SuggestionHandler{reschedule: reschedule}
}

func (h *SuggestionHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	suggestions, err := h.reschedule.ListPending(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if suggestions == nil {
		suggestions = []*models.RescheduleSuggestion{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func (h *SuggestionHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.reschedule.Accept)
}

func (h *SuggestionHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.reschedule.Reject)
}

func (h *SuggestionHandler) decide(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, userID, id uuid.UUID, reason *string) (*models.RescheduleSuggestion, error),
) {
	userID := middleware.GetUserID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid suggestion ID", r))
		return
	}

	var req struct {
		Reason *string `json:"reason"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	suggestion, err := fn(r.Context(), userID, id, req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestion": suggestion})
}
