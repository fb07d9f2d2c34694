package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"focustrack-backend/internal/middleware"
	"focustrack-backend/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
}

func NewSessionHandler(sessions *services.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		TaskID            string  `json:"task_id"`
		PlannedCheckoutAt string  `json:"planned_checkout_at"`
		PlannedOutcome    *string `json:"planned_outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid task_id", r))
		return
	}

	plannedCheckoutAt, err := time.Parse(time.RFC3339, req.PlannedCheckoutAt)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "planned_checkout_at must be RFC3339", r))
		return
	}

	session, err := h.sessions.Start(r.Context(), userID, taskID, plannedCheckoutAt, req.PlannedOutcome)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"session": session})
}

func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	session, err := h.sessions.Pause(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		ExtendCheckout bool `json:"extend_checkout"`
	}
	if r.Body != nil {
		// Body is optional; extend_checkout defaults to false.
		json.NewDecoder(r.Body).Decode(&req)
	}

	session, err := h.sessions.Resume(r.Context(), userID, req.ExtendCheckout)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *SessionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req struct {
		Decision               string   `json:"decision"`
		ContinueReason         *string  `json:"continue_reason"`
		KptKeep                *string  `json:"kpt_keep"`
		KptProblem             *string  `json:"kpt_problem"`
		KptTry                 *string  `json:"kpt_try"`
		RemainingEstimateHours *float64 `json:"remaining_estimate_hours"`
		NextTaskID             *string  `json:"next_task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	var nextTaskID *uuid.UUID
	if req.NextTaskID != nil {
		id, err := uuid.Parse(*req.NextTaskID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid next_task_id", r))
			return
		}
		nextTaskID = &id
	}

	result, err := h.sessions.Checkout(r.Context(), userID, services.CheckoutRequest{
		Decision:               req.Decision,
		ContinueReason:         req.ContinueReason,
		KptKeep:                req.KptKeep,
		KptProblem:             req.KptProblem,
		KptTry:                 req.KptTry,
		RemainingEstimateHours: req.RemainingEstimateHours,
		NextTaskID:             nextTaskID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	result, err := h.sessions.Snooze(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *SessionHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	session, err := h.sessions.GetCurrent(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *SessionHandler) GetUnresponsive(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	session, err := h.sessions.GetUnresponsive(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}
