package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tickyai/internal/types/reminder"
	"tickyai/middleware"
	"tickyai/services"
)

type ReminderHandler struct {
	reminderService *services.ReminderService
}

func NewReminderHandler(reminderService *services.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminderService: reminderService}
}

// POST /api/v1/reminders
func (h *ReminderHandler) CreateReminder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req reminder.CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Message == "" {
		respondWithError(w, http.StatusBadRequest, "message is required")
		return
	}

	created, err := h.reminderService.CreateReminder(ctx, userID, &req)
	if err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// GET /api/v1/reminders
func (h *ReminderHandler) ListReminders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	reminders, err := h.reminderService.ListReminders(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, reminders)
}

// POST /api/v1/reminders/{reminderId}/dismiss
func (h *ReminderHandler) DismissReminder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	reminderID := mux.Vars(r)["reminderId"]

	if err := h.reminderService.DismissReminder(ctx, reminderID, userID); err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}
