package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tickyai/internal/types/usage"
	"tickyai/internal/types/user"
	"tickyai/middleware"
	"tickyai/services"
)

const trialDays = 7

type UserHandler struct {
	userService  *services.UserService
	usageService *services.UsageService
}

func NewUserHandler(userService *services.UserService, usageService *services.UsageService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		usageService: usageService,
	}
}

// POST /api/v1/users - Upsert the user on first bot contact
func (h *UserHandler) UpsertUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req user.UpsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TelegramID == 0 {
		respondWithError(w, http.StatusBadRequest, "telegramId is required")
		return
	}

	u, err := h.userService.UpsertUser(ctx, &req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// GET /api/v1/user - Get the acting user's profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// PUT /api/v1/user/settings - Update timezone / daily reminder opt-out
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := h.userService.UpdateSettings(ctx, userID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// POST /api/v1/user/trial - Start the premium trial
func (h *UserHandler) StartTrial(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.userService.StartTrial(ctx, userID, trialDays)
	if err != nil {
		respondWithError(w, http.StatusConflict, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

// GET /api/v1/user/limits?feature=tasks - Check a feature allowance
func (h *UserHandler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	feature := usage.Feature(r.URL.Query().Get("feature"))
	if usage.Column(feature) == "" {
		respondWithError(w, http.StatusBadRequest, "Unknown feature")
		return
	}

	result, err := h.usageService.CheckLimit(ctx, userID, feature)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondForServiceError maps shared service errors to HTTP statuses.
func respondForServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrQuotaExceeded):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrHabitNotFound),
		errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, services.ErrReminderNotFound),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrFocusSessionNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}
