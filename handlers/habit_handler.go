package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tickyai/internal/types/habit"
	"tickyai/middleware"
	"tickyai/services"
)

type HabitHandler struct {
	habitService *services.HabitService
}

func NewHabitHandler(habitService *services.HabitService) *HabitHandler {
	return &HabitHandler{habitService: habitService}
}

// POST /api/v1/habits
func (h *HabitHandler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req habit.CreateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		respondWithError(w, http.StatusBadRequest, "title is required")
		return
	}

	created, err := h.habitService.CreateHabit(ctx, userID, &req)
	if err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// GET /api/v1/habits
func (h *HabitHandler) ListHabits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habits, err := h.habitService.ListActiveHabits(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, habits)
}

// PUT /api/v1/habits/{habitId}
func (h *HabitHandler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habitID := mux.Vars(r)["habitId"]

	var req habit.UpdateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.habitService.UpdateHabit(ctx, habitID, userID, &req)
	if err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

// DELETE /api/v1/habits/{habitId}
func (h *HabitHandler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habitID := mux.Vars(r)["habitId"]

	if err := h.habitService.DeleteHabit(ctx, habitID, userID); err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// POST /api/v1/habits/{habitId}/complete
func (h *HabitHandler) CompleteHabit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habitID := mux.Vars(r)["habitId"]

	completed, err := h.habitService.CompleteHabit(ctx, habitID, userID)
	if err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, completed)
}

// POST /api/v1/habits/{habitId}/cancel - Undo the last completion
func (h *HabitHandler) CancelCompletion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habitID := mux.Vars(r)["habitId"]

	reverted, err := h.habitService.CancelCompletion(ctx, habitID, userID)
	if err != nil {
		if errors.Is(err, services.ErrNothingToUndo) {
			respondWithError(w, http.StatusConflict, err.Error())
			return
		}
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, reverted)
}

// POST /api/v1/habits/{habitId}/skip - Mute today's reminder
func (h *HabitHandler) SkipHabitToday(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	habitID := mux.Vars(r)["habitId"]

	if err := h.habitService.SkipHabitToday(ctx, habitID, userID); err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
}
