package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"tickyai/internal/types/focus"
	"tickyai/internal/types/mood"
	"tickyai/middleware"
	"tickyai/services"
)

type WellbeingHandler struct {
	moodService  *services.MoodService
	focusService *services.FocusService
}

func NewWellbeingHandler(moodService *services.MoodService, focusService *services.FocusService) *WellbeingHandler {
	return &WellbeingHandler{
		moodService:  moodService,
		focusService: focusService,
	}
}

// POST /api/v1/mood
func (h *WellbeingHandler) AddMoodEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req mood.CreateEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	entry, err := h.moodService.AddEntry(ctx, userID, &req)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, entry)
}

// GET /api/v1/mood?limit=30
func (h *WellbeingHandler) ListMoodEntries(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit := parseLimit(r, 30)

	entries, err := h.moodService.ListEntries(ctx, userID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, entries)
}

// POST /api/v1/focus
func (h *WellbeingHandler) StartFocusSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req focus.StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sess, err := h.focusService.StartSession(ctx, userID, &req)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusCreated, sess)
}

// POST /api/v1/focus/{sessionId}/end?completed=true
func (h *WellbeingHandler) EndFocusSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	sessionID := mux.Vars(r)["sessionId"]
	completed := r.URL.Query().Get("completed") == "true"

	sess, err := h.focusService.EndSession(ctx, sessionID, userID, completed)
	if err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, sess)
}

// GET /api/v1/focus?limit=20
func (h *WellbeingHandler) ListFocusSessions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit := parseLimit(r, 20)

	sessions, err := h.focusService.ListSessions(ctx, userID, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, sessions)
}

func parseLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 200 {
		return fallback
	}
	return limit
}
