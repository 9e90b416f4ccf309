package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tickyai/middleware"
	"tickyai/services"
)

type AssistantHandler struct {
	assistantService *services.AssistantService
}

func NewAssistantHandler(assistantService *services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistantService: assistantService}
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// POST /api/v1/assistant/ask
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question == "" {
		respondWithError(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := h.assistantService.Ask(ctx, userID, req.Question)
	if err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, askResponse{Answer: answer})
}
