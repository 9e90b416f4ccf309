package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tickyai/internal/types/task"
	"tickyai/middleware"
	"tickyai/services"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// POST /api/v1/tasks
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req task.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Title == "" {
		respondWithError(w, http.StatusBadRequest, "title is required")
		return
	}

	created, err := h.taskService.CreateTask(ctx, userID, &req)
	if err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// GET /api/v1/tasks?status=pending
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var (
		tasks []*task.Task
		err   error
	)
	if r.URL.Query().Get("status") == "pending" {
		tasks, err = h.taskService.ListPendingTasks(ctx, userID)
	} else {
		tasks, err = h.taskService.ListTasks(ctx, userID)
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, tasks)
}

// POST /api/v1/tasks/{taskId}/complete
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	taskID := mux.Vars(r)["taskId"]

	completed, err := h.taskService.CompleteTask(ctx, taskID, userID)
	if err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, completed)
}

// DELETE /api/v1/tasks/{taskId}
func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	taskID := mux.Vars(r)["taskId"]

	if err := h.taskService.DeleteTask(ctx, taskID, userID); err != nil {
		respondForServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
