package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickyai/internal/types/task"
	"tickyai/internal/types/usage"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskService struct {
	db    *pgxpool.Pool
	usage *UsageService
}

func NewTaskService(db *pgxpool.Pool, usageService *UsageService) *TaskService {
	return &TaskService{db: db, usage: usageService}
}

const taskColumns = `id, user_id, title, description, status, due_date, completed_at, created_at, updated_at`

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Status,
		&t.DueDate, &t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	return t, nil
}

func (s *TaskService) CreateTask(ctx context.Context, userID string, req *task.CreateTaskRequest) (*task.Task, error) {
	check, err := s.usage.CheckLimit(ctx, userID, usage.FeatureTasks)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, check.Message)
	}

	if req.Title == "" {
		return nil, fmt.Errorf("task title is required")
	}

	query := `
	INSERT INTO tasks (id, user_id, title, description, status, due_date, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 'PENDING', $5, NOW(), NOW())
	RETURNING ` + taskColumns

	t, err := scanTask(s.db.QueryRow(ctx, query, uuid.New().String(), userID, req.Title, req.Description, req.DueDate))
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := s.usage.IncrementUsage(ctx, userID, usage.FeatureTasks); err != nil {
		log.Printf("Failed to increment task usage for user %s: %v", userID, err)
	}

	return t, nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID string) ([]*task.Task, error) {
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (s *TaskService) ListPendingTasks(ctx context.Context, userID string) ([]*task.Task, error) {
	return s.listTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 AND status = 'PENDING' ORDER BY created_at`, userID)
}

func (s *TaskService) listTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountTasks returns completed and total task counts for the user.
func (s *TaskService) CountTasks(ctx context.Context, userID string) (int, int, error) {
	var completed, total int
	query := `SELECT COUNT(*) FILTER (WHERE status = 'COMPLETED'), COUNT(*) FROM tasks WHERE user_id = $1`
	if err := s.db.QueryRow(ctx, query, userID).Scan(&completed, &total); err != nil {
		return 0, 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return completed, total, nil
}

func (s *TaskService) CompleteTask(ctx context.Context, taskID string, userID string) (*task.Task, error) {
	query := `
	UPDATE tasks
	SET status = 'COMPLETED', completed_at = NOW(), updated_at = NOW()
	WHERE id = $1 AND user_id = $2 AND status = 'PENDING'
	RETURNING ` + taskColumns

	return scanTask(s.db.QueryRow(ctx, query, taskID, userID))
}

func (s *TaskService) DeleteTask(ctx context.Context, taskID string, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}
