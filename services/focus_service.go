package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickyai/internal/types/focus"
)

var ErrFocusSessionNotFound = errors.New("focus session not found")

type FocusService struct {
	db *pgxpool.Pool
}

func NewFocusService(db *pgxpool.Pool) *FocusService {
	return &FocusService{db: db}
}

const focusColumns = `id, user_id, task_id, duration_minutes, started_at, ended_at, completed`

func scanFocusSession(row pgx.Row) (*focus.Session, error) {
	sess := &focus.Session{}
	err := row.Scan(&sess.ID, &sess.UserID, &sess.TaskID, &sess.DurationMinutes, &sess.StartedAt, &sess.EndedAt, &sess.Completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFocusSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan focus session: %w", err)
	}
	return sess, nil
}

func (s *FocusService) StartSession(ctx context.Context, userID string, req *focus.StartSessionRequest) (*focus.Session, error) {
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 25
	}

	query := `
	INSERT INTO focus_sessions (id, user_id, task_id, duration_minutes, started_at, completed)
	VALUES ($1, $2, $3, $4, NOW(), false)
	RETURNING ` + focusColumns

	sess, err := scanFocusSession(s.db.QueryRow(ctx, query, uuid.New().String(), userID, req.TaskID, req.DurationMinutes))
	if err != nil {
		return nil, fmt.Errorf("failed to start focus session: %w", err)
	}
	return sess, nil
}

func (s *FocusService) EndSession(ctx context.Context, sessionID string, userID string, completed bool) (*focus.Session, error) {
	query := `
	UPDATE focus_sessions
	SET ended_at = NOW(), completed = $3
	WHERE id = $1 AND user_id = $2 AND ended_at IS NULL
	RETURNING ` + focusColumns

	return scanFocusSession(s.db.QueryRow(ctx, query, sessionID, userID, completed))
}

func (s *FocusService) ListSessions(ctx context.Context, userID string, limit int) ([]*focus.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}

	query := `SELECT ` + focusColumns + ` FROM focus_sessions WHERE user_id = $1 ORDER BY started_at DESC LIMIT $2`

	rows, err := s.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list focus sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*focus.Session
	for rows.Next() {
		sess, err := scanFocusSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}
