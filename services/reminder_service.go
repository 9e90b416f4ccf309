package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickyai/internal/types/reminder"
	"tickyai/internal/types/usage"
)

var ErrReminderNotFound = errors.New("reminder not found")

// ReminderService manages one-off reminders. Due rows are picked up by the
// broadcast tick; terminal rows (COMPLETED, DISMISSED) are never revisited.
type ReminderService struct {
	db    *pgxpool.Pool
	usage *UsageService
}

func NewReminderService(db *pgxpool.Pool, usageService *UsageService) *ReminderService {
	return &ReminderService{db: db, usage: usageService}
}

const reminderColumns = `id, user_id, message, scheduled_time, status, created_at`

func scanReminder(row pgx.Row) (*reminder.Reminder, error) {
	r := &reminder.Reminder{}
	err := row.Scan(&r.ID, &r.UserID, &r.Message, &r.ScheduledTime, &r.Status, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to scan reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderService) CreateReminder(ctx context.Context, userID string, req *reminder.CreateReminderRequest) (*reminder.Reminder, error) {
	check, err := s.usage.CheckLimit(ctx, userID, usage.FeatureReminders)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, check.Message)
	}

	if req.Message == "" {
		return nil, fmt.Errorf("reminder message is required")
	}

	query := `
	INSERT INTO reminders (id, user_id, message, scheduled_time, status, created_at)
	VALUES ($1, $2, $3, $4, 'ACTIVE', NOW())
	RETURNING ` + reminderColumns

	r, err := scanReminder(s.db.QueryRow(ctx, query, uuid.New().String(), userID, req.Message, req.ScheduledTime))
	if err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	if err := s.usage.IncrementUsage(ctx, userID, usage.FeatureReminders); err != nil {
		log.Printf("Failed to increment reminder usage for user %s: %v", userID, err)
	}

	return r, nil
}

func (s *ReminderService) ListReminders(ctx context.Context, userID string) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = $1 ORDER BY scheduled_time`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

// ListDueReminders returns ACTIVE reminders whose scheduled time has passed.
func (s *ReminderService) ListDueReminders(ctx context.Context, now time.Time) ([]*reminder.Reminder, error) {
	query := `SELECT ` + reminderColumns + ` FROM reminders WHERE status = 'ACTIVE' AND scheduled_time <= $1 LIMIT 100`

	rows, err := s.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []*reminder.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, r)
	}
	return reminders, rows.Err()
}

func (s *ReminderService) MarkReminderCompleted(ctx context.Context, reminderID string) error {
	query := `UPDATE reminders SET status = 'COMPLETED' WHERE id = $1 AND status = 'ACTIVE'`
	if _, err := s.db.Exec(ctx, query, reminderID); err != nil {
		return fmt.Errorf("failed to complete reminder: %w", err)
	}
	return nil
}

func (s *ReminderService) DismissReminder(ctx context.Context, reminderID string, userID string) error {
	query := `UPDATE reminders SET status = 'DISMISSED' WHERE id = $1 AND user_id = $2 AND status = 'ACTIVE'`
	tag, err := s.db.Exec(ctx, query, reminderID, userID)
	if err != nil {
		return fmt.Errorf("failed to dismiss reminder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReminderNotFound
	}
	return nil
}
