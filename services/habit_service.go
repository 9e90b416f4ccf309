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

	"tickyai/internal/types/habit"
	"tickyai/internal/types/usage"
)

var (
	ErrHabitNotFound = errors.New("habit not found")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrNothingToUndo = errors.New("no completion to cancel")
)

// HabitScheduler is the slice of the scheduler the habit CRUD paths need
// to keep per-habit timers in sync with edits.
type HabitScheduler interface {
	ScheduleHabitReminder(h *habit.Habit)
	CancelHabitReminder(habitID string)
}

type HabitService struct {
	db        dbtx
	usage     *UsageService
	scheduler HabitScheduler
}

func NewHabitService(db *pgxpool.Pool, usageService *UsageService) *HabitService {
	return &HabitService{db: db, usage: usageService}
}

// SetScheduler injects the scheduler after both services exist.
func (s *HabitService) SetScheduler(scheduler HabitScheduler) {
	s.scheduler = scheduler
}

const habitColumns = `id, user_id, title, is_active, frequency, reminder_time,
	current_streak, max_streak, total_completions, xp_reward, previous_updated_at,
	created_at, updated_at`

func scanHabit(row pgx.Row) (*habit.Habit, error) {
	h := &habit.Habit{}
	err := row.Scan(
		&h.ID,
		&h.UserID,
		&h.Title,
		&h.IsActive,
		&h.Frequency,
		&h.ReminderTime,
		&h.CurrentStreak,
		&h.MaxStreak,
		&h.TotalCompletions,
		&h.XPReward,
		&h.PreviousUpdatedAt,
		&h.CreatedAt,
		&h.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHabitNotFound
		}
		return nil, fmt.Errorf("failed to scan habit: %w", err)
	}
	return h, nil
}

// CreateHabit is quota-gated: the limit is checked before the insert and
// the counter incremented after it succeeds.
func (s *HabitService) CreateHabit(ctx context.Context, userID string, req *habit.CreateHabitRequest) (*habit.Habit, error) {
	check, err := s.usage.CheckLimit(ctx, userID, usage.FeatureHabits)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrQuotaExceeded, check.Message)
	}

	if req.Frequency != habit.FrequencyDaily && req.Frequency != habit.FrequencyWeekly {
		return nil, fmt.Errorf("invalid frequency %q", req.Frequency)
	}
	xp := req.XPReward
	if xp <= 0 {
		xp = 10
	}

	query := `
	INSERT INTO habits (id, user_id, title, is_active, frequency, reminder_time, xp_reward, created_at, updated_at)
	VALUES ($1, $2, $3, true, $4, $5, $6, NOW(), NOW())
	RETURNING ` + habitColumns

	h, err := scanHabit(s.db.QueryRow(ctx, query, uuid.New().String(), userID, req.Title, req.Frequency, req.ReminderTime, xp))
	if err != nil {
		return nil, fmt.Errorf("failed to create habit: %w", err)
	}

	if err := s.usage.IncrementUsage(ctx, userID, usage.FeatureHabits); err != nil {
		log.Printf("Failed to increment habit usage for user %s: %v", userID, err)
	}

	if s.scheduler != nil && h.HasReminder() {
		s.scheduler.ScheduleHabitReminder(h)
	}

	return h, nil
}

func (s *HabitService) GetHabitByID(ctx context.Context, habitID string) (*habit.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE id = $1`
	return scanHabit(s.db.QueryRow(ctx, query, habitID))
}

func (s *HabitService) ListActiveHabits(ctx context.Context, userID string) ([]*habit.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE user_id = $1 AND is_active ORDER BY created_at`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var habits []*habit.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

// ListHabitsWithReminders returns every habit eligible for a scheduled
// reminder. This is the restore source after a process start.
func (s *HabitService) ListHabitsWithReminders(ctx context.Context) ([]*habit.Habit, error) {
	query := `SELECT ` + habitColumns + ` FROM habits WHERE is_active AND reminder_time IS NOT NULL AND reminder_time <> ''`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits with reminders: %w", err)
	}
	defer rows.Close()

	var habits []*habit.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *HabitService) UpdateHabit(ctx context.Context, habitID string, userID string, req *habit.UpdateHabitRequest) (*habit.Habit, error) {
	query := `
	UPDATE habits
	SET title = COALESCE($3, title),
		frequency = COALESCE($4, frequency),
		reminder_time = COALESCE($5, reminder_time),
		is_active = COALESCE($6, is_active)
	WHERE id = $1 AND user_id = $2
	RETURNING ` + habitColumns

	h, err := scanHabit(s.db.QueryRow(ctx, query, habitID, userID, req.Title, req.Frequency, req.ReminderTime, req.IsActive))
	if err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		if h.HasReminder() {
			s.scheduler.ScheduleHabitReminder(h)
		} else {
			s.scheduler.CancelHabitReminder(h.ID)
		}
	}

	return h, nil
}

func (s *HabitService) DeleteHabit(ctx context.Context, habitID string, userID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM habits WHERE id = $1 AND user_id = $2`, habitID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrHabitNotFound
	}

	if s.scheduler != nil {
		s.scheduler.CancelHabitReminder(habitID)
	}
	return nil
}

// CompleteHabit advances the streak and stores the previous updated_at as
// a single-level undo buffer for CancelCompletion.
func (s *HabitService) CompleteHabit(ctx context.Context, habitID string, userID string) (*habit.Habit, error) {
	query := `
	UPDATE habits
	SET previous_updated_at = updated_at,
		current_streak = current_streak + 1,
		max_streak = GREATEST(max_streak, current_streak + 1),
		total_completions = total_completions + 1,
		updated_at = NOW()
	WHERE id = $1 AND user_id = $2 AND is_active
	RETURNING ` + habitColumns

	h, err := scanHabit(s.db.QueryRow(ctx, query, habitID, userID))
	if err != nil {
		return nil, err
	}

	if _, err := s.db.Exec(ctx, `UPDATE users SET xp = xp + $2 WHERE id = $1`, userID, h.XPReward); err != nil {
		log.Printf("Failed to award %d xp to user %s: %v", h.XPReward, userID, err)
	}

	return h, nil
}

// CancelCompletion consumes the undo buffer: updated_at is rolled back to
// the stored value and the buffer cleared so only the last completion can
// be undone. The streak decrement has no floor; max_streak is untouched.
func (s *HabitService) CancelCompletion(ctx context.Context, habitID string, userID string) (*habit.Habit, error) {
	query := `
	UPDATE habits
	SET updated_at = previous_updated_at,
		previous_updated_at = NULL,
		current_streak = current_streak - 1,
		total_completions = total_completions - 1
	WHERE id = $1 AND user_id = $2 AND previous_updated_at IS NOT NULL
	RETURNING ` + habitColumns

	h, err := scanHabit(s.db.QueryRow(ctx, query, habitID, userID))
	if err != nil {
		if errors.Is(err, ErrHabitNotFound) {
			return nil, ErrNothingToUndo
		}
		return nil, err
	}

	if _, err := s.db.Exec(ctx, `UPDATE users SET xp = GREATEST(xp - $2, 0) WHERE id = $1`, userID, h.XPReward); err != nil {
		log.Printf("Failed to deduct xp from user %s: %v", userID, err)
	}

	return h, nil
}

// SkipHabitToday records a skip so the reminder send path stays quiet for
// the rest of the day.
func (s *HabitService) SkipHabitToday(ctx context.Context, habitID string, userID string) error {
	query := `
	INSERT INTO habit_skips (habit_id, user_id, skip_date)
	VALUES ($1, $2, CURRENT_DATE)
	ON CONFLICT (habit_id, skip_date) DO NOTHING
	`
	if _, err := s.db.Exec(ctx, query, habitID, userID); err != nil {
		return fmt.Errorf("failed to skip habit: %w", err)
	}
	return nil
}

func (s *HabitService) IsHabitSkippedToday(ctx context.Context, habitID string, userID string) (bool, error) {
	var skipped bool
	query := `SELECT EXISTS (SELECT 1 FROM habit_skips WHERE habit_id = $1 AND user_id = $2 AND skip_date = CURRENT_DATE)`
	if err := s.db.QueryRow(ctx, query, habitID, userID).Scan(&skipped); err != nil {
		return false, fmt.Errorf("failed to check habit skip: %w", err)
	}
	return skipped, nil
}

// StampReminded marks the habit as just-contacted. The same column backs
// the 30-minute dedup window, so a fresh completion also mutes reminders.
func (s *HabitService) StampReminded(ctx context.Context, habitID string, now time.Time) error {
	if _, err := s.db.Exec(ctx, `UPDATE habits SET updated_at = $2 WHERE id = $1`, habitID, now); err != nil {
		return fmt.Errorf("failed to stamp habit reminder: %w", err)
	}
	return nil
}
