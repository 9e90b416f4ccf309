package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tickyai/internal/types/usage"
	"tickyai/internal/types/user"
)

var ErrUserNotFound = errors.New("user not found")

type UserService struct {
	db dbtx
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

const userColumns = `id, telegram_id, username, first_name, timezone, daily_reminders,
	daily_reminders_used, daily_tasks_used, daily_habits_used, daily_ai_queries_used,
	last_usage_reset, subscription_type, is_trial_active, trial_ends, subscription_ends,
	xp, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.FirstName,
		&u.Timezone,
		&u.DailyReminders,
		&u.DailyRemindersUsed,
		&u.DailyTasksUsed,
		&u.DailyHabitsUsed,
		&u.DailyAiQueriesUsed,
		&u.LastUsageReset,
		&u.SubscriptionType,
		&u.IsTrialActive,
		&u.TrialEnds,
		&u.SubscriptionEnds,
		&u.XP,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return u, nil
}

// UpsertUser creates the user on first contact from the bot and refreshes
// the display fields afterwards.
func (s *UserService) UpsertUser(ctx context.Context, req *user.UpsertUserRequest) (*user.User, error) {
	now := time.Now()

	query := `
	INSERT INTO users (id, telegram_id, username, first_name, daily_reminders,
		last_usage_reset, subscription_type, created_at, updated_at)
	VALUES ($1, $2, $3, $4, true, $5, 'FREE', $5, $5)
	ON CONFLICT (telegram_id) DO UPDATE
	SET username = EXCLUDED.username, first_name = EXCLUDED.first_name, updated_at = EXCLUDED.updated_at
	RETURNING ` + userColumns

	row := s.db.QueryRow(ctx, query, uuid.New().String(), req.TelegramID, req.Username, req.FirstName, now)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.db.QueryRow(ctx, query, userID))
}

func (s *UserService) GetUserByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	return scanUser(s.db.QueryRow(ctx, query, telegramID))
}

func (s *UserService) UpdateSettings(ctx context.Context, userID string, req *user.UpdateSettingsRequest) (*user.User, error) {
	if req.Timezone != nil {
		// Reject bad IANA names up front rather than at sweep time.
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", *req.Timezone, err)
		}
	}

	query := `
	UPDATE users
	SET timezone = COALESCE($2, timezone),
		daily_reminders = COALESCE($3, daily_reminders),
		updated_at = NOW()
	WHERE id = $1
	RETURNING ` + userColumns

	return scanUser(s.db.QueryRow(ctx, query, userID, req.Timezone, req.DailyReminders))
}

// StartTrial promotes a FREE user to premium-equivalent limits for the
// given number of days. A second call while a trial is running is a no-op.
func (s *UserService) StartTrial(ctx context.Context, userID string, days int) (*user.User, error) {
	query := `
	UPDATE users
	SET is_trial_active = true, trial_ends = NOW() + make_interval(days => $2), updated_at = NOW()
	WHERE id = $1 AND NOT (is_trial_active AND trial_ends > NOW())
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(ctx, query, userID, days))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// Zero rows matched: either the user does not exist or a
			// trial is already running. Tell the two apart.
			if _, lookupErr := s.GetUserByID(ctx, userID); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, fmt.Errorf("trial already active")
		}
		return nil, err
	}
	return u, nil
}

// ListBroadcastUsers returns users eligible for the timezone-gated sweeps:
// timezone set and at least one active habit or pending task.
func (s *UserService) ListBroadcastUsers(ctx context.Context) ([]*user.User, error) {
	query := `
	SELECT ` + userColumns + `
	FROM users u
	WHERE u.timezone IS NOT NULL
	  AND (EXISTS (SELECT 1 FROM habits h WHERE h.user_id = u.id AND h.is_active)
	       OR EXISTS (SELECT 1 FROM tasks t WHERE t.user_id = u.id AND t.status = 'PENDING'))
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list broadcast users: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetUsageSnapshot reads the quota-relevant slice of the user row.
func (s *UserService) GetUsageSnapshot(ctx context.Context, userID string) (*usage.Snapshot, error) {
	query := `
	SELECT id, daily_reminders_used, daily_tasks_used, daily_habits_used, daily_ai_queries_used,
		last_usage_reset, subscription_type, is_trial_active, trial_ends
	FROM users
	WHERE id = $1
	`

	snap := &usage.Snapshot{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&snap.UserID,
		&snap.DailyRemindersUsed,
		&snap.DailyTasksUsed,
		&snap.DailyHabitsUsed,
		&snap.DailyAiQueriesUsed,
		&snap.LastUsageReset,
		&snap.SubscriptionType,
		&snap.IsTrialActive,
		&snap.TrialEnds,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get usage snapshot: %w", err)
	}
	return snap, nil
}

// ResetDailyCounters zeroes all four counters together and stamps the
// reset time. Counters are never reset individually.
func (s *UserService) ResetDailyCounters(ctx context.Context, userID string, now time.Time) error {
	query := `
	UPDATE users
	SET daily_reminders_used = 0, daily_tasks_used = 0, daily_habits_used = 0,
		daily_ai_queries_used = 0, last_usage_reset = $2
	WHERE id = $1
	`

	if _, err := s.db.Exec(ctx, query, userID, now); err != nil {
		return fmt.Errorf("failed to reset daily counters: %w", err)
	}
	return nil
}

// AdjustCounter applies a relative adjustment to one feature counter.
// Negative deltas are not clamped at zero.
func (s *UserService) AdjustCounter(ctx context.Context, userID string, feature usage.Feature, delta int) error {
	column := usage.Column(feature)
	if column == "" {
		return fmt.Errorf("unknown usage feature %q", feature)
	}

	query := fmt.Sprintf(`UPDATE users SET %s = %s + $2 WHERE id = $1`, column, column)
	if _, err := s.db.Exec(ctx, query, userID, delta); err != nil {
		return fmt.Errorf("failed to adjust %s: %w", column, err)
	}
	return nil
}
