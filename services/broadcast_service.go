package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"tickyai/internal/metrics"
	"tickyai/internal/telegram"
	"tickyai/internal/types/habit"
	"tickyai/internal/types/reminder"
	"tickyai/internal/types/task"
	"tickyai/internal/types/user"
)

// occasionWindowMinutes is the acceptance window at the top of the target
// hour. A 10-minute window with a 30-minute sweep period catches each
// occasion once per day under normal jitter.
const occasionWindowMinutes = 10

const (
	morningHour = 9
	eveningHour = 21
)

type broadcastUserStore interface {
	ListBroadcastUsers(ctx context.Context) ([]*user.User, error)
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
}

type broadcastHabitLister interface {
	ListActiveHabits(ctx context.Context, userID string) ([]*habit.Habit, error)
}

type broadcastTaskStore interface {
	ListPendingTasks(ctx context.Context, userID string) ([]*task.Task, error)
	CountTasks(ctx context.Context, userID string) (completed int, total int, err error)
}

type dueReminderStore interface {
	ListDueReminders(ctx context.Context, now time.Time) ([]*reminder.Reminder, error)
	MarkReminderCompleted(ctx context.Context, reminderID string) error
}

// TextGenerator is the AI collaborator. Implemented by ai.OpenAIClient.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// BroadcastService runs the timezone-gated daily sweeps. One shared timer
// plus a narrow local-time window replaces a cron job per (user, occasion)
// pair and survives DST shifts without re-registering anything.
type BroadcastService struct {
	users     broadcastUserStore
	habits    broadcastHabitLister
	tasks     broadcastTaskStore
	reminders dueReminderStore
	ai        TextGenerator
	sender    MessageSender
	now       func() time.Time
}

func NewBroadcastService(users broadcastUserStore, habits broadcastHabitLister, tasks broadcastTaskStore, reminders dueReminderStore, ai TextGenerator, sender MessageSender) *BroadcastService {
	return &BroadcastService{
		users:     users,
		habits:    habits,
		tasks:     tasks,
		reminders: reminders,
		ai:        ai,
		sender:    sender,
		now:       time.Now,
	}
}

// inOccasionWindow reports whether now, seen from loc, sits inside the
// acceptance window of the given hour.
func inOccasionWindow(now time.Time, loc *time.Location, hour int) bool {
	local := now.In(loc)
	return local.Hour() == hour && local.Minute() < occasionWindowMinutes
}

// completedToday compares calendar date components in the user's zone.
func completedToday(updatedAt time.Time, now time.Time, loc *time.Location) bool {
	y1, m1, d1 := updatedAt.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func completionPercent(completed, total int) int {
	if total == 0 {
		return 0
	}
	return completed * 100 / total
}

var broadcastKeyboard = [][]telegram.Button{
	{
		{Text: "📋 My tasks", Data: "show_tasks"},
		{Text: "📈 My habits", Data: "show_habits"},
	},
}

// RunMorningSweep delivers the morning summary to every user whose local
// wall clock is inside the 09:00 window. Per-user failures are logged and
// never abort the sweep.
func (s *BroadcastService) RunMorningSweep(ctx context.Context) {
	s.runSweep(ctx, "broadcast_morning", morningHour, s.sendMorningMessage)
}

// RunEveningSweep delivers the evening recap inside the 21:00 window.
func (s *BroadcastService) RunEveningSweep(ctx context.Context) {
	s.runSweep(ctx, "broadcast_evening", eveningHour, s.sendEveningMessage)
}

func (s *BroadcastService) runSweep(ctx context.Context, job string, hour int, send func(ctx context.Context, u *user.User, loc *time.Location) error) {
	users, err := s.users.ListBroadcastUsers(ctx)
	if err != nil {
		log.Printf("Sweep %s: failed to list users: %v", job, err)
		return
	}

	now := s.now()
	for _, u := range users {
		if u.Timezone == nil {
			metrics.RecordSweepItem(job, metrics.OutcomeSkip)
			continue
		}
		loc, err := time.LoadLocation(*u.Timezone)
		if err != nil {
			log.Printf("Sweep %s: user %s has invalid timezone %q: %v", job, u.ID, *u.Timezone, err)
			metrics.RecordSweepItem(job, metrics.OutcomeError)
			continue
		}
		if !inOccasionWindow(now, loc, hour) {
			metrics.RecordSweepItem(job, metrics.OutcomeSkip)
			continue
		}

		if err := send(ctx, u, loc); err != nil {
			log.Printf("Sweep %s: user %s failed: %v", job, u.ID, err)
			metrics.RecordSweepItem(job, metrics.OutcomeError)
			continue
		}
		metrics.RecordSweepItem(job, metrics.OutcomeSuccess)
	}
}

func (s *BroadcastService) sendMorningMessage(ctx context.Context, u *user.User, _ *time.Location) error {
	habits, err := s.habits.ListActiveHabits(ctx, u.ID)
	if err != nil {
		return err
	}
	pending, err := s.tasks.ListPendingTasks(ctx, u.ID)
	if err != nil {
		return err
	}

	var summary strings.Builder
	for _, h := range habits {
		fmt.Fprintf(&summary, "- habit: %s (streak %d)\n", h.Title, h.CurrentStreak)
	}
	for _, t := range pending {
		fmt.Fprintf(&summary, "- task: %s\n", t.Title)
	}

	prompt := fmt.Sprintf(
		"You are a friendly productivity coach. Write a short motivating good-morning message for %s. Today's plan:\n%sKeep it under 60 words, no lists.",
		u.FirstName, summary.String(),
	)

	text, err := s.ai.GenerateText(ctx, prompt)
	if err != nil {
		log.Printf("Morning AI generation failed for user %s: %v", u.ID, err)
		text = fmt.Sprintf("🌅 Good morning, %s! You have %d habits and %d tasks on deck today. Small steps count.", u.FirstName, len(habits), len(pending))
	}

	return s.sender.SendMessage(u.TelegramID, text, &telegram.SendOptions{Markdown: true, Keyboard: broadcastKeyboard})
}

func (s *BroadcastService) sendEveningMessage(ctx context.Context, u *user.User, loc *time.Location) error {
	habits, err := s.habits.ListActiveHabits(ctx, u.ID)
	if err != nil {
		return err
	}
	completedTasks, allTasks, err := s.tasks.CountTasks(ctx, u.ID)
	if err != nil {
		return err
	}

	now := s.now()
	completedHabits := 0
	for _, h := range habits {
		if completedToday(h.UpdatedAt, now, loc) {
			completedHabits++
		}
	}

	taskPercent := completionPercent(completedTasks, allTasks)
	habitPercent := completionPercent(completedHabits, len(habits))

	prompt := fmt.Sprintf(
		"You are a friendly productivity coach. Write a short good-evening recap for %s. Today they finished %d%% of tasks (%d of %d) and %d%% of habits (%d of %d). Be encouraging either way, under 60 words.",
		u.FirstName, taskPercent, completedTasks, allTasks, habitPercent, completedHabits, len(habits),
	)

	text, err := s.ai.GenerateText(ctx, prompt)
	if err != nil {
		log.Printf("Evening AI generation failed for user %s: %v", u.ID, err)
		text = fmt.Sprintf("🌙 Evening check-in: %d%% of tasks and %d%% of habits done today. Rest well, %s!", taskPercent, habitPercent, u.FirstName)
	}

	return s.sender.SendMessage(u.TelegramID, text, &telegram.SendOptions{Markdown: true, Keyboard: broadcastKeyboard})
}

// RunReminderSweep delivers one-off reminders whose time has come and
// moves them to COMPLETED. DISMISSED rows are terminal and never touched.
// Runs on every broadcast tick, independent of the occasion windows.
func (s *BroadcastService) RunReminderSweep(ctx context.Context) {
	due, err := s.reminders.ListDueReminders(ctx, s.now())
	if err != nil {
		log.Printf("Reminder sweep: failed to list due reminders: %v", err)
		return
	}

	for _, r := range due {
		u, err := s.users.GetUserByID(ctx, r.UserID)
		if err != nil {
			log.Printf("Reminder %s: owner lookup failed: %v", r.ID, err)
			metrics.RecordSweepItem("reminders", metrics.OutcomeError)
			continue
		}

		if err := s.sender.SendMessage(u.TelegramID, "🔔 "+r.Message, nil); err != nil {
			log.Printf("Reminder %s: delivery failed: %v", r.ID, err)
			metrics.RecordSweepItem("reminders", metrics.OutcomeError)
			continue
		}

		if err := s.reminders.MarkReminderCompleted(ctx, r.ID); err != nil {
			log.Printf("Reminder %s: failed to mark completed: %v", r.ID, err)
			metrics.RecordSweepItem("reminders", metrics.OutcomeError)
			continue
		}
		metrics.RecordSweepItem("reminders", metrics.OutcomeSuccess)
	}
}
