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
	"tickyai/internal/types/user"
)

// dedupWindow is the trailing window inside which a habit is considered
// already contacted. updated_at is a fused last-completed/last-reminded
// marker, so a fresh completion also suppresses the reminder.
const dedupWindow = 30 * time.Minute

// MessageSender delivers chat messages. Implemented by telegram.Gateway.
type MessageSender interface {
	SendMessage(chatID int64, text string, opts *telegram.SendOptions) error
}

type habitReminderStore interface {
	GetHabitByID(ctx context.Context, habitID string) (*habit.Habit, error)
	IsHabitSkippedToday(ctx context.Context, habitID string, userID string) (bool, error)
	StampReminded(ctx context.Context, habitID string, now time.Time) error
}

type reminderUserStore interface {
	GetUserByID(ctx context.Context, userID string) (*user.User, error)
}

// NotificationService owns the dedup-guarded habit reminder send path.
type NotificationService struct {
	habits habitReminderStore
	users  reminderUserStore
	sender MessageSender
	now    func() time.Time
}

func NewNotificationService(habits habitReminderStore, users reminderUserStore, sender MessageSender) *NotificationService {
	return &NotificationService{
		habits: habits,
		users:  users,
		sender: sender,
		now:    time.Now,
	}
}

// Canned phrasings looked up by title keyword. The generic template is the
// fallback for everything else.
var habitReminderPhrases = []struct {
	keyword string
	text    string
}{
	{"вод", "💧 Время выпить стакан воды! Привычка «%s» ждёт."},
	{"water", "💧 Time for a glass of water! \"%s\" is waiting."},
	{"спорт", "🏃 Пора размяться! Не забудь про «%s»."},
	{"workout", "🏃 Time to move! Don't forget \"%s\"."},
	{"чтение", "📚 Минутка для себя: «%s»."},
	{"read", "📚 A moment for yourself: \"%s\"."},
	{"медитац", "🧘 Пара спокойных минут: «%s»."},
	{"meditat", "🧘 A couple of calm minutes: \"%s\"."},
}

func habitReminderText(title string) string {
	lower := strings.ToLower(title)
	for _, p := range habitReminderPhrases {
		if strings.Contains(lower, p.keyword) {
			return fmt.Sprintf(p.text, title)
		}
	}
	return fmt.Sprintf("⏰ Reminder: time for your habit \"%s\"!", title)
}

func habitActionKeyboard(habitID string) [][]telegram.Button {
	return [][]telegram.Button{
		{
			{Text: "✅ Done", Data: "habit_done:" + habitID},
			{Text: "⏭ Skip today", Data: "habit_skip:" + habitID},
		},
	}
}

// SendHabitReminder fires one scheduled habit reminder. Preconditions are
// checked in order and the first failure aborts with nothing sent and
// nothing mutated. On the send path the updated_at stamp is applied
// regardless of delivery outcome.
func (s *NotificationService) SendHabitReminder(ctx context.Context, habitID string) {
	h, err := s.habits.GetHabitByID(ctx, habitID)
	if err != nil {
		log.Printf("Habit reminder %s: habit lookup failed: %v", habitID, err)
		return
	}

	u, err := s.users.GetUserByID(ctx, h.UserID)
	if err != nil {
		log.Printf("Habit reminder %s: owner %s not found: %v", habitID, h.UserID, err)
		return
	}

	if !u.DailyReminders {
		return
	}

	skipped, err := s.habits.IsHabitSkippedToday(ctx, h.ID, u.ID)
	if err != nil {
		log.Printf("Habit reminder %s: skip check failed: %v", habitID, err)
		return
	}
	if skipped {
		return
	}

	now := s.now()
	if now.Sub(h.UpdatedAt) < dedupWindow {
		return
	}

	opts := &telegram.SendOptions{Markdown: true, Keyboard: habitActionKeyboard(h.ID)}
	if err := s.sender.SendMessage(u.TelegramID, habitReminderText(h.Title), opts); err != nil {
		log.Printf("Habit reminder %s: delivery failed: %v", habitID, err)
	} else {
		metrics.RecordHabitReminderSent()
	}

	// The stamp is unconditional; a delivery failure does not roll it back.
	if err := s.habits.StampReminded(ctx, h.ID, now); err != nil {
		log.Printf("Habit reminder %s: failed to stamp: %v", habitID, err)
	}
}
