package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tickyai/internal/telegram"
	"tickyai/internal/types/habit"
	"tickyai/internal/types/user"
)

type fakeHabitReminderStore struct {
	habit      *habit.Habit
	skipped    bool
	skipChecks int
	stamps     []time.Time
}

func (f *fakeHabitReminderStore) GetHabitByID(_ context.Context, _ string) (*habit.Habit, error) {
	if f.habit == nil {
		return nil, ErrHabitNotFound
	}
	return f.habit, nil
}

func (f *fakeHabitReminderStore) IsHabitSkippedToday(_ context.Context, _ string, _ string) (bool, error) {
	f.skipChecks++
	return f.skipped, nil
}

func (f *fakeHabitReminderStore) StampReminded(_ context.Context, _ string, now time.Time) error {
	f.stamps = append(f.stamps, now)
	return nil
}

type fakeReminderUserStore struct {
	user *user.User
}

func (f *fakeReminderUserStore) GetUserByID(_ context.Context, _ string) (*user.User, error) {
	if f.user == nil {
		return nil, ErrUserNotFound
	}
	return f.user, nil
}

type sentMessage struct {
	chatID int64
	text   string
	opts   *telegram.SendOptions
}

type fakeSender struct {
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(chatID int64, text string, opts *telegram.SendOptions) error {
	f.sent = append(f.sent, sentMessage{chatID, text, opts})
	return f.err
}

func newReminderFixture(now time.Time) (*fakeHabitReminderStore, *fakeReminderUserStore, *fakeSender, *NotificationService) {
	habits := &fakeHabitReminderStore{
		habit: &habit.Habit{
			ID:        "h1",
			UserID:    "u1",
			Title:     "Morning run",
			IsActive:  true,
			UpdatedAt: now.Add(-2 * time.Hour),
		},
	}
	users := &fakeReminderUserStore{
		user: &user.User{ID: "u1", TelegramID: 42, DailyReminders: true},
	}
	sender := &fakeSender{}
	svc := NewNotificationService(habits, users, sender)
	svc.now = func() time.Time { return now }
	return habits, users, sender, svc
}

func TestSendHabitReminderDelivers(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	habits, _, sender, svc := newReminderFixture(now)

	svc.SendHabitReminder(context.Background(), "h1")

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	if sender.sent[0].chatID != 42 {
		t.Errorf("chatID = %d, want 42", sender.sent[0].chatID)
	}
	if !strings.Contains(sender.sent[0].text, "Morning run") {
		t.Errorf("message %q does not mention the habit title", sender.sent[0].text)
	}
	if sender.sent[0].opts == nil || len(sender.sent[0].opts.Keyboard) == 0 {
		t.Error("reminder is missing the action keyboard")
	}
	if len(habits.stamps) != 1 || !habits.stamps[0].Equal(now) {
		t.Errorf("stamps = %v, want one stamp at %v", habits.stamps, now)
	}
}

func TestSendHabitReminderDedupWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("recent contact suppresses", func(t *testing.T) {
		habits, _, sender, svc := newReminderFixture(now)
		habits.habit.UpdatedAt = now.Add(-10 * time.Minute)

		svc.SendHabitReminder(context.Background(), "h1")

		if len(sender.sent) != 0 {
			t.Error("reminder inside the dedup window must not be sent")
		}
		if len(habits.stamps) != 0 {
			t.Error("suppressed reminder must not re-stamp the habit")
		}
	})

	t.Run("exactly at the window boundary sends", func(t *testing.T) {
		habits, _, sender, svc := newReminderFixture(now)
		habits.habit.UpdatedAt = now.Add(-30 * time.Minute)

		svc.SendHabitReminder(context.Background(), "h1")

		if len(sender.sent) != 1 {
			t.Errorf("sent %d messages, want 1", len(sender.sent))
		}
	})
}

func TestSendHabitReminderOptOut(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	habits, users, sender, svc := newReminderFixture(now)
	users.user.DailyReminders = false

	svc.SendHabitReminder(context.Background(), "h1")

	if len(sender.sent) != 0 || len(habits.stamps) != 0 {
		t.Error("opted-out user must get nothing and nothing must be mutated")
	}
	if habits.skipChecks != 0 {
		t.Error("opt-out must short-circuit before the skip check")
	}
}

func TestSendHabitReminderSkippedToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	habits, _, sender, svc := newReminderFixture(now)
	habits.skipped = true

	svc.SendHabitReminder(context.Background(), "h1")

	if len(sender.sent) != 0 || len(habits.stamps) != 0 {
		t.Error("skipped habit must get nothing and nothing must be mutated")
	}
}

func TestSendHabitReminderStampsOnDeliveryFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	habits, _, sender, svc := newReminderFixture(now)
	sender.err = errors.New("telegram unreachable")

	svc.SendHabitReminder(context.Background(), "h1")

	if len(habits.stamps) != 1 {
		t.Fatalf("stamps = %d, want 1 even when delivery fails", len(habits.stamps))
	}
}

func TestHabitReminderTextKeywords(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Пить воду", "💧"},
		{"Drink water", "💧"},
		{"Спорт утром", "🏃"},
		{"Meditation", "🧘"},
		{"Practice guitar", "⏰"},
	}
	for _, tt := range tests {
		got := habitReminderText(tt.title)
		if !strings.Contains(got, tt.want) {
			t.Errorf("habitReminderText(%q) = %q, want it to contain %q", tt.title, got, tt.want)
		}
		if !strings.Contains(got, tt.title) {
			t.Errorf("habitReminderText(%q) = %q, want it to contain the title", tt.title, got)
		}
	}
}
