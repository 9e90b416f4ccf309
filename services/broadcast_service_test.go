package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tickyai/internal/types/habit"
	"tickyai/internal/types/reminder"
	"tickyai/internal/types/task"
	"tickyai/internal/types/user"
)

type fakeBroadcastUserStore struct {
	users []*user.User
}

func (f *fakeBroadcastUserStore) ListBroadcastUsers(_ context.Context) ([]*user.User, error) {
	return f.users, nil
}

func (f *fakeBroadcastUserStore) GetUserByID(_ context.Context, userID string) (*user.User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

type fakeBroadcastHabitLister struct {
	habits []*habit.Habit
}

func (f *fakeBroadcastHabitLister) ListActiveHabits(_ context.Context, _ string) ([]*habit.Habit, error) {
	return f.habits, nil
}

type fakeBroadcastTaskStore struct {
	pending   []*task.Task
	completed int
	total     int
}

func (f *fakeBroadcastTaskStore) ListPendingTasks(_ context.Context, _ string) ([]*task.Task, error) {
	return f.pending, nil
}

func (f *fakeBroadcastTaskStore) CountTasks(_ context.Context, _ string) (int, int, error) {
	return f.completed, f.total, nil
}

type fakeDueReminderStore struct {
	due       []*reminder.Reminder
	completed []string
}

func (f *fakeDueReminderStore) ListDueReminders(_ context.Context, _ time.Time) ([]*reminder.Reminder, error) {
	return f.due, nil
}

func (f *fakeDueReminderStore) MarkReminderCompleted(_ context.Context, reminderID string) error {
	f.completed = append(f.completed, reminderID)
	return nil
}

type fakeTextGenerator struct {
	text    string
	err     error
	prompts []string
}

func (f *fakeTextGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func utcUser(id string) *user.User {
	tz := "UTC"
	return &user.User{ID: id, TelegramID: 100, FirstName: "Alex", Timezone: &tz, DailyReminders: true}
}

type broadcastFixture struct {
	users     *fakeBroadcastUserStore
	habits    *fakeBroadcastHabitLister
	tasks     *fakeBroadcastTaskStore
	reminders *fakeDueReminderStore
	ai        *fakeTextGenerator
	sender    *fakeSender
	svc       *BroadcastService
}

func newBroadcastFixture(now time.Time, users ...*user.User) *broadcastFixture {
	f := &broadcastFixture{
		users:     &fakeBroadcastUserStore{users: users},
		habits:    &fakeBroadcastHabitLister{},
		tasks:     &fakeBroadcastTaskStore{},
		reminders: &fakeDueReminderStore{},
		ai:        &fakeTextGenerator{text: "Have a great day!"},
		sender:    &fakeSender{},
	}
	f.svc = NewBroadcastService(f.users, f.habits, f.tasks, f.reminders, f.ai, f.sender)
	f.svc.now = func() time.Time { return now }
	return f
}

func TestInOccasionWindow(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want bool
	}{
		{"start of window", time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC), 9, true},
		{"inside window", time.Date(2026, 3, 10, 9, 7, 0, 0, time.UTC), 9, true},
		{"last minute of window", time.Date(2026, 3, 10, 9, 9, 59, 0, time.UTC), 9, true},
		{"just past window", time.Date(2026, 3, 10, 9, 10, 0, 0, time.UTC), 9, false},
		{"well past window", time.Date(2026, 3, 10, 9, 13, 0, 0, time.UTC), 9, false},
		{"hour before", time.Date(2026, 3, 10, 8, 59, 0, 0, time.UTC), 9, false},
		{"evening window", time.Date(2026, 3, 10, 21, 5, 0, 0, time.UTC), 21, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inOccasionWindow(tt.now, time.UTC, tt.hour); got != tt.want {
				t.Errorf("inOccasionWindow(%v, UTC, %d) = %v, want %v", tt.now, tt.hour, got, tt.want)
			}
		})
	}
}

func TestCompletedToday(t *testing.T) {
	now := time.Date(2026, 3, 10, 21, 5, 0, 0, time.UTC)

	if !completedToday(time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC), now, time.UTC) {
		t.Error("same calendar day must count as today")
	}
	if completedToday(time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC), now, time.UTC) {
		t.Error("yesterday must not count as today")
	}
}

func TestCompletionPercent(t *testing.T) {
	if got := completionPercent(0, 0); got != 0 {
		t.Errorf("completionPercent(0, 0) = %d, want 0", got)
	}
	if got := completionPercent(1, 2); got != 50 {
		t.Errorf("completionPercent(1, 2) = %d, want 50", got)
	}
	if got := completionPercent(3, 3); got != 100 {
		t.Errorf("completionPercent(3, 3) = %d, want 100", got)
	}
}

func TestMorningSweepRespectsWindow(t *testing.T) {
	t.Run("inside window sends", func(t *testing.T) {
		f := newBroadcastFixture(time.Date(2026, 3, 10, 9, 7, 0, 0, time.UTC), utcUser("u1"))
		f.svc.RunMorningSweep(context.Background())
		if len(f.sender.sent) != 1 {
			t.Errorf("sent %d messages at 09:07 local, want 1", len(f.sender.sent))
		}
	})

	t.Run("outside window stays silent", func(t *testing.T) {
		f := newBroadcastFixture(time.Date(2026, 3, 10, 9, 13, 0, 0, time.UTC), utcUser("u1"))
		f.svc.RunMorningSweep(context.Background())
		if len(f.sender.sent) != 0 {
			t.Errorf("sent %d messages at 09:13 local, want 0", len(f.sender.sent))
		}
	})

	t.Run("no timezone stays silent", func(t *testing.T) {
		u := utcUser("u1")
		u.Timezone = nil
		f := newBroadcastFixture(time.Date(2026, 3, 10, 9, 7, 0, 0, time.UTC), u)
		f.svc.RunMorningSweep(context.Background())
		if len(f.sender.sent) != 0 {
			t.Error("user without a timezone must never receive broadcasts")
		}
	})
}

func TestMorningSweepFallbackOnAIError(t *testing.T) {
	f := newBroadcastFixture(time.Date(2026, 3, 10, 9, 2, 0, 0, time.UTC), utcUser("u1"))
	f.ai.err = errors.New("model overloaded")
	f.habits.habits = []*habit.Habit{{ID: "h1", Title: "Run", UpdatedAt: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)}}
	f.tasks.pending = []*task.Task{{ID: "t1", Title: "Ship report"}, {ID: "t2", Title: "Call mom"}}

	f.svc.RunMorningSweep(context.Background())

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sender.sent))
	}
	text := f.sender.sent[0].text
	if !strings.Contains(text, "1 habits") || !strings.Contains(text, "2 tasks") {
		t.Errorf("fallback message %q is missing the plan counts", text)
	}
}

func TestEveningSweepRecapRatios(t *testing.T) {
	now := time.Date(2026, 3, 10, 21, 3, 0, 0, time.UTC)
	f := newBroadcastFixture(now, utcUser("u1"))
	f.ai.err = errors.New("model overloaded")
	f.tasks.completed = 1
	f.tasks.total = 2
	f.habits.habits = []*habit.Habit{
		{ID: "h1", Title: "Run", UpdatedAt: now.Add(-2 * time.Hour)},              // today
		{ID: "h2", Title: "Read", UpdatedAt: now.Add(-30 * time.Hour)},            // yesterday
		{ID: "h3", Title: "Meditate", UpdatedAt: time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)}, // today
	}

	f.svc.RunEveningSweep(context.Background())

	if len(f.sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.sender.sent))
	}
	text := f.sender.sent[0].text
	if !strings.Contains(text, "50% of tasks") {
		t.Errorf("recap %q is missing the task ratio", text)
	}
	if !strings.Contains(text, "66% of habits") {
		t.Errorf("recap %q is missing the habit ratio", text)
	}
}

func TestRunReminderSweep(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 2, 0, 0, time.UTC)

	t.Run("delivered and completed", func(t *testing.T) {
		f := newBroadcastFixture(now, utcUser("u1"))
		f.reminders.due = []*reminder.Reminder{{ID: "r1", UserID: "u1", Message: "Call the dentist"}}

		f.svc.RunReminderSweep(context.Background())

		if len(f.sender.sent) != 1 || !strings.Contains(f.sender.sent[0].text, "Call the dentist") {
			t.Fatalf("sent = %v, want the reminder text delivered once", f.sender.sent)
		}
		if len(f.reminders.completed) != 1 || f.reminders.completed[0] != "r1" {
			t.Errorf("completed = %v, want [r1]", f.reminders.completed)
		}
	})

	t.Run("delivery failure leaves reminder pending", func(t *testing.T) {
		f := newBroadcastFixture(now, utcUser("u1"))
		f.sender.err = errors.New("telegram unreachable")
		f.reminders.due = []*reminder.Reminder{{ID: "r1", UserID: "u1", Message: "Call the dentist"}}

		f.svc.RunReminderSweep(context.Background())

		if len(f.reminders.completed) != 0 {
			t.Error("undelivered reminder must stay ACTIVE for the next sweep")
		}
	})
}
