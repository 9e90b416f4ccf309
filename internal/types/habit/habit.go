package habit

import "time"

type Frequency string

const (
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
)

type Habit struct {
	ID                string     `json:"id"`
	UserID            string     `json:"userId"`
	Title             string     `json:"title"`
	IsActive          bool       `json:"isActive"`
	Frequency         Frequency  `json:"frequency"`
	ReminderTime      *string    `json:"reminderTime,omitempty"`
	CurrentStreak     int        `json:"currentStreak"`
	MaxStreak         int        `json:"maxStreak"`
	TotalCompletions  int        `json:"totalCompletions"`
	XPReward          int        `json:"xpReward"`
	PreviousUpdatedAt *time.Time `json:"previousUpdatedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	// UpdatedAt doubles as the last completed/reminded marker.
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasReminder reports whether the habit is eligible for a scheduled reminder.
func (h *Habit) HasReminder() bool {
	return h.IsActive && h.ReminderTime != nil && *h.ReminderTime != ""
}

type CreateHabitRequest struct {
	Title        string    `json:"title"`
	Frequency    Frequency `json:"frequency"`
	ReminderTime *string   `json:"reminderTime,omitempty"`
	XPReward     int       `json:"xpReward"`
}

type UpdateHabitRequest struct {
	Title        *string    `json:"title,omitempty"`
	Frequency    *Frequency `json:"frequency,omitempty"`
	ReminderTime *string    `json:"reminderTime,omitempty"`
	IsActive     *bool      `json:"isActive,omitempty"`
}
