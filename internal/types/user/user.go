package user

import "time"

type SubscriptionType string

const (
	SubscriptionFree    SubscriptionType = "FREE"
	SubscriptionPremium SubscriptionType = "PREMIUM"
)

type User struct {
	ID                 string           `json:"id"`
	TelegramID         int64            `json:"telegramId"`
	Username           string           `json:"username"`
	FirstName          string           `json:"firstName"`
	Timezone           *string          `json:"timezone,omitempty"`
	DailyReminders     bool             `json:"dailyReminders"`
	DailyRemindersUsed int              `json:"dailyRemindersUsed"`
	DailyTasksUsed     int              `json:"dailyTasksUsed"`
	DailyHabitsUsed    int              `json:"dailyHabitsUsed"`
	DailyAiQueriesUsed int              `json:"dailyAiQueriesUsed"`
	LastUsageReset     time.Time        `json:"lastUsageReset"`
	SubscriptionType   SubscriptionType `json:"subscriptionType"`
	IsTrialActive      bool             `json:"isTrialActive"`
	TrialEnds          *time.Time       `json:"trialEnds,omitempty"`
	SubscriptionEnds   *time.Time       `json:"subscriptionEnds,omitempty"`
	XP                 int              `json:"xp"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// IsTrialValid reports whether the trial promotion still applies.
func (u *User) IsTrialValid(now time.Time) bool {
	return u.IsTrialActive && u.TrialEnds != nil && now.Before(*u.TrialEnds)
}

type UpsertUserRequest struct {
	TelegramID int64  `json:"telegramId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
}

type UpdateSettingsRequest struct {
	Timezone       *string `json:"timezone,omitempty"`
	DailyReminders *bool   `json:"dailyReminders,omitempty"`
}
