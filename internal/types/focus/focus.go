package focus

import "time"

type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	TaskID          *string    `json:"taskId,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	StartedAt       time.Time  `json:"startedAt"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	Completed       bool       `json:"completed"`
}

type StartSessionRequest struct {
	TaskID          *string `json:"taskId,omitempty"`
	DurationMinutes int     `json:"durationMinutes"`
}
