package reminder

import "time"

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
	StatusDismissed Status = "DISMISSED"
)

// Reminder is a one-off scheduled message. COMPLETED and DISMISSED are
// terminal: the broadcast sweep only transitions ACTIVE rows.
type Reminder struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	Message       string    `json:"message"`
	ScheduledTime time.Time `json:"scheduledTime"`
	Status        Status    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

type CreateReminderRequest struct {
	Message       string    `json:"message"`
	ScheduledTime time.Time `json:"scheduledTime"`
}
