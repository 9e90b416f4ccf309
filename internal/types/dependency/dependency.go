package dependency

import "time"

type Type string

const (
	TypeSmoking     Type = "SMOKING"
	TypeAlcohol     Type = "ALCOHOL"
	TypeDrugs       Type = "DRUGS"
	TypeGaming      Type = "GAMING"
	TypeSocialMedia Type = "SOCIAL_MEDIA"
)

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusStopped Status = "STOPPED"
)

// Session is a dependency-support record. Once STOPPED it must never
// receive further scheduled messages, even if a sweep already picked it up.
type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Type            Type       `json:"type"`
	Status          Status     `json:"status"`
	LastMorningSent *time.Time `json:"lastMorningSent,omitempty"`
	TotalPromises   int        `json:"totalPromises"`
	StartedAt       time.Time  `json:"startedAt"`
	StoppedAt       *time.Time `json:"stoppedAt,omitempty"`
}

type StartSessionRequest struct {
	Type Type `json:"type"`
}
