package mood

import "time"

type Entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"` // 1..5
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type CreateEntryRequest struct {
	Rating int    `json:"rating"`
	Note   string `json:"note,omitempty"`
}
