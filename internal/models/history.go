package models

import "time"

// HistoryRecord is one persisted generation owned by a user.
type HistoryRecord struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"-"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	ImageURL  string    `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Items []*HistoryRecord `json:"items"`
}
