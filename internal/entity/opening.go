package entity

import (
	"time"

	"github.com/google/uuid"
)

// Opening is one recorded drop result for data transfer between layers.
type Opening struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	Category  string    `json:"category"`
	RawText   string    `json:"raw_text"`
	Item      string    `json:"item"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
