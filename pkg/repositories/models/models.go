package models

import (
	"time"

	"github.com/google/uuid"
)

// Preferences are the locally saved player settings sent as avatar-data
// when joining a session.
type Preferences struct {
	Profile   string    `json:"profile"`
	PlayerID  uuid.UUID `json:"player_id"`
	Nick      string    `json:"nick"`
	Colors    []string  `json:"colors"`
	UpdatedAt time.Time `json:"updated_at"`
}
