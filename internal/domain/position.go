package domain

import "time"

// LivePosition is the most recent driver position reported by the client.
// No history is kept; each update replaces the previous value.
type LivePosition struct {
	Coordinates Coordinates `json:"coordinates"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
