package model

import "time"

// Snapshot is a persisted scrape: the record plus how it was produced.
type Snapshot struct {
	ID        string    `json:"id"`
	Record    Record    `json:"record"`
	Report    *Report   `json:"report,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
