package domain

import "time"

// Event types carried by ReputationEvent.
const (
	EventTypeAction   = "action"
	EventTypeOverride = "override"
)

// ReputationEvent notifies listeners that a user's reputation changed. It
// is published best-effort after the change is committed.
type ReputationEvent struct {
	Type  string    `json:"type"`
	User  string    `json:"user"`
	Kind  string    `json:"kind,omitempty"`
	Delta int       `json:"delta,omitempty"`
	Score int       `json:"score,omitempty"`
	At    time.Time `json:"at"`
}
