package domain

import "time"

// ActionKind describes one category of scorable action. Kinds are loaded
// from configuration at startup and are immutable afterwards.
type ActionKind struct {
	ID              string
	PointValue      int
	UniquePerActor  bool
	UniquePerTarget bool
	Description     string
}

// ObjectRef is an opaque reference to the subject of an action, e.g. the
// post that was voted on. The core never dereferences it.
type ObjectRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// LedgerEntry is one immutable record of a scoring event. AppliedValue is
// fixed at write time by the daily accrual limiter and never changes.
type LedgerEntry struct {
	ID              int64     `json:"id"`
	TargetUser      string    `json:"targetUser"`
	OriginatingUser string    `json:"originatingUser"`
	Kind            string    `json:"kind"`
	Object          ObjectRef `json:"object"`
	RawValue        int       `json:"rawValue"`
	AppliedValue    int       `json:"appliedValue"`
	CreatedAt       time.Time `json:"createdAt"`
}
