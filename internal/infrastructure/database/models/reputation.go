package models

import (
	"time"
)

// LedgerEntry rows are append-only; nothing updates or deletes them during
// normal operation.
type LedgerEntry struct {
	ID              int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	TargetUser      string    `json:"targetUser" gorm:"type:text;not null;index:idx_ledger_target_day,priority:1;index:idx_ledger_target_kind,priority:1"`
	OriginatingUser string    `json:"originatingUser" gorm:"type:text;not null"`
	Kind            string    `json:"kind" gorm:"type:text;not null;index:idx_ledger_target_kind,priority:2"`
	ObjectType      string    `json:"objectType" gorm:"type:text"`
	ObjectID        string    `json:"objectID" gorm:"type:text"`
	RawValue        int       `json:"rawValue" gorm:"not null"`
	AppliedValue    int       `json:"appliedValue" gorm:"not null"`
	CreatedAt       time.Time `json:"createdAt" gorm:"type:timestamp with time zone;not null;index:idx_ledger_target_day,priority:2"`
}

type Reputation struct {
	UserID string    `json:"user" gorm:"primaryKey;type:text"`
	Score  int       `json:"score" gorm:"not null"`
	CDate  time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate  time.Time `json:"mdate" gorm:"autoUpdateTime"`
}

type PermissionRule struct {
	Name               string `json:"name" gorm:"primaryKey;type:text"`
	Description        string `json:"description" gorm:"type:text"`
	RequiredReputation int    `json:"requiredReputation" gorm:"not null"`
}
