package usecase

import (
	"context"
	"time"

	"github.com/teknolab/repute/internal/domain"
)

// LedgerRepository defines the transactional write path and the day-sum
// read path of the action ledger.
type LedgerRepository interface {
	// Record persists entry after running the kind's uniqueness checks and
	// clipping entry.RawValue against the caps, all as one atomic unit per
	// target user. Concurrent calls for the same target serialize; failed
	// checks leave no writes. Transient serialization failures surface as
	// domain.ErrConflict.
	Record(ctx context.Context, kind domain.ActionKind, entry domain.LedgerEntry, asOf time.Time) (domain.LedgerEntry, error)

	// DailySum returns the applied sum over the user's entries within the
	// calendar day containing asOf. Advisory read, weaker isolation is fine.
	DailySum(ctx context.Context, user string, asOf time.Time) (int, error)
}

// ReputationRepository defines persistence for the per-user aggregate.
type ReputationRepository interface {
	// GetOrCreate materializes the aggregate at the base score when absent.
	GetOrCreate(ctx context.Context, user string) (domain.Reputation, error)

	// SetScore overwrites the aggregate directly, bypassing the ledger.
	SetScore(ctx context.Context, user string, score int) error
}

// PermissionRepository defines persistence for capability gates.
type PermissionRepository interface {
	// Get returns domain.ErrNotFound when no rule carries that name.
	Get(ctx context.Context, name string) (domain.PermissionRule, error)
	Upsert(ctx context.Context, rule domain.PermissionRule) error
	List(ctx context.Context) ([]domain.PermissionRule, error)
}

// EventPublisher fans out reputation change notifications.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.ReputationEvent) error
}
