package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teknolab/repute/internal/domain"
)

var tracer = otel.Tracer("usecase")

// How many times a Record call is retried after a concurrent update
// conflict before the failure is surfaced.
const maxRecordRetries = 3

// RecordInput is a candidate reputation-changing event.
type RecordInput struct {
	Actor  string
	Target string
	Kind   string
	Object domain.ObjectRef

	// Value overrides the kind's point value when handlers score the same
	// kind differently, e.g. up-vote vs down-vote.
	Value *int
}

// LedgerUsecase is the ledger write path: it resolves the action kind,
// delegates the atomic write to the repository, and announces the result.
type LedgerUsecase struct {
	catalog       *Catalog
	repo          LedgerRepository
	signal        EventPublisher
	caps          domain.Caps
	now           func() time.Time
	retryInterval time.Duration
}

func NewLedgerUsecase(catalog *Catalog, repo LedgerRepository, signal EventPublisher, caps domain.Caps) *LedgerUsecase {
	return &LedgerUsecase{
		catalog:       catalog,
		repo:          repo,
		signal:        signal,
		caps:          caps,
		now:           time.Now,
		retryInterval: 100 * time.Millisecond,
	}
}

// Record applies a candidate action to the target's reputation. It fails
// with domain.ErrUnknownAction or domain.ErrDuplicateAction without writing
// anything, and retries transient conflicts with exponential backoff.
func (uc *LedgerUsecase) Record(ctx context.Context, input RecordInput) (domain.LedgerEntry, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("target", input.Target),
		attribute.String("kind", input.Kind),
	)

	kind, err := uc.catalog.Resolve(input.Kind)
	if err != nil {
		span.RecordError(err)
		return domain.LedgerEntry{}, err
	}

	raw := kind.PointValue
	if input.Value != nil {
		raw = *input.Value
	}

	candidate := domain.LedgerEntry{
		TargetUser:      input.Target,
		OriginatingUser: input.Actor,
		Kind:            kind.ID,
		Object:          input.Object,
		RawValue:        raw,
	}

	var recorded domain.LedgerEntry
	operation := func() error {
		var opErr error
		recorded, opErr = uc.repo.Record(ctx, kind, candidate, uc.now())
		if opErr != nil && !errors.Is(opErr, domain.ErrConflict) {
			return backoff.Permanent(opErr)
		}
		return opErr
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = uc.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, maxRecordRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		span.RecordError(err)
		return domain.LedgerEntry{}, err
	}

	uc.announce(ctx, domain.ReputationEvent{
		Type:  domain.EventTypeAction,
		User:  recorded.TargetUser,
		Kind:  recorded.Kind,
		Delta: recorded.AppliedValue,
		At:    recorded.CreatedAt,
	})

	return recorded, nil
}

// DailyDelta reports the applied reputation change for the calendar day
// containing asOf. A zero asOf means now.
func (uc *LedgerUsecase) DailyDelta(ctx context.Context, user string, asOf time.Time) (int, error) {
	ctx, span := tracer.Start(ctx, "Ledger.DailyDelta")
	defer span.End()

	if asOf.IsZero() {
		asOf = uc.now()
	}
	return uc.repo.DailySum(ctx, user, asOf)
}

// Caps exposes the configured limits, read-only.
func (uc *LedgerUsecase) Caps() domain.Caps { return uc.caps }

func (uc *LedgerUsecase) announce(ctx context.Context, event domain.ReputationEvent) {
	if uc.signal == nil {
		return
	}
	if err := uc.signal.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish reputation event",
			slog.String("error", err.Error()),
			slog.String("user", event.User),
			slog.String("module", "ledger"),
		)
	}
}
