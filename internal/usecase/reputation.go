package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/teknolab/repute/internal/domain"
)

// ReputationUsecase is the read/override surface over the aggregate.
type ReputationUsecase struct {
	repo   ReputationRepository
	signal EventPublisher
	now    func() time.Time
}

func NewReputationUsecase(repo ReputationRepository, signal EventPublisher) *ReputationUsecase {
	return &ReputationUsecase{
		repo:   repo,
		signal: signal,
		now:    time.Now,
	}
}

// GetScore returns the user's current score, materializing the aggregate at
// the base reputation on first access.
func (uc *ReputationUsecase) GetScore(ctx context.Context, user string) (int, error) {
	ctx, span := tracer.Start(ctx, "Reputation.GetScore")
	defer span.End()

	reputation, err := uc.repo.GetOrCreate(ctx, user)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return reputation.Score, nil
}

// SetScore is the administrative override. It writes the aggregate directly
// and creates no ledger entry, knowingly diverging from the materialized
// view until callers re-anchor.
func (uc *ReputationUsecase) SetScore(ctx context.Context, user string, score int) error {
	ctx, span := tracer.Start(ctx, "Reputation.SetScore")
	defer span.End()

	if err := uc.repo.SetScore(ctx, user, score); err != nil {
		span.RecordError(err)
		return err
	}

	if uc.signal != nil {
		event := domain.ReputationEvent{
			Type:  domain.EventTypeOverride,
			User:  user,
			Score: score,
			At:    uc.now(),
		}
		if err := uc.signal.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "failed to publish override event",
				slog.String("error", err.Error()),
				slog.String("user", user),
				slog.String("module", "reputation"),
			)
		}
	}
	return nil
}
