package usecase

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"github.com/teknolab/repute/internal/domain"
)

// PermissionUsecase answers capability checks against the aggregate. A
// missing rule means allowed: absence of configuration must never lock
// users out. Callers that want fail-closed semantics combine IsAllowed
// with RuleExists.
type PermissionUsecase struct {
	rules      PermissionRepository
	reputation *ReputationUsecase
}

func NewPermissionUsecase(rules PermissionRepository, reputation *ReputationUsecase) *PermissionUsecase {
	return &PermissionUsecase{rules: rules, reputation: reputation}
}

// IsAllowed reports whether user's score meets the named rule's threshold.
func (uc *PermissionUsecase) IsAllowed(ctx context.Context, user, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Permission.IsAllowed")
	defer span.End()
	span.SetAttributes(attribute.String("permission", name))

	rule, err := uc.rules.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		span.RecordError(err)
		return false, err
	}

	score, err := uc.reputation.GetScore(ctx, user)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	return score >= rule.RequiredReputation, nil
}

// RuleExists reports whether a rule carries the given name.
func (uc *PermissionUsecase) RuleExists(ctx context.Context, name string) (bool, error) {
	_, err := uc.rules.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Upsert creates or updates a rule. Administrative path.
func (uc *PermissionUsecase) Upsert(ctx context.Context, rule domain.PermissionRule) error {
	return uc.rules.Upsert(ctx, rule)
}

// Snapshot evaluates every registered rule for one user, returning a
// name -> allowed map.
func (uc *PermissionUsecase) Snapshot(ctx context.Context, user string) (map[string]bool, error) {
	ctx, span := tracer.Start(ctx, "Permission.Snapshot")
	defer span.End()

	rules, err := uc.rules.List(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	score, err := uc.reputation.GetScore(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	snapshot := make(map[string]bool, len(rules))
	for _, rule := range rules {
		snapshot[rule.Name] = score >= rule.RequiredReputation
	}
	return snapshot, nil
}
