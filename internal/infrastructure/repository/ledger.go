package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/jackc/pgx/v5/pgconn"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teknolab/repute/internal/domain"
	"github.com/teknolab/repute/internal/infrastructure/database/models"
)

// Postgres classes for serialization failures and deadlocks. Both resolve
// by retrying the whole transaction.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type LedgerRepository struct {
	db    *gorm.DB
	cache *memcache.Client
	caps  domain.Caps
}

func NewLedgerRepository(db *gorm.DB, cache *memcache.Client, caps domain.Caps) *LedgerRepository {
	return &LedgerRepository{db: db, cache: cache, caps: caps}
}

// Record runs the full write path in one transaction. Locking the target's
// aggregate row serializes concurrent writers for that user; writers for
// other users proceed in parallel.
func (r *LedgerRepository) Record(ctx context.Context, kind domain.ActionKind, entry domain.LedgerEntry, asOf time.Time) (domain.LedgerEntry, error) {
	var row models.LedgerEntry

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.Reputation{UserID: entry.TargetUser, Score: r.caps.Base}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return pkgerrors.Wrap(err, "seed aggregate")
		}

		var aggregate models.Reputation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&aggregate, "user_id = ?", entry.TargetUser).Error; err != nil {
			return pkgerrors.Wrap(err, "lock aggregate")
		}

		if kind.UniquePerActor {
			var count int64
			if err := tx.Model(&models.LedgerEntry{}).
				Where("target_user = ? AND kind = ?", entry.TargetUser, kind.ID).
				Count(&count).Error; err != nil {
				return pkgerrors.Wrap(err, "uniqueness check")
			}
			if count > 0 {
				return domain.DuplicateActionError{Kind: kind.ID, User: entry.TargetUser}
			}
		}
		if kind.UniquePerTarget {
			var count int64
			if err := tx.Model(&models.LedgerEntry{}).
				Where("target_user = ? AND kind = ? AND object_type = ? AND object_id = ?",
					entry.TargetUser, kind.ID, entry.Object.Type, entry.Object.ID).
				Count(&count).Error; err != nil {
				return pkgerrors.Wrap(err, "uniqueness check")
			}
			if count > 0 {
				return domain.DuplicateActionError{Kind: kind.ID, User: entry.TargetUser}
			}
		}

		daySum, err := daySumTx(tx, entry.TargetUser, asOf)
		if err != nil {
			return pkgerrors.Wrap(err, "day sum")
		}

		applied := domain.Clip(r.caps, daySum, entry.RawValue)

		row = models.LedgerEntry{
			TargetUser:      entry.TargetUser,
			OriginatingUser: entry.OriginatingUser,
			Kind:            kind.ID,
			ObjectType:      entry.Object.Type,
			ObjectID:        entry.Object.ID,
			RawValue:        entry.RawValue,
			AppliedValue:    applied,
			CreatedAt:       asOf,
		}
		if err := tx.Create(&row).Error; err != nil {
			return pkgerrors.Wrap(err, "create entry")
		}

		if applied != 0 {
			if err := tx.Model(&models.Reputation{}).
				Where("user_id = ?", entry.TargetUser).
				Update("score", gorm.Expr("score + ?", applied)).Error; err != nil {
				return pkgerrors.Wrap(err, "update aggregate")
			}
		}
		return nil
	})
	if err != nil {
		return domain.LedgerEntry{}, translateRecordError(err)
	}

	invalidateScore(r.cache, entry.TargetUser)
	return ledgerEntryToDomain(row), nil
}

// DailySum reads the applied sum for the asOf calendar day. Runs outside
// any transaction: the value is advisory.
func (r *LedgerRepository) DailySum(ctx context.Context, user string, asOf time.Time) (int, error) {
	return daySumTx(r.db.WithContext(ctx), user, asOf)
}

func daySumTx(tx *gorm.DB, user string, asOf time.Time) (int, error) {
	start, end := domain.DayWindow(asOf)
	var sum int64
	err := tx.Model(&models.LedgerEntry{}).
		Where("target_user = ? AND created_at >= ? AND created_at < ?", user, start, end).
		Select("COALESCE(SUM(applied_value), 0)").
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return int(sum), nil
}

// translateRecordError maps transient storage failures to the domain
// conflict error so the usecase can retry; everything else passes through.
func translateRecordError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected {
			return domain.ConflictError{Cause: err}
		}
	}
	return err
}

func ledgerEntryToDomain(row models.LedgerEntry) domain.LedgerEntry {
	return domain.LedgerEntry{
		ID:              row.ID,
		TargetUser:      row.TargetUser,
		OriginatingUser: row.OriginatingUser,
		Kind:            row.Kind,
		Object:          domain.ObjectRef{Type: row.ObjectType, ID: row.ObjectID},
		RawValue:        row.RawValue,
		AppliedValue:    row.AppliedValue,
		CreatedAt:       row.CreatedAt,
	}
}
