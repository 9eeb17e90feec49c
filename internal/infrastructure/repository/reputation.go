package repository

import (
	"context"
	"strconv"

	"github.com/bradfitz/gomemcache/memcache"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teknolab/repute/internal/domain"
	"github.com/teknolab/repute/internal/infrastructure/database/models"
)

// Score entries are cached briefly; staleness only affects advisory reads,
// the write path always works against the locked row.
const scoreCacheTTL = 30 // seconds

func scoreKey(user string) string {
	return "repute:score:" + user
}

func invalidateScore(cache *memcache.Client, user string) {
	if cache == nil {
		return
	}
	// Best effort. A missed invalidation expires with the TTL.
	_ = cache.Delete(scoreKey(user))
}

type ReputationRepository struct {
	db    *gorm.DB
	cache *memcache.Client
	base  int
}

func NewReputationRepository(db *gorm.DB, cache *memcache.Client, base int) *ReputationRepository {
	return &ReputationRepository{db: db, cache: cache, base: base}
}

func (r *ReputationRepository) GetOrCreate(ctx context.Context, user string) (domain.Reputation, error) {
	if r.cache != nil {
		if item, err := r.cache.Get(scoreKey(user)); err == nil {
			if score, parseErr := strconv.Atoi(string(item.Value)); parseErr == nil {
				return domain.Reputation{User: user, Score: score}, nil
			}
		}
	}

	seed := models.Reputation{UserID: user, Score: r.base}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&seed).Error; err != nil {
		return domain.Reputation{}, pkgerrors.Wrap(err, "materialize aggregate")
	}

	var row models.Reputation
	if err := r.db.WithContext(ctx).First(&row, "user_id = ?", user).Error; err != nil {
		return domain.Reputation{}, pkgerrors.Wrap(err, "load aggregate")
	}

	if r.cache != nil {
		_ = r.cache.Set(&memcache.Item{
			Key:        scoreKey(user),
			Value:      []byte(strconv.Itoa(row.Score)),
			Expiration: scoreCacheTTL,
		})
	}

	return domain.Reputation{User: row.UserID, Score: row.Score}, nil
}

func (r *ReputationRepository) SetScore(ctx context.Context, user string, score int) error {
	row := models.Reputation{UserID: user, Score: score}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "m_date"}),
	}).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(err, "set score")
	}

	invalidateScore(r.cache, user)
	return nil
}
