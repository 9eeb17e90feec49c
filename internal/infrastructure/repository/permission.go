package repository

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/teknolab/repute/internal/domain"
	"github.com/teknolab/repute/internal/infrastructure/database/models"
)

// PermissionRepository stores capability gates. Rules are read on every
// check but edited rarely, so lookups go through a small in-process cache.
type PermissionRepository struct {
	db    *gorm.DB
	cache *cache.Cache
}

func NewPermissionRepository(db *gorm.DB) *PermissionRepository {
	return &PermissionRepository{
		db:    db,
		cache: cache.New(1*time.Minute, 5*time.Minute),
	}
}

func (r *PermissionRepository) Get(ctx context.Context, name string) (domain.PermissionRule, error) {
	if cached, ok := r.cache.Get(name); ok {
		return cached.(domain.PermissionRule), nil
	}

	var row models.PermissionRule
	err := r.db.WithContext(ctx).First(&row, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PermissionRule{}, domain.NotFoundError{Resource: "permission rule"}
	}
	if err != nil {
		return domain.PermissionRule{}, pkgerrors.Wrap(err, "load permission rule")
	}

	rule := permissionRuleToDomain(row)
	r.cache.SetDefault(name, rule)
	return rule, nil
}

func (r *PermissionRepository) Upsert(ctx context.Context, rule domain.PermissionRule) error {
	row := models.PermissionRule{
		Name:               rule.Name,
		Description:        rule.Description,
		RequiredReputation: rule.RequiredReputation,
	}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "required_reputation"}),
	}).Create(&row).Error; err != nil {
		return pkgerrors.Wrap(err, "upsert permission rule")
	}

	r.cache.Delete(rule.Name)
	return nil
}

func (r *PermissionRepository) List(ctx context.Context) ([]domain.PermissionRule, error) {
	var rows []models.PermissionRule
	if err := r.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(err, "list permission rules")
	}

	rules := make([]domain.PermissionRule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, permissionRuleToDomain(row))
	}
	return rules, nil
}

func permissionRuleToDomain(row models.PermissionRule) domain.PermissionRule {
	return domain.PermissionRule{
		Name:               row.Name,
		Description:        row.Description,
		RequiredReputation: row.RequiredReputation,
	}
}
