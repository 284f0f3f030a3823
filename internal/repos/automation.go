package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

type AutomationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, automation *types.Automation) (*types.Automation, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.Automation, error)
	ListActiveByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.Automation, error)
	IncrementUsage(ctx context.Context, tx *gorm.DB, automationID uint) error
}

type automationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAutomationRepo(db *gorm.DB, baseLog *logger.Logger) AutomationRepo {
	return &automationRepo{db: db, log: baseLog.With("repo", "AutomationRepo")}
}

func (r *automationRepo) Create(ctx context.Context, tx *gorm.DB, automation *types.Automation) (*types.Automation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(automation).Error; err != nil {
		return nil, err
	}
	return automation, nil
}

func (r *automationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.Automation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Automation
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *automationRepo) ListActiveByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.Automation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Automation
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *automationRepo) IncrementUsage(ctx context.Context, tx *gorm.DB, automationID uint) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Automation{}).
		Where("id = ?", automationID).
		UpdateColumns(map[string]interface{}{
			"usage_count": gorm.Expr("usage_count + ?", 1),
			"last_used":   time.Now().UTC(),
		}).Error
}
