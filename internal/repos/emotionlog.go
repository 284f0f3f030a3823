package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

type EmotionLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.EmotionLog) (*types.EmotionLog, error)
	ListByUserSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time) ([]*types.EmotionLog, error)
	GetLatest(ctx context.Context, tx *gorm.DB, userID uint) (*types.EmotionLog, error)
}

type emotionLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmotionLogRepo(db *gorm.DB, baseLog *logger.Logger) EmotionLogRepo {
	return &emotionLogRepo{db: db, log: baseLog.With("repo", "EmotionLogRepo")}
}

func (r *emotionLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.EmotionLog) (*types.EmotionLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *emotionLogRepo) ListByUserSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time) ([]*types.EmotionLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.EmotionLog
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *emotionLogRepo) GetLatest(ctx context.Context, tx *gorm.DB, userID uint) (*types.EmotionLog, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.EmotionLog
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&result).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &result, nil
}
