package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

type MemoryRepo interface {
	Create(ctx context.Context, tx *gorm.DB, memory *types.Memory) (*types.Memory, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.Memory, error)
	ListRecent(ctx context.Context, tx *gorm.DB, userID uint, limit int) ([]*types.Memory, error)
	CountByUser(ctx context.Context, tx *gorm.DB, userID uint) (int64, error)
	TouchLastAccessed(ctx context.Context, tx *gorm.DB, memoryIDs []uint) error
}

type memoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemoryRepo(db *gorm.DB, baseLog *logger.Logger) MemoryRepo {
	return &memoryRepo{db: db, log: baseLog.With("repo", "MemoryRepo")}
}

func (r *memoryRepo) Create(ctx context.Context, tx *gorm.DB, memory *types.Memory) (*types.Memory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(memory).Error; err != nil {
		return nil, err
	}
	return memory, nil
}

func (r *memoryRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.Memory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Memory
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *memoryRepo) ListRecent(ctx context.Context, tx *gorm.DB, userID uint, limit int) ([]*types.Memory, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Memory
	q := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("importance_score DESC, created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *memoryRepo) CountByUser(ctx context.Context, tx *gorm.DB, userID uint) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Memory{}).
		Where("user_id = ?", userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *memoryRepo) TouchLastAccessed(ctx context.Context, tx *gorm.DB, memoryIDs []uint) error {
	if len(memoryIDs) == 0 {
		return nil
	}
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Memory{}).
		Where("id IN ?", memoryIDs).
		Update("last_accessed", time.Now().UTC()).Error
}
