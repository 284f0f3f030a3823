package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

type ConversationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) (*types.Conversation, error)
	GetByID(ctx context.Context, tx *gorm.DB, conversationID uint) (*types.Conversation, error)
	GetForUser(ctx context.Context, tx *gorm.DB, conversationID, userID uint) (*types.Conversation, error)
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.Conversation, error)
	UpdateTitle(ctx context.Context, tx *gorm.DB, conversationID uint, title string) error
	Touch(ctx context.Context, tx *gorm.DB, conversationID uint) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(ctx context.Context, tx *gorm.DB, conversation *types.Conversation) (*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(conversation).Error; err != nil {
		return nil, err
	}
	return conversation, nil
}

func (r *conversationRepo) GetByID(ctx context.Context, tx *gorm.DB, conversationID uint) (*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Conversation
	if err := transaction.WithContext(ctx).
		Where("id = ?", conversationID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *conversationRepo) GetForUser(ctx context.Context, tx *gorm.DB, conversationID, userID uint) (*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var result types.Conversation
	if err := transaction.WithContext(ctx).
		Where("id = ? AND user_id = ?", conversationID, userID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *conversationRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint) ([]*types.Conversation, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Conversation
	if err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *conversationRepo) UpdateTitle(ctx context.Context, tx *gorm.DB, conversationID uint, title string) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", conversationID).
		Update("title", title).Error
}

func (r *conversationRepo) Touch(ctx context.Context, tx *gorm.DB, conversationID uint) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).
		Model(&types.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now().UTC()).Error
}
