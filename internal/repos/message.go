package repos

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

type MessageRepo interface {
	Create(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, error)
	ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uint) ([]*types.Message, error)
	CountByConversation(ctx context.Context, tx *gorm.DB, conversationID uint) (int64, error)
	CountUserMessagesSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time) (int64, error)
	LastUserMessageAt(ctx context.Context, tx *gorm.DB, userID uint) (*time.Time, error)
	ListUserMessagesSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time, limit int) ([]*types.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: baseLog.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(ctx context.Context, tx *gorm.DB, message *types.Message) (*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(ctx).Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

func (r *messageRepo) ListByConversation(ctx context.Context, tx *gorm.DB, conversationID uint) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Message
	if err := transaction.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *messageRepo) CountByConversation(ctx context.Context, tx *gorm.DB, conversationID uint) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// userScoped joins through conversation so callers can filter the
// append-only message log by its owning user.
func (r *messageRepo) userScoped(tx *gorm.DB, userID uint) *gorm.DB {
	return tx.
		Model(&types.Message{}).
		Joins("JOIN conversation ON conversation.id = message.conversation_id").
		Where("conversation.user_id = ?", userID)
}

func (r *messageRepo) CountUserMessagesSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var count int64
	if err := r.userScoped(transaction.WithContext(ctx), userID).
		Where("message.role = ?", types.RoleUser).
		Where("message.created_at >= ?", since).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *messageRepo) LastUserMessageAt(ctx context.Context, tx *gorm.DB, userID uint) (*time.Time, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var msg types.Message
	err := r.userScoped(transaction.WithContext(ctx), userID).
		Where("message.role = ?", types.RoleUser).
		Order("message.created_at DESC").
		First(&msg).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &msg.CreatedAt, nil
}

func (r *messageRepo) ListUserMessagesSince(ctx context.Context, tx *gorm.DB, userID uint, since time.Time, limit int) ([]*types.Message, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Message
	q := r.userScoped(transaction.WithContext(ctx), userID).
		Where("message.role = ?", types.RoleUser).
		Where("message.created_at >= ?", since).
		Order("message.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
