package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/aurelia-labs/companion-backend/internal/logger"
	"github.com/aurelia-labs/companion-backend/internal/repos"
	"github.com/aurelia-labs/companion-backend/internal/types"
)

// DashboardStats aggregates a user's footprint for the dashboard view.
type DashboardStats struct {
	Conversations   int64  `json:"conversations"`
	Messages        int64  `json:"messages"`
	Memories        int64  `json:"memories"`
	Automations     int    `json:"automations"`
	DominantEmotion string `json:"dominant_emotion"`
	MemberSince     string `json:"member_since"`
}

// ConversationExport is one conversation with its full message log.
type ConversationExport struct {
	ID        uint           `json:"id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	Messages  []ExportedTurn `json:"messages"`
}

type ExportedTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type UserService interface {
	GetProfile(ctx context.Context, userID uint) (*types.UserProfile, error)
	UpdateProfile(ctx context.Context, userID uint, displayName, timezone string, preferences datatypes.JSON) (*types.UserProfile, error)
	DashboardStats(ctx context.Context, userID uint) (DashboardStats, error)
	ExportConversations(ctx context.Context, userID uint) ([]ConversationExport, error)
}

type userService struct {
	db               *gorm.DB
	log              *logger.Logger
	userRepo         repos.UserRepo
	profileRepo      repos.UserProfileRepo
	conversationRepo repos.ConversationRepo
	messageRepo      repos.MessageRepo
	memoryRepo       repos.MemoryRepo
	automationRepo   repos.AutomationRepo
	emotionService   EmotionService
}

func NewUserService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	profileRepo repos.UserProfileRepo,
	conversationRepo repos.ConversationRepo,
	messageRepo repos.MessageRepo,
	memoryRepo repos.MemoryRepo,
	automationRepo repos.AutomationRepo,
	emotionService EmotionService,
) UserService {
	return &userService{
		db:               db,
		log:              log.With("service", "UserService"),
		userRepo:         userRepo,
		profileRepo:      profileRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		memoryRepo:       memoryRepo,
		automationRepo:   automationRepo,
		emotionService:   emotionService,
	}
}

func (us *userService) GetProfile(ctx context.Context, userID uint) (*types.UserProfile, error) {
	profile, err := us.profileRepo.GetByUserID(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Absent profile reads as an empty one.
			return &types.UserProfile{UserID: userID}, nil
		}
		return nil, err
	}
	return profile, nil
}

func (us *userService) UpdateProfile(ctx context.Context, userID uint, displayName, timezone string, preferences datatypes.JSON) (*types.UserProfile, error) {
	profile := &types.UserProfile{
		UserID:      userID,
		DisplayName: displayName,
		Timezone:    timezone,
		Preferences: preferences,
	}
	return us.profileRepo.Upsert(ctx, nil, profile)
}

func (us *userService) DashboardStats(ctx context.Context, userID uint) (DashboardStats, error) {
	var stats DashboardStats

	conversations, err := us.conversationRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return stats, fmt.Errorf("list conversations: %w", err)
	}
	stats.Conversations = int64(len(conversations))

	for _, conv := range conversations {
		count, err := us.messageRepo.CountByConversation(ctx, nil, conv.ID)
		if err != nil {
			return stats, fmt.Errorf("count messages: %w", err)
		}
		stats.Messages += count
	}

	memories, err := us.memoryRepo.CountByUser(ctx, nil, userID)
	if err != nil {
		return stats, fmt.Errorf("count memories: %w", err)
	}
	stats.Memories = memories

	automations, err := us.automationRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return stats, fmt.Errorf("list automations: %w", err)
	}
	stats.Automations = len(automations)

	if scores, ok := us.emotionService.Latest(ctx, userID); ok {
		stats.DominantEmotion = scores.Dominant()
	} else {
		stats.DominantEmotion = "neutral"
	}

	user, err := us.userRepo.GetByID(ctx, nil, userID)
	if err == nil {
		stats.MemberSince = user.CreatedAt.Format("2006-01-02")
	}
	return stats, nil
}

func (us *userService) ExportConversations(ctx context.Context, userID uint) ([]ConversationExport, error) {
	conversations, err := us.conversationRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	out := make([]ConversationExport, 0, len(conversations))
	for _, conv := range conversations {
		messages, err := us.messageRepo.ListByConversation(ctx, nil, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("list messages for conversation %d: %w", conv.ID, err)
		}
		export := ConversationExport{
			ID:        conv.ID,
			Title:     conv.Title,
			CreatedAt: conv.CreatedAt,
			Messages:  make([]ExportedTurn, 0, len(messages)),
		}
		for _, m := range messages {
			export.Messages = append(export.Messages, ExportedTurn{
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			})
		}
		out = append(out, export)
	}
	return out, nil
}
