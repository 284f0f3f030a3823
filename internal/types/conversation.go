package types

import (
	"time"
)

type Conversation struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null;column:user_id" json:"user_id"`
	Title     string    `gorm:"not null;default:'New Conversation';size:200;column:title" json:"title"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`

	User     User      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Conversation) TableName() string {
	return "conversation"
}
