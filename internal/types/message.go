package types

import (
	"time"
)

// Message roles. The log is append-only; messages are never edited.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Message struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint      `gorm:"index;not null;column:conversation_id" json:"conversation_id"`
	Role           string    `gorm:"not null;size:20;column:role" json:"role"`
	Content        string    `gorm:"type:text;not null;column:content" json:"content"`
	HasImage       bool      `gorm:"not null;default:false;column:has_image" json:"has_image"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (Message) TableName() string {
	return "message"
}
