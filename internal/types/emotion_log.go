package types

import (
	"time"

	"gorm.io/datatypes"
)

// EmotionLog records one analyzed user message. Emotions holds the
// normalized scores keyed happiness/stress/neutral/confidence.
type EmotionLog struct {
	ID             uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         uint           `gorm:"index;not null;column:user_id" json:"user_id"`
	ConversationID uint           `gorm:"index;column:conversation_id" json:"conversation_id"`
	Emotions       datatypes.JSON `gorm:"not null;column:emotions" json:"emotions"`
	Dominant       string         `gorm:"size:20;column:dominant" json:"dominant"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (EmotionLog) TableName() string {
	return "emotion_log"
}
