package types

import (
	"time"

	"gorm.io/datatypes"
)

// Automation is a user-defined trigger phrase mapped to an ordered list
// of actions, stored as a JSON array of {type, ...} objects.
type Automation struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        uint           `gorm:"index;not null;column:user_id" json:"user_id"`
	Name          string         `gorm:"not null;size:120;column:name" json:"name"`
	TriggerPhrase string         `gorm:"not null;size:200;column:trigger_phrase" json:"trigger_phrase"`
	Actions       datatypes.JSON `gorm:"not null;column:actions" json:"actions"`
	IsActive      bool           `gorm:"not null;default:true;column:is_active" json:"is_active"`
	UsageCount    int            `gorm:"not null;default:0;column:usage_count" json:"usage_count"`
	LastUsed      *time.Time     `gorm:"column:last_used" json:"last_used"`
	CreatedAt     time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Automation) TableName() string {
	return "automation"
}
