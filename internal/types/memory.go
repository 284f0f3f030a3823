package types

import (
	"time"
)

// Memory is a persisted key/value fact with an importance weight.
// Records are appended opportunistically during chat turns and are not
// hard-deleted in normal flow.
type Memory struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint      `gorm:"index;not null;column:user_id" json:"user_id"`
	Type            string    `gorm:"size:60;not null;default:'general';column:type" json:"type"`
	Key             string    `gorm:"size:200;not null;column:key" json:"key"`
	Value           string    `gorm:"type:text;not null;column:value" json:"value"`
	ImportanceScore float64   `gorm:"not null;default:1;column:importance_score" json:"importance"`
	CreatedAt       time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	LastAccessed    time.Time `gorm:"column:last_accessed" json:"last_accessed"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Memory) TableName() string {
	return "memory"
}
