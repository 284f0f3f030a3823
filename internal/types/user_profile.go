package types

import (
	"time"

	"gorm.io/datatypes"
)

type UserProfile struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      uint           `gorm:"uniqueIndex;not null;column:user_id" json:"user_id"`
	DisplayName string         `gorm:"size:120;column:display_name" json:"display_name"`
	Timezone    string         `gorm:"size:64;column:timezone" json:"timezone"`
	Preferences datatypes.JSON `gorm:"column:preferences" json:"preferences"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (UserProfile) TableName() string {
	return "user_profile"
}
