package types

import (
	"time"
)

// UserToken holds an opaque refresh token issued at login and revoked at
// logout. Access tokens are stateless JWTs and never stored.
type UserToken struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint      `gorm:"index;not null;column:user_id" json:"user_id"`
	RefreshToken string    `gorm:"uniqueIndex;not null;column:refresh_token" json:"-"`
	ExpiresAt    time.Time `gorm:"not null;column:expires_at" json:"expires_at"`
	Revoked      bool      `gorm:"not null;default:false;column:revoked" json:"revoked"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (UserToken) TableName() string {
	return "user_token"
}
