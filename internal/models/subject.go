package models

import (
	"time"
)

// Subject is a bot end-user identified by their stable Telegram id.
// Subjects are created on first contact with the gateway, mutated by admin
// actions or request approval, and deactivated rather than deleted.
type Subject struct {
	TelegramID int64 `gorm:"primaryKey;autoIncrement:false" json:"telegram_id"`

	Username  string `gorm:"index" json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	Role     string `gorm:"type:varchar(32);not null;index" json:"role"`
	IsActive bool   `gorm:"default:false;index" json:"is_active"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the default table name for GORM.
func (Subject) TableName() string {
	return "subjects"
}

// DisplayName returns the best human-readable label for the subject.
func (s *Subject) DisplayName() string {
	switch {
	case s.Username != "":
		return "@" + s.Username
	case s.LastName != "":
		return s.FirstName + " " + s.LastName
	default:
		return s.FirstName
	}
}
