package models

import "time"

// Notification kinds produced by the request workflow.
const (
	NotificationRequestApproved = "request.approved"
	NotificationRequestRejected = "request.rejected"
	NotificationGrantRevoked    = "grant.revoked"
)

// Notification is an outbox row the bot gateway delivers to a subject.
type Notification struct {
	BaseModel

	SubjectID int64      `gorm:"not null;index" json:"subject_id"`
	Kind      string     `gorm:"type:varchar(64);not null;index" json:"kind"`
	Message   string     `gorm:"not null" json:"message"`
	ReadAt    *time.Time `json:"read_at"`
}

// TableName overrides the default table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}
