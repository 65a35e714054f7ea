package models

import (
	"time"
)

// Access request lifecycle states. PENDING transitions to APPROVED or
// REJECTED; both are terminal.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusRejected = "rejected"
)

// AccessRequest is a subject-initiated, admin-resolved ask for a grant.
// At most one pending request exists per (subject, resource_type, resource_id);
// repeated creates update the pending row in place.
type AccessRequest struct {
	BaseModel

	SubjectID    int64  `gorm:"not null;index" json:"subject_id"`
	ResourceType string `gorm:"type:varchar(64);not null;index" json:"resource_type"`
	ResourceID   string `gorm:"type:varchar(128);not null" json:"resource_id"`

	Message           string `json:"message"`
	RequestedDuration int    `gorm:"not null" json:"requested_duration"`

	Status      string     `gorm:"type:varchar(16);not null;default:pending;index" json:"status"`
	ProcessedAt *time.Time `json:"processed_at"`
	ProcessedBy *int64     `json:"processed_by"`
	AdminNotes  string     `json:"admin_notes"`
}

// TableName overrides the default table name for GORM.
func (AccessRequest) TableName() string {
	return "requests"
}

// IsPending reports whether the request still awaits resolution.
func (r *AccessRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}
