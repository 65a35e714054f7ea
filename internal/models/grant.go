package models

import (
	"time"

	"gorm.io/datatypes"
)

// Resource type constants understood by the grant store.
const (
	ResourceTypeCampaign     = "campaign"
	ResourceTypeAccount      = "account"
	ResourceTypeAllCampaigns = "all_campaigns"
	ResourceTypeSystem       = "system"
)

// ResourceIDBaseAccess marks the system-wide grant issued when a subject is
// first admitted to the bot.
const ResourceIDBaseAccess = "base_access"

// AccessGrant ties a subject to a resource with an optional expiry. One
// logical grant exists per (subject, resource_type, resource_id); re-granting
// updates the row in place. Revocation flips Active; rows persist for audit.
type AccessGrant struct {
	BaseModel

	SubjectID    int64  `gorm:"not null;uniqueIndex:idx_grants_subject_resource,priority:1;index" json:"subject_id"`
	ResourceType string `gorm:"type:varchar(64);not null;uniqueIndex:idx_grants_subject_resource,priority:2;index" json:"resource_type"`
	ResourceID   string `gorm:"type:varchar(128);not null;uniqueIndex:idx_grants_subject_resource,priority:3" json:"resource_id"`

	GrantedAt   time.Time      `gorm:"not null" json:"granted_at"`
	ExpiresAt   *time.Time     `gorm:"index" json:"expires_at"`
	Active      bool           `gorm:"default:true;index" json:"active"`
	GrantedByID *int64         `gorm:"index" json:"granted_by_id"`
	Params      datatypes.JSON `json:"params"`
}

// TableName overrides the default table name for GORM.
func (AccessGrant) TableName() string {
	return "grants"
}

// ValidAt reports whether the grant authorizes access at the given instant.
// A grant expiring exactly at the instant is already invalid.
func (g *AccessGrant) ValidAt(at time.Time) bool {
	if !g.Active {
		return false
	}
	if g.ExpiresAt == nil {
		return true
	}
	return at.Before(*g.ExpiresAt)
}
