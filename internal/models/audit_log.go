package models

// AuditLog records administrative mutations and access denials with the
// acting subject, the target, and the outcome.
type AuditLog struct {
	BaseModel

	ActorID  *int64 `gorm:"index" json:"actor_id"`
	Action   string `gorm:"type:varchar(64);not null;index" json:"action"`
	Resource string `gorm:"type:varchar(192);index" json:"resource"`
	Result   string `gorm:"type:varchar(16);not null;index" json:"result"`
	Metadata string `json:"metadata,omitempty"`
}

// TableName overrides the default table name for GORM.
func (AuditLog) TableName() string {
	return "audit_logs"
}
