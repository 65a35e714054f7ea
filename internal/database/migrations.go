package database

import (
	"gorm.io/gorm"

	"github.com/kbrejes/fb-stats-bot/internal/access"
	"github.com/kbrejes/fb-stats-bot/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Subject{},
		&models.AccessGrant{},
		&models.AccessRequest{},
		&models.Notification{},
		&models.AuditLog{},
	)
	if err != nil {
		return err
	}
	return ensurePendingRequestIndex(db)
}

// ensurePendingRequestIndex enforces at most one pending request per
// (subject, resource type, resource id) tuple. Resolved rows stay out of the
// index so the tuple can be requested again later. MySQL has no partial
// indexes; there the transactional re-check in the request service is the
// only guard.
func ensurePendingRequestIndex(db *gorm.DB) error {
	if db.Dialector.Name() == "mysql" {
		return nil
	}
	return db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_pending_tuple
		 ON requests (subject_id, resource_type, resource_id)
		 WHERE status = 'pending'`,
	).Error
}

// SeedAdmins ensures the configured bootstrap administrators exist and are
// active. Existing subjects are promoted in place; their profile fields are
// left untouched.
func SeedAdmins(db *gorm.DB, telegramIDs []int64) error {
	for _, id := range telegramIDs {
		if id == 0 {
			continue
		}

		subject := models.Subject{
			TelegramID: id,
			Role:       string(access.RoleAdmin),
			IsActive:   true,
		}
		err := db.Where(models.Subject{TelegramID: id}).
			Attrs(subject).
			FirstOrCreate(&models.Subject{}).Error
		if err != nil {
			return err
		}

		err = db.Model(&models.Subject{}).
			Where("telegram_id = ?", id).
			Updates(map[string]any{"role": string(access.RoleAdmin), "is_active": true}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
