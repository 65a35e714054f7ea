package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/pkg/logger"
)

// NotificationService stores outcome notifications for delivery by the bot
// gateway. Delivery itself happens out of process; this service only queues
// and acknowledges.
type NotificationService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewNotificationService constructs a NotificationService instance.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{
		db:  db,
		log: logger.WithModule("notifications"),
	}, nil
}

// Notify queues a notification for the subject.
func (s *NotificationService) Notify(ctx context.Context, subjectID int64, kind, message string) error {
	ctx = ensureContext(ctx)

	if subjectID == 0 {
		return errors.New("notification service: subject id is required")
	}
	if strings.TrimSpace(kind) == "" {
		return errors.New("notification service: kind is required")
	}

	notification := models.Notification{
		SubjectID: subjectID,
		Kind:      kind,
		Message:   message,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		return fmt.Errorf("notification service: create notification: %w", err)
	}
	return nil
}

// ListForSubject returns the subject's notifications, newest first. When
// unreadOnly is set, acknowledged notifications are omitted.
func (s *NotificationService) ListForSubject(ctx context.Context, subjectID int64, unreadOnly bool) ([]models.Notification, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Where("subject_id = ?", subjectID)
	if unreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var notifications []models.Notification
	if err := query.Order("created_at DESC").Find(&notifications).Error; err != nil {
		return nil, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return notifications, nil
}

// MarkRead acknowledges a notification on behalf of its subject. It returns
// ErrNotificationNotFound when the id does not belong to the subject.
func (s *NotificationService) MarkRead(ctx context.Context, subjectID int64, notificationID string) error {
	ctx = ensureContext(ctx)

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND subject_id = ? AND read_at IS NULL", notificationID, subjectID).
		Update("read_at", &now)
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
