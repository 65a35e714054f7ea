package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kbrejes/fb-stats-bot/internal/access"
	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/pkg/logger"
)

// EnsureSubjectInput carries the identity fields supplied by the bot gateway.
type EnsureSubjectInput struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// SubjectFilters captures listing filters.
type SubjectFilters struct {
	Role     string
	IsActive *bool
	Query    string
}

// ListSubjectsOptions controls pagination for subject listing.
type ListSubjectsOptions struct {
	Page     int
	PageSize int
	Filters  SubjectFilters
}

// SubjectService manages the subject lifecycle: creation on first contact,
// role changes, and activation. Subjects are never deleted.
type SubjectService struct {
	db    *gorm.DB
	cache *access.RoleCache
	audit *AuditService
	log   *zap.Logger
}

// NewSubjectService constructs a SubjectService instance.
func NewSubjectService(db *gorm.DB, cache *access.RoleCache, audit *AuditService) (*SubjectService, error) {
	if db == nil {
		return nil, errors.New("subject service: db is required")
	}
	if cache == nil {
		return nil, errors.New("subject service: role cache is required")
	}
	return &SubjectService{
		db:    db,
		cache: cache,
		audit: audit,
		log:   logger.WithModule("subjects"),
	}, nil
}

// Ensure returns the subject for the Telegram id, creating an inactive
// partner record on first contact. Profile fields are refreshed when the
// gateway reports new values.
func (s *SubjectService) Ensure(ctx context.Context, input EnsureSubjectInput) (*models.Subject, error) {
	ctx = ensureContext(ctx)

	if input.TelegramID == 0 {
		return nil, errors.New("subject service: telegram id is required")
	}

	var subject models.Subject
	err := s.db.WithContext(ctx).Take(&subject, "telegram_id = ?", input.TelegramID).Error
	if err == nil {
		return s.refreshProfile(ctx, &subject, input)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("subject service: load subject: %w", err)
	}

	subject = models.Subject{
		TelegramID: input.TelegramID,
		Username:   strings.TrimSpace(input.Username),
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		Role:       string(access.RolePartner),
		IsActive:   false,
	}

	if err := s.db.WithContext(ctx).Create(&subject).Error; err != nil {
		if isUniqueConstraintError(err) {
			// Lost a first-contact race; the winner's row is authoritative.
			if loadErr := s.db.WithContext(ctx).Take(&subject, "telegram_id = ?", input.TelegramID).Error; loadErr == nil {
				return &subject, nil
			}
		}
		return nil, fmt.Errorf("subject service: create subject: %w", err)
	}

	s.log.Info("subject created on first contact",
		zap.Int64("telegram_id", subject.TelegramID),
		zap.String("username", subject.Username),
	)

	return &subject, nil
}

// GetByTelegramID loads a subject by their Telegram id.
func (s *SubjectService) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Subject, error) {
	ctx = ensureContext(ctx)

	var subject models.Subject
	err := s.db.WithContext(ctx).Take(&subject, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subject service: get subject: %w", err)
	}
	return &subject, nil
}

// List retrieves subjects matching the supplied filters with pagination.
func (s *SubjectService) List(ctx context.Context, opts ListSubjectsOptions) ([]models.Subject, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Subject{})
	if opts.Filters.Role != "" {
		query = query.Where("role = ?", strings.ToLower(strings.TrimSpace(opts.Filters.Role)))
	}
	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(username) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?",
			pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("subject service: count subjects: %w", err)
	}

	var subjects []models.Subject
	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&subjects).Error; err != nil {
		return nil, 0, fmt.Errorf("subject service: list subjects: %w", err)
	}

	return subjects, total, nil
}

// SetRole changes a subject's role and invalidates their cached snapshot so
// the new role takes effect immediately in this process.
func (s *SubjectService) SetRole(ctx context.Context, actorID, telegramID int64, rawRole string) (*models.Subject, error) {
	ctx = ensureContext(ctx)

	role, err := access.ParseRole(rawRole)
	if err != nil {
		return nil, access.ErrInvalidRole
	}

	result := s.db.WithContext(ctx).Model(&models.Subject{}).
		Where("telegram_id = ?", telegramID).
		Update("role", string(role))
	if result.Error != nil {
		return nil, fmt.Errorf("subject service: set role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrSubjectNotFound
	}

	s.cache.Invalidate(telegramID)

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:  &actorID,
		Action:   "subject.set_role",
		Resource: fmt.Sprintf("subject:%d", telegramID),
		Result:   "success",
		Metadata: map[string]any{"role": string(role)},
	})

	return s.GetByTelegramID(ctx, telegramID)
}

// SetActive toggles the active state of a subject and invalidates their
// cached snapshot.
func (s *SubjectService) SetActive(ctx context.Context, actorID, telegramID int64, active bool) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Subject{}).
		Where("telegram_id = ?", telegramID).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("subject service: set active: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrSubjectNotFound
	}

	s.cache.Invalidate(telegramID)

	action := "subject.activate"
	if !active {
		action = "subject.deactivate"
	}
	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:  &actorID,
		Action:   action,
		Resource: fmt.Sprintf("subject:%d", telegramID),
		Result:   "success",
	})

	return nil
}

func (s *SubjectService) refreshProfile(ctx context.Context, subject *models.Subject, input EnsureSubjectInput) (*models.Subject, error) {
	updates := map[string]any{}

	if name := strings.TrimSpace(input.Username); name != "" && name != subject.Username {
		updates["username"] = name
	}
	if first := strings.TrimSpace(input.FirstName); first != "" && first != subject.FirstName {
		updates["first_name"] = first
	}
	if last := strings.TrimSpace(input.LastName); last != "" && last != subject.LastName {
		updates["last_name"] = last
	}

	if len(updates) == 0 {
		return subject, nil
	}

	if err := s.db.WithContext(ctx).Model(subject).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("subject service: refresh profile: %w", err)
	}
	return subject, nil
}
