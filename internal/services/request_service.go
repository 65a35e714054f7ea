package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kbrejes/fb-stats-bot/internal/access"
	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/pkg/logger"
	"github.com/kbrejes/fb-stats-bot/pkg/metrics"
)

// BaseAccessDurationDays is the grant lifetime issued when base access is
// approved.
const BaseAccessDurationDays = 365

// CreateRequestInput describes a new access request from a subject.
type CreateRequestInput struct {
	SubjectID    int64
	ResourceType string
	ResourceID   string
	Message      string
	// DurationDays of zero falls back to the default grant duration.
	DurationDays int
}

// ResolveRequestInput carries an administrator's decision on a request.
type ResolveRequestInput struct {
	RequestID string
	AdminID   int64
	// OverrideDurationDays replaces the requested duration when set.
	OverrideDurationDays *int
	Notes                string
}

// RequestService runs the access request workflow: submission with
// deduplication, and administrator approval or rejection.
type RequestService struct {
	db            *gorm.DB
	grants        *GrantService
	notifications *NotificationService
	cache         *access.RoleCache
	audit         *AuditService
	log           *zap.Logger
	now           func() time.Time

	defaultDurationDays int
	baseAccessDays      int
}

// RequestOption customises the RequestService.
type RequestOption func(*RequestService)

// WithRequestClock overrides the clock, primarily for testing.
func WithRequestClock(now func() time.Time) RequestOption {
	return func(s *RequestService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaultDuration overrides the fallback grant duration in days.
func WithDefaultDuration(days int) RequestOption {
	return func(s *RequestService) {
		if days > 0 {
			s.defaultDurationDays = days
		}
	}
}

// WithBaseAccessDuration overrides the base access grant lifetime in days.
func WithBaseAccessDuration(days int) RequestOption {
	return func(s *RequestService) {
		if days > 0 {
			s.baseAccessDays = days
		}
	}
}

// NewRequestService constructs a RequestService instance.
func NewRequestService(db *gorm.DB, grants *GrantService, notifications *NotificationService, cache *access.RoleCache, audit *AuditService, opts ...RequestOption) (*RequestService, error) {
	if db == nil {
		return nil, errors.New("request service: db is required")
	}
	if grants == nil {
		return nil, errors.New("request service: grant service is required")
	}
	if notifications == nil {
		return nil, errors.New("request service: notification service is required")
	}
	if cache == nil {
		return nil, errors.New("request service: role cache is required")
	}

	service := &RequestService{
		db:                  db,
		grants:              grants,
		notifications:       notifications,
		cache:               cache,
		audit:               audit,
		log:                 logger.WithModule("requests"),
		now:                 time.Now,
		defaultDurationDays: DefaultGrantDurationDays,
		baseAccessDays:      BaseAccessDurationDays,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Create submits an access request. A subject with at most one pending
// request per resource: resubmission updates the pending row's message and
// duration instead of stacking duplicates. Subjects whose role bypasses
// grants get ErrRequestNotNeeded.
func (s *RequestService) Create(ctx context.Context, input CreateRequestInput) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	resourceType := strings.TrimSpace(input.ResourceType)
	resourceID := strings.TrimSpace(input.ResourceID)
	if input.SubjectID == 0 || resourceType == "" || resourceID == "" {
		return nil, errors.New("request service: subject id, resource type and id are required")
	}

	var subject models.Subject
	err := s.db.WithContext(ctx).Take(&subject, "telegram_id = ?", input.SubjectID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("request service: load subject: %w", err)
	}

	if role, parseErr := access.ParseRole(subject.Role); parseErr == nil && access.BypassesGrants(role) {
		return nil, ErrRequestNotNeeded
	}

	duration := input.DurationDays
	if duration <= 0 {
		duration = s.defaultDurationDays
	}

	var request models.AccessRequest
	deduplicated := false

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookupErr := tx.Take(&request,
			"subject_id = ? AND resource_type = ? AND resource_id = ? AND status = ?",
			input.SubjectID, resourceType, resourceID, models.RequestStatusPending).Error
		if lookupErr == nil {
			deduplicated = true
			return tx.Model(&request).Updates(map[string]any{
				"message":            input.Message,
				"requested_duration": duration,
			}).Error
		}
		if !errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return lookupErr
		}

		request = models.AccessRequest{
			SubjectID:         input.SubjectID,
			ResourceType:      resourceType,
			ResourceID:        resourceID,
			Message:           input.Message,
			RequestedDuration: duration,
			Status:            models.RequestStatusPending,
		}
		createErr := tx.Create(&request).Error
		if createErr != nil && isUniqueConstraintError(createErr) {
			// Lost a submission race; fold into the winner's pending row.
			deduplicated = true
			if reloadErr := tx.Take(&request,
				"subject_id = ? AND resource_type = ? AND resource_id = ? AND status = ?",
				input.SubjectID, resourceType, resourceID, models.RequestStatusPending).Error; reloadErr != nil {
				return reloadErr
			}
			return tx.Model(&request).Updates(map[string]any{
				"message":            input.Message,
				"requested_duration": duration,
			}).Error
		}
		return createErr
	})
	if err != nil {
		return nil, fmt.Errorf("request service: create request: %w", err)
	}

	transition := "created"
	if deduplicated {
		transition = "deduplicated"
	}
	metrics.AccessRequests.WithLabelValues(transition).Inc()

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:  &input.SubjectID,
		Action:   "request.create",
		Resource: resourceRef(resourceType, resourceID),
		Result:   "success",
		Metadata: map[string]any{
			"request_id":   request.ID,
			"deduplicated": deduplicated,
			"duration":     duration,
		},
	})

	return &request, nil
}

// Approve grants the requested access and marks the request approved, in one
// transaction. Approving a base access request also activates the subject.
// Only administrators may approve.
func (s *RequestService) Approve(ctx context.Context, input ResolveRequestInput) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	if err := s.requireAdmin(ctx, input.AdminID); err != nil {
		return nil, err
	}

	var request models.AccessRequest
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadPending(tx, input.RequestID, &request); err != nil {
			return err
		}

		duration := request.RequestedDuration
		if input.OverrideDurationDays != nil {
			duration = *input.OverrideDurationDays
		}
		if duration <= 0 {
			duration = s.defaultDurationDays
		}

		if request.ResourceType == models.ResourceTypeSystem && request.ResourceID == models.ResourceIDBaseAccess {
			duration = s.baseAccessDays
			if err := tx.Model(&models.Subject{}).
				Where("telegram_id = ?", request.SubjectID).
				Update("is_active", true).Error; err != nil {
				return fmt.Errorf("activate subject: %w", err)
			}
		}

		if _, err := s.grants.upsert(tx, GrantInput{
			SubjectID:    request.SubjectID,
			ResourceType: request.ResourceType,
			ResourceID:   request.ResourceID,
			TTLDays:      &duration,
			GrantedBy:    &input.AdminID,
		}); err != nil {
			return err
		}

		return tx.Model(&request).Updates(map[string]any{
			"status":       models.RequestStatusApproved,
			"processed_at": &now,
			"processed_by": &input.AdminID,
			"admin_notes":  input.Notes,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(request.SubjectID)
	metrics.AccessRequests.WithLabelValues("approved").Inc()

	message := fmt.Sprintf("Your access request for %s was approved.",
		resourceRef(request.ResourceType, request.ResourceID))
	if notifyErr := s.notifications.Notify(ctx, request.SubjectID, models.NotificationRequestApproved, message); notifyErr != nil {
		s.log.Warn("approval notification failed",
			zap.String("request_id", request.ID),
			zap.Error(notifyErr),
		)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:  &input.AdminID,
		Action:   "request.approve",
		Resource: resourceRef(request.ResourceType, request.ResourceID),
		Result:   "success",
		Metadata: map[string]any{
			"request_id": request.ID,
			"subject_id": request.SubjectID,
		},
	})

	return &request, nil
}

// Reject marks the request rejected. The administrator's notes are relayed
// to the subject verbatim.
func (s *RequestService) Reject(ctx context.Context, input ResolveRequestInput) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	if err := s.requireAdmin(ctx, input.AdminID); err != nil {
		return nil, err
	}

	var request models.AccessRequest
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.loadPending(tx, input.RequestID, &request); err != nil {
			return err
		}
		return tx.Model(&request).Updates(map[string]any{
			"status":       models.RequestStatusRejected,
			"processed_at": &now,
			"processed_by": &input.AdminID,
			"admin_notes":  input.Notes,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.AccessRequests.WithLabelValues("rejected").Inc()

	message := fmt.Sprintf("Your access request for %s was rejected.",
		resourceRef(request.ResourceType, request.ResourceID))
	if strings.TrimSpace(input.Notes) != "" {
		message += " Note: " + input.Notes
	}
	if notifyErr := s.notifications.Notify(ctx, request.SubjectID, models.NotificationRequestRejected, message); notifyErr != nil {
		s.log.Warn("rejection notification failed",
			zap.String("request_id", request.ID),
			zap.Error(notifyErr),
		)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:  &input.AdminID,
		Action:   "request.reject",
		Resource: resourceRef(request.ResourceType, request.ResourceID),
		Result:   "success",
		Metadata: map[string]any{
			"request_id": request.ID,
			"subject_id": request.SubjectID,
		},
	})

	return &request, nil
}

// GetByID loads a request by its id.
func (s *RequestService) GetByID(ctx context.Context, requestID string) (*models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	var request models.AccessRequest
	err := s.db.WithContext(ctx).Take(&request, "id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("request service: get request: %w", err)
	}
	return &request, nil
}

// GetPending returns all pending requests, oldest first, for the admin queue.
func (s *RequestService) GetPending(ctx context.Context) ([]models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	var requests []models.AccessRequest
	err := s.db.WithContext(ctx).
		Where("status = ?", models.RequestStatusPending).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("request service: list pending: %w", err)
	}
	return requests, nil
}

// GetForSubject returns the subject's requests, newest first. Unless
// includeResolved is set only pending requests are returned.
func (s *RequestService) GetForSubject(ctx context.Context, subjectID int64, includeResolved bool) ([]models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Where("subject_id = ?", subjectID)
	if !includeResolved {
		query = query.Where("status = ?", models.RequestStatusPending)
	}

	var requests []models.AccessRequest
	err := query.Order("created_at DESC").Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("request service: list for subject: %w", err)
	}
	return requests, nil
}

// ResolvedFilters narrows the processed-request listing.
type ResolvedFilters struct {
	// Status restricts to "approved" or "rejected"; empty means both.
	Status string
	Limit  int
}

// GetResolved returns processed requests, newest decision first.
func (s *RequestService) GetResolved(ctx context.Context, filters ResolvedFilters) ([]models.AccessRequest, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Where("status <> ?", models.RequestStatusPending)
	if status := strings.TrimSpace(filters.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	limit := filters.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var requests []models.AccessRequest
	err := query.Order("processed_at DESC").Limit(limit).Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("request service: list resolved: %w", err)
	}
	return requests, nil
}

func (s *RequestService) requireAdmin(ctx context.Context, adminID int64) error {
	var admin models.Subject
	err := s.db.WithContext(ctx).Take(&admin, "telegram_id = ?", adminID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotAuthorized
	}
	if err != nil {
		return fmt.Errorf("request service: load admin: %w", err)
	}

	role, parseErr := access.ParseRole(admin.Role)
	if parseErr != nil || !admin.IsActive || !access.HasPermission(role, access.RoleAdmin) {
		return ErrNotAuthorized
	}
	return nil
}

func (s *RequestService) loadPending(tx *gorm.DB, requestID string, request *models.AccessRequest) error {
	err := tx.Take(request, "id = ?", requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRequestNotFound
	}
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}
	if !request.IsPending() {
		return ErrRequestAlreadyProcessed
	}
	return nil
}
