package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/pkg/logger"
	"github.com/kbrejes/fb-stats-bot/pkg/metrics"
)

// DefaultGrantDurationDays applies when a grant or request does not name a
// duration.
const DefaultGrantDurationDays = 30

// GrantInput describes a grant to create or refresh.
type GrantInput struct {
	SubjectID    int64
	ResourceType string
	ResourceID   string
	// TTLDays of nil issues a permanent grant.
	TTLDays   *int
	Params    map[string]any
	GrantedBy *int64
}

// GrantService owns the grant store: upserts, revocation, validity checks,
// and the periodic expiry sweep.
type GrantService struct {
	db    *gorm.DB
	audit *AuditService
	log   *zap.Logger
	now   func() time.Time
}

// GrantOption customises the GrantService.
type GrantOption func(*GrantService)

// WithGrantClock overrides the clock used for expiry computation, primarily
// for testing.
func WithGrantClock(now func() time.Time) GrantOption {
	return func(s *GrantService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewGrantService constructs a GrantService instance.
func NewGrantService(db *gorm.DB, audit *AuditService, opts ...GrantOption) (*GrantService, error) {
	if db == nil {
		return nil, errors.New("grant service: db is required")
	}

	service := &GrantService{
		db:    db,
		audit: audit,
		log:   logger.WithModule("grants"),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// Grant upserts the authorization for (subject, resource_type, resource_id).
// An existing row is reactivated and its expiry recomputed from now rather
// than accumulated.
func (s *GrantService) Grant(ctx context.Context, input GrantInput) (*models.AccessGrant, error) {
	ctx = ensureContext(ctx)

	grant, err := s.upsert(s.db.WithContext(ctx), input)
	if err != nil {
		return nil, err
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:  input.GrantedBy,
		Action:   "grant.create",
		Resource: resourceRef(input.ResourceType, input.ResourceID),
		Result:   "success",
		Metadata: map[string]any{
			"subject_id": input.SubjectID,
			"expires_at": grant.ExpiresAt,
		},
	})

	return grant, nil
}

// Revoke deactivates the grant for the resource tuple. It reports false when
// no matching row exists. The row itself persists for audit.
func (s *GrantService) Revoke(ctx context.Context, subjectID int64, resourceType, resourceID string, revokedBy *int64) (bool, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.AccessGrant{}).
		Where("subject_id = ? AND resource_type = ? AND resource_id = ?", subjectID, resourceType, resourceID).
		Update("active", false)
	if result.Error != nil {
		return false, fmt.Errorf("grant service: revoke: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	recordAudit(s.audit, ctx, AuditEntry{
		ActorID:  revokedBy,
		Action:   "grant.revoke",
		Resource: resourceRef(resourceType, resourceID),
		Result:   "success",
		Metadata: map[string]any{"subject_id": subjectID},
	})

	return true, nil
}

// HasValidGrant reports whether the subject holds a currently-valid grant for
// the resource, either an exact match or a blanket all_campaigns grant.
// Blanket grants apply to campaign-typed resources only; account-typed checks
// always require their own grant.
func (s *GrantService) HasValidGrant(ctx context.Context, subjectID int64, resourceType, resourceID string) (bool, error) {
	ctx = ensureContext(ctx)
	now := s.now()

	var grant models.AccessGrant
	err := s.db.WithContext(ctx).
		Take(&grant, "subject_id = ? AND resource_type = ? AND resource_id = ? AND active = ?",
			subjectID, resourceType, resourceID, true).Error
	switch {
	case err == nil:
		if grant.ValidAt(now) {
			return true, nil
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return false, fmt.Errorf("grant service: lookup grant: %w", err)
	}

	if resourceType != models.ResourceTypeCampaign {
		return false, nil
	}

	var blanket models.AccessGrant
	err = s.db.WithContext(ctx).
		Take(&blanket, "subject_id = ? AND resource_type = ? AND active = ?",
			subjectID, models.ResourceTypeAllCampaigns, true).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("grant service: lookup blanket grant: %w", err)
	}

	return blanket.ValidAt(now), nil
}

// ListForSubject returns the subject's currently-valid grants.
func (s *GrantService) ListForSubject(ctx context.Context, subjectID int64) ([]models.AccessGrant, error) {
	ctx = ensureContext(ctx)

	var grants []models.AccessGrant
	err := s.validGrants(ctx).
		Where("subject_id = ?", subjectID).
		Order("granted_at DESC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("grant service: list for subject: %w", err)
	}
	return grants, nil
}

// ListForResource returns currently-valid grants over the given resource.
func (s *GrantService) ListForResource(ctx context.Context, resourceType, resourceID string) ([]models.AccessGrant, error) {
	ctx = ensureContext(ctx)

	var grants []models.AccessGrant
	err := s.validGrants(ctx).
		Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("granted_at DESC").
		Find(&grants).Error
	if err != nil {
		return nil, fmt.Errorf("grant service: list for resource: %w", err)
	}
	return grants, nil
}

// SweepExpired batch-deactivates grants whose expiry has passed. It runs on a
// schedule and is independent of per-check validity evaluation.
func (s *GrantService) SweepExpired(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.AccessGrant{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, s.now()).
		Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("grant service: sweep expired: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		metrics.GrantsSwept.Add(float64(result.RowsAffected))
		s.log.Info("expired grants deactivated", zap.Int64("count", result.RowsAffected))
	}

	return result.RowsAffected, nil
}

// upsert performs the atomic grant write on the provided handle so the
// request workflow can run it inside its approval transaction.
func (s *GrantService) upsert(tx *gorm.DB, input GrantInput) (*models.AccessGrant, error) {
	if input.SubjectID == 0 {
		return nil, errors.New("grant service: subject id is required")
	}
	resourceType := strings.TrimSpace(input.ResourceType)
	resourceID := strings.TrimSpace(input.ResourceID)
	if resourceType == "" || resourceID == "" {
		return nil, errors.New("grant service: resource type and id are required")
	}

	var subject models.Subject
	if err := tx.Take(&subject, "telegram_id = ?", input.SubjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubjectNotFound
		}
		return nil, fmt.Errorf("grant service: load subject: %w", err)
	}

	now := s.now()

	var expiresAt *time.Time
	if input.TTLDays != nil {
		expiry := now.AddDate(0, 0, *input.TTLDays)
		expiresAt = &expiry
	}

	var params datatypes.JSON
	if input.Params != nil {
		encoded, err := json.Marshal(input.Params)
		if err != nil {
			return nil, fmt.Errorf("grant service: marshal params: %w", err)
		}
		params = datatypes.JSON(encoded)
	}

	grant := models.AccessGrant{
		SubjectID:    input.SubjectID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		GrantedAt:    now,
		ExpiresAt:    expiresAt,
		Active:       true,
		GrantedByID:  input.GrantedBy,
		Params:       params,
	}

	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "subject_id"},
			{Name: "resource_type"},
			{Name: "resource_id"},
		},
		DoUpdates: clause.Assignments(map[string]any{
			"active":        true,
			"granted_at":    now,
			"expires_at":    expiresAt,
			"granted_by_id": input.GrantedBy,
			"params":        params,
			"updated_at":    now,
		}),
	}).Create(&grant).Error
	if err != nil {
		return nil, fmt.Errorf("grant service: upsert grant: %w", err)
	}

	// Re-read so the caller sees the surviving row, not the insert candidate.
	var stored models.AccessGrant
	err = tx.Take(&stored, "subject_id = ? AND resource_type = ? AND resource_id = ?",
		input.SubjectID, resourceType, resourceID).Error
	if err != nil {
		return nil, fmt.Errorf("grant service: reload grant: %w", err)
	}

	return &stored, nil
}

func (s *GrantService) validGrants(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.AccessGrant{}).
		Where("active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", s.now())
}

func resourceRef(resourceType, resourceID string) string {
	return resourceType + ":" + resourceID
}
