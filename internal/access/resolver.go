package access

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/pkg/logger"
	"github.com/kbrejes/fb-stats-bot/pkg/metrics"
)

// SubjectSource loads subjects from the persistent store on cache misses.
type SubjectSource interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Subject, error)
}

// GrantSource answers whether a subject holds a currently-valid grant for a
// resource, including blanket grants. It never applies role bypasses; that
// rule lives here.
type GrantSource interface {
	HasValidGrant(ctx context.Context, subjectID int64, resourceType, resourceID string) (bool, error)
}

// Resolver is the single place the authorization rule lives. The enforcement
// middleware and the gateway-facing check endpoint are thin adapters over it.
//
// Resolution never returns errors to callers: lookups that fail, subjects
// that are missing or inactive, and corrupt role strings all resolve to deny.
type Resolver struct {
	subjects SubjectSource
	grants   GrantSource
	cache    *RoleCache
	log      *zap.Logger
}

// NewResolver constructs a Resolver. All collaborators are required.
func NewResolver(subjects SubjectSource, grants GrantSource, cache *RoleCache) (*Resolver, error) {
	if subjects == nil {
		return nil, errors.New("access resolver: subject source is required")
	}
	if grants == nil {
		return nil, errors.New("access resolver: grant source is required")
	}
	if cache == nil {
		return nil, errors.New("access resolver: role cache is required")
	}
	return &Resolver{
		subjects: subjects,
		grants:   grants,
		cache:    cache,
		log:      logger.WithModule("access"),
	}, nil
}

// ResolveRole returns the subject's role. The second return is false when the
// subject is unknown, inactive, or carries an unparseable role.
func (r *Resolver) ResolveRole(ctx context.Context, telegramID int64) (Role, bool) {
	snap, ok := r.lookup(ctx, telegramID)
	if !ok || !snap.Subject.IsActive {
		return "", false
	}
	return snap.Role, true
}

// CheckAccess reports whether the subject may act on the resource. Admins and
// targetologists are valid for any resource; partners need a valid grant.
func (r *Resolver) CheckAccess(ctx context.Context, telegramID int64, resourceType, resourceID string) bool {
	snap, ok := r.lookup(ctx, telegramID)
	if !ok || !snap.Subject.IsActive {
		metrics.AccessChecks.WithLabelValues(resourceType, "denied").Inc()
		return false
	}

	if BypassesGrants(snap.Role) {
		metrics.AccessChecks.WithLabelValues(resourceType, "allowed").Inc()
		return true
	}

	allowed, err := r.grants.HasValidGrant(ctx, telegramID, resourceType, resourceID)
	if err != nil {
		r.log.Error("grant lookup failed",
			zap.Int64("subject_id", telegramID),
			zap.String("resource_type", resourceType),
			zap.String("resource_id", resourceID),
			zap.Error(err),
		)
		metrics.AccessChecks.WithLabelValues(resourceType, "error").Inc()
		return false
	}

	result := "denied"
	if allowed {
		result = "allowed"
	}
	metrics.AccessChecks.WithLabelValues(resourceType, result).Inc()
	return allowed
}

// lookup returns the subject snapshot, filling the role cache on a miss.
// Subjects with corrupt role strings resolve as not found.
func (r *Resolver) lookup(ctx context.Context, telegramID int64) (Snapshot, bool) {
	if snap, ok := r.cache.Get(telegramID); ok {
		return snap, true
	}

	subject, err := r.subjects.GetByTelegramID(ctx, telegramID)
	if err != nil || subject == nil {
		if err != nil && !errors.Is(err, context.Canceled) {
			r.log.Debug("subject lookup failed", zap.Int64("subject_id", telegramID), zap.Error(err))
		}
		return Snapshot{}, false
	}

	role, err := ParseRole(subject.Role)
	if err != nil {
		// Corrupt role data denies instead of downgrading to partner.
		r.log.Error("subject has invalid role",
			zap.Int64("subject_id", telegramID),
			zap.String("role", subject.Role),
		)
		return Snapshot{}, false
	}

	r.cache.Put(telegramID, role, subject)
	return Snapshot{Role: role, Subject: subject, FetchedAt: r.cache.now()}, true
}
