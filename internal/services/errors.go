package services

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/kbrejes/fb-stats-bot/pkg/errors"
)

var (
	// ErrSubjectNotFound indicates the referenced subject does not exist.
	ErrSubjectNotFound = apperrors.New("SUBJECT_NOT_FOUND", "Subject not found", http.StatusNotFound)
	// ErrGrantNotFound indicates no grant row matches the resource tuple.
	ErrGrantNotFound = apperrors.New("GRANT_NOT_FOUND", "Grant not found", http.StatusNotFound)
	// ErrRequestNotFound indicates the access request does not exist.
	ErrRequestNotFound = apperrors.New("REQUEST_NOT_FOUND", "Access request not found", http.StatusNotFound)
	// ErrRequestAlreadyProcessed rejects a second resolution of a terminal request.
	ErrRequestAlreadyProcessed = apperrors.New("REQUEST_ALREADY_PROCESSED", "Access request already processed", http.StatusConflict)
	// ErrNotAuthorized rejects administrative operations by non-admin actors.
	ErrNotAuthorized = apperrors.New("NOT_AUTHORIZED", "Administrator role required", http.StatusForbidden)
	// ErrRequestNotNeeded rejects requests from subjects whose role already
	// bypasses grants.
	ErrRequestNotNeeded = apperrors.New("REQUEST_NOT_NEEDED", "Elevated roles do not need access requests", http.StatusBadRequest)
	// ErrNotificationNotFound indicates the notification does not exist or
	// belongs to another subject.
	ErrNotificationNotFound = apperrors.New("NOTIFICATION_NOT_FOUND", "Notification not found", http.StatusNotFound)
)

// isUniqueConstraintError detects database uniqueness violations across vendors.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr != nil && pgErr.Code == "23505" {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr != nil && myErr.Number == 1062 {
		return true
	}

	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique") ||
		strings.Contains(lower, "duplicate") ||
		strings.Contains(lower, "constraint")
}
