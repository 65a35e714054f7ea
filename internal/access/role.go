package access

import (
	"net/http"
	"strings"

	apperrors "github.com/kbrejes/fb-stats-bot/pkg/errors"
)

// Role is one of the three fixed bot roles, totally ordered by capability:
// ADMIN > TARGETOLOGIST > PARTNER.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleTargetologist Role = "targetologist"
	RolePartner       Role = "partner"
)

// ErrInvalidRole signals a role string that does not name a known role.
// Unknown roles fail closed: they are never coerced to a weaker role.
var ErrInvalidRole = apperrors.New("INVALID_ROLE", "Unknown role", http.StatusInternalServerError)

var roleRanks = map[Role]int{
	RolePartner:       1,
	RoleTargetologist: 2,
	RoleAdmin:         3,
}

// ParseRole validates a stored role string. It returns ErrInvalidRole for
// anything outside the fixed set, including the empty string.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := roleRanks[role]; !ok {
		return "", ErrInvalidRole
	}
	return role, nil
}

// HasPermission reports whether actual ranks at or above required. Unknown
// roles on either side rank as nothing and therefore always deny.
func HasPermission(actual, required Role) bool {
	actualRank, ok := roleRanks[actual]
	if !ok {
		return false
	}
	requiredRank, ok := roleRanks[required]
	if !ok {
		return false
	}
	return actualRank >= requiredRank
}

// BypassesGrants reports whether the role is exempt from per-resource grant
// lookups. Admins and targetologists may act on any resource.
func BypassesGrants(role Role) bool {
	return HasPermission(role, RoleTargetologist)
}
