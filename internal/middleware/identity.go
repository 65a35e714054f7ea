package middleware

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/kbrejes/fb-stats-bot/internal/models"
	"github.com/kbrejes/fb-stats-bot/internal/services"
	apperrors "github.com/kbrejes/fb-stats-bot/pkg/errors"
	"github.com/kbrejes/fb-stats-bot/pkg/response"
)

const (
	CtxSubjectIDKey = "subjectID"
	CtxSubjectKey   = "subject"
	CtxClaimsKey    = "gatewayClaims"
)

// GatewayClaims is the identity payload the bot gateway signs for each
// forwarded Telegram update.
type GatewayClaims struct {
	TelegramID int64  `json:"tid"`
	Username   string `json:"username,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	jwt.RegisteredClaims
}

// GatewayVerifier validates gateway-signed identity tokens.
type GatewayVerifier struct {
	secret []byte
	leeway time.Duration
}

// NewGatewayVerifier constructs a verifier over the shared gateway secret.
func NewGatewayVerifier(secret string) (*GatewayVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("gateway verifier: secret is required")
	}
	return &GatewayVerifier{secret: []byte(secret), leeway: 30 * time.Second}, nil
}

// Verify parses and validates a gateway token, returning its claims.
func (v *GatewayVerifier) Verify(token string) (*GatewayClaims, error) {
	claims := &GatewayClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, jwt.WithLeeway(v.leeway), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.TelegramID == 0 {
		return nil, errors.New("invalid gateway token")
	}
	return claims, nil
}

// SubjectEnsurer registers subjects on first contact.
type SubjectEnsurer interface {
	Ensure(ctx context.Context, input services.EnsureSubjectInput) (*models.Subject, error)
}

// Identity authenticates the gateway token and resolves the acting subject,
// creating an inactive partner record on first contact. It gates on identity
// only; role and grant checks are separate layers.
func Identity(verifier *GatewayVerifier, subjects SubjectEnsurer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(authz[7:]))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		subject, err := subjects.Ensure(c.Request.Context(), services.EnsureSubjectInput{
			TelegramID: claims.TelegramID,
			Username:   claims.Username,
			FirstName:  claims.FirstName,
			LastName:   claims.LastName,
		})
		if err != nil {
			response.Error(c, apperrors.ErrInternalServer)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxSubjectIDKey, subject.TelegramID)
		c.Set(CtxSubjectKey, subject)

		c.Next()
	}
}

// SubjectID returns the authenticated subject's Telegram id from the request
// context.
func SubjectID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(CtxSubjectIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok && id != 0
}
