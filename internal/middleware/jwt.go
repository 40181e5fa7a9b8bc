// Package middleware holds the fiber middleware shared by every route:
// bearer authentication, request metrics and error rendering.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
)

const userKey = "user"

// Claims carries the user id in the standard subject claim.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 bearer tokens.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), expiry: expiry}
}

// GenerateToken signs a token for user.
func (m *TokenManager) GenerateToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *TokenManager) ValidateToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// UserLoader resolves the principal named by a token.
type UserLoader interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticate resolves the bearer token, when present, into the request
// user. Requests without an Authorization header continue anonymously.
func Authenticate(tokens *TokenManager, users UserLoader, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return c.Next()
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return WriteError(c, apperrors.Unauthorized(), log)
		}
		claims, err := tokens.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Debug("rejected bearer token", zap.Error(err))
			return WriteError(c, apperrors.Unauthorized(), log)
		}
		id, err := uuid.Parse(claims.Subject)
		if err != nil {
			return WriteError(c, apperrors.Unauthorized(), log)
		}
		user, err := users.GetUser(c.UserContext(), id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return WriteError(c, apperrors.Unauthorized(), log)
		}
		if err != nil {
			return WriteError(c, err, log)
		}
		c.Locals(userKey, user)
		return c.Next()
	}
}

// RequireUserForWrites rejects anonymous non-read requests.
func RequireUserForWrites(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if CurrentUser(c) == nil && !IsSafeMethod(c.Method()) {
			return WriteError(c, apperrors.Unauthorized(), log)
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil for anonymous requests.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(userKey).(*models.User)
	return user
}

// SetUser is used by tests and internal callers that authenticate by other means.
func SetUser(c *fiber.Ctx, user *models.User) {
	c.Locals(userKey, user)
}

func IsSafeMethod(method string) bool {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
		return true
	}
	return false
}
