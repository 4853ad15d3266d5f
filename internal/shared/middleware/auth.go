package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"plantshop-backend/internal/shared/response"
	"plantshop-backend/pkg/jwt"
)

const (
	ContextKeyUserID = "userID"
	ContextKeyRole   = "role"
)

// AuthMiddleware requires a valid bearer token and stores userID and role in the context.
func AuthMiddleware(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Unauthorized(c, "Missing or malformed authorization header")
			c.Abort()
			return
		}

		if !authenticate(c, manager, token) {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Next()
	}
}

// OptionalAuthMiddleware authenticates when a token is present and lets anonymous requests through.
// A present but invalid token is still rejected.
func OptionalAuthMiddleware(manager *jwt.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token, ok := bearerToken(header)
		if !ok || !authenticate(c, manager, token) {
			response.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func authenticate(c *gin.Context, manager *jwt.Manager, token string) bool {
	claims, err := manager.ValidateAccessToken(token)
	if err != nil {
		return false
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return false
	}

	c.Set(ContextKeyUserID, userID)
	c.Set(ContextKeyRole, claims.Role)
	return true
}

// UserIDFromContext returns the authenticated user, if any.
func UserIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	value, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil, false
	}
	userID, ok := value.(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}
