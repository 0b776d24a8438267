package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"vision-assist/backend/pkg/errors"
	"vision-assist/backend/pkg/jwt"
	"vision-assist/backend/pkg/logger"
)

// Context keys set by the auth middlewares
const (
	ClaimsKey = "claims"
	UserIDKey = "userId"
)

// TokenValidator is satisfied by *jwt.Service
type TokenValidator interface {
	ValidateToken(token string) (*jwt.JWTClaims, error)
}

// bearerToken returns the token from an Authorization header, or ""
func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func setClaims(c *gin.Context, claims *jwt.JWTClaims) {
	c.Set(ClaimsKey, claims)
	c.Set(UserIDKey, claims.UserID)
}

// JWTAuth requires a valid bearer token and adds its claims to the context
func JWTAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			_ = c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authorization header is required"))
			c.Abort()
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			logger.FromGin(c).Warn("Invalid JWT token", "error", err.Error())
			_ = c.Error(errors.NewUnauthorizedError(errors.CodeInvalidToken, "Invalid or expired token"))
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth adds claims when a valid bearer token is present and
// otherwise lets the request through anonymously
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			claims, err := validator.ValidateToken(token)
			if err == nil {
				setClaims(c, claims)
			} else {
				logger.FromGin(c).Debug("Ignoring invalid optional token", "error", err.Error())
			}
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by JWTAuth or OptionalAuth
func ClaimsFrom(c *gin.Context) (*jwt.JWTClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*jwt.JWTClaims)
	return claims, ok
}

// RequireRole returns a middleware that requires the user to have a specific role
func RequireRole(role jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			_ = c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authentication required"))
			c.Abort()
			return
		}

		if !claims.HasRole(role) {
			_ = c.Error(errors.NewForbiddenError(errors.CodeInsufficientRole, "Your role does not allow this operation"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// RoleLookup returns a user's current role from the account store
type RoleLookup interface {
	CurrentRole(ctx context.Context, userID uint) (jwt.Role, error)
}

// RequireCurrentRole is RequireRole checked against the stored account, so a
// demoted or deleted user loses access before the token expires
func RequireCurrentRole(lookup RoleLookup, role jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			_ = c.Error(errors.NewUnauthorizedError(errors.CodeAuthRequired, "Authentication required"))
			c.Abort()
			return
		}

		current, err := lookup.CurrentRole(c.Request.Context(), claims.UserID)
		if err != nil {
			logger.FromGin(c).Warn("Failed to resolve current role", "user_id", claims.UserID, "error", err.Error())
			_ = c.Error(errors.NewUnauthorizedError(errors.CodeInvalidToken, "Invalid or expired token"))
			c.Abort()
			return
		}

		if !current.Grants(role) {
			_ = c.Error(errors.NewForbiddenError(errors.CodeInsufficientRole, "Your role does not allow this operation"))
			c.Abort()
			return
		}

		c.Next()
	}
}
