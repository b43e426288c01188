package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/train-schedule-api/internal/models"
	appErrors "github.com/noah-isme/train-schedule-api/pkg/errors"
	"github.com/noah-isme/train-schedule-api/pkg/response"
)

// RequireAdmin blocks callers whose claims lack the admin flag. Must run
// after JWT.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || !claims.IsAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin privileges required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
