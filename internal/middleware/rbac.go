package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
	appErrors "github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/errors"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/pkg/response"
)

// RequireRoles restricts a route to the given actor types.
func RequireRoles(roles ...models.ActorType) gin.HandlerFunc {
	allowed := make(map[models.ActorType]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.ActorClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
