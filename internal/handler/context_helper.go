package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/middleware"
	"github.com/Firas-eng-hub/Enit-Connect-sub000/internal/models"
)

func claimsFromContext(c *gin.Context) *models.ActorClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.ActorClaims)
	if !ok {
		return nil
	}
	return claims
}
