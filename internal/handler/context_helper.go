package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/childlang-lab/cdi-api/internal/middleware"
	"github.com/childlang-lab/cdi-api/internal/models"
)

// claimsFromContext pulls the researcher claims the JWT middleware stored
// on the request. A nil return means the route ran without authentication.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
