package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/worksmarter/internal/middleware"
	"github.com/noah-isme/worksmarter/internal/models"
	appErrors "github.com/noah-isme/worksmarter/pkg/errors"
	"github.com/noah-isme/worksmarter/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireClaims writes 401 and returns nil when the route was reached
// without the JWT middleware populating the caller.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
	}
	return claims
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
