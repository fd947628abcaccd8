package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/gradestore/internal/models"
	appErrors "github.com/noah-isme/gradestore/pkg/errors"
	"github.com/noah-isme/gradestore/pkg/response"
)

// ContextTAKey is the gin context key storing the caller's TA claims.
const ContextTAKey = "currentTA"

// TokenValidator turns a bearer token into TA claims.
type TokenValidator interface {
	Validate(token string) (*models.TAClaims, error)
}

// JWT protects routes by requiring a valid TA access token.
func JWT(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextTAKey, claims)
		c.Next()
	}
}

// CurrentTA returns the claims stored by JWT, or nil.
func CurrentTA(c *gin.Context) *models.TAClaims {
	value, exists := c.Get(ContextTAKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.TAClaims)
	return claims
}
