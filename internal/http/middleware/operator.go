package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/daisinet/securetools/internal/authn"
)

// Operator gates lifecycle endpoints behind the shared operator secret.
// Failing the check never reveals whether the header was absent or wrong.
func Operator(validator *authn.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !validator.VerifyOperator(c.GetHeader(authn.AuthHeader)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success":           false,
				"error":             "unauthorized",
				"error_description": "Operator authentication failed.",
			})
			return
		}
		c.Next()
	}
}
