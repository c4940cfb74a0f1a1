package middlewares

import (
	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/utils"
)

// RequireRoles lets the request through only for the listed roles.
func RequireRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		role := c.GetString(CtxRole)
		if role == "" {
			utils.RespondError(c, utils.NewUnauthorizedError("unauthorized"))
			return
		}
		if !allowed[role] {
			utils.RespondError(c, utils.NewForbiddenError("your role is not allowed to perform this action"))
			return
		}
		c.Next()
	}
}
