package middlewares

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// WebSocketAuthMiddleware authenticates the KDS socket with ?token=, since
// browsers cannot set headers on a websocket handshake.
func WebSocketAuthMiddleware(tm *utils.TokenManager, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			utils.RespondError(c, utils.NewUnauthorizedError("token query parameter missing"))
			return
		}

		claims, err := tm.ParseToken(token)
		if err != nil {
			utils.RespondError(c, utils.NewUnauthorizedError("invalid or expired token"))
			return
		}
		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil || !user.IsActive {
			utils.RespondError(c, utils.NewUnauthorizedError("user is inactive or no longer exists"))
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxRole, user.Role)
		c.Set(CtxTenantID, user.TenantID)
		c.Set(CtxUser, &user)
		c.Next()
	}
}
