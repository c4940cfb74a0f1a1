package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Context keys set by the auth middlewares.
const (
	CtxUserID   = "user_id"
	CtxRole     = "role"
	CtxTenantID = "tenant_id"
	CtxUser     = "user"
	CtxOutlet   = "outlet"
)

// AuthMiddleware validates the bearer token and loads the user behind it.
// Deactivated users are rejected even while their token is still valid.
func AuthMiddleware(tm *utils.TokenManager, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			utils.RespondError(c, utils.NewUnauthorizedError("authorization header missing"))
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			utils.RespondError(c, utils.NewUnauthorizedError("authorization header must use the Bearer scheme"))
			return
		}

		claims, err := tm.ParseToken(strings.TrimPrefix(authHeader, "Bearer "))
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

func CurrentUserID(c *gin.Context) uint {
	return c.GetUint(CtxUserID)
}

func CurrentTenantID(c *gin.Context) uint {
	return c.GetUint(CtxTenantID)
}

func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CtxUser); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}
