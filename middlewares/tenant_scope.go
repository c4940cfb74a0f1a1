package middlewares

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// OutletScope resolves :outlet_id and checks it is an outlet of the caller's
// company. Staff bound to one outlet may only reach that outlet.
func OutletScope(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("outlet_id"), 10, 64)
		if err != nil {
			utils.RespondError(c, utils.NewValidationError("invalid outlet id"))
			return
		}

		var outlet models.Tenant
		err = db.WithContext(c.Request.Context()).
			Where("id = ? AND type = ?", id, models.TenantOutlet).
			First(&outlet).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && outlet.RootID != CurrentTenantID(c)) {
			utils.RespondError(c, utils.NewNotFoundError("outlet"))
			return
		}
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		if !outlet.IsActive {
			utils.RespondError(c, utils.NewForbiddenError("outlet is inactive"))
			return
		}
		if user := CurrentUser(c); user != nil && user.OutletID != nil && *user.OutletID != outlet.ID {
			utils.RespondError(c, utils.NewForbiddenError("you are not assigned to this outlet"))
			return
		}

		c.Set(CtxOutlet, &outlet)
		c.Next()
	}
}

// CurrentOutlet returns the outlet resolved by OutletScope.
func CurrentOutlet(c *gin.Context) *models.Tenant {
	if v, ok := c.Get(CtxOutlet); ok {
		if o, ok := v.(*models.Tenant); ok {
			return o
		}
	}
	return nil
}
