package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type TenantController struct {
	DB             *gorm.DB
	DefaultTaxRate decimal.Decimal
}

func NewTenantController(db *gorm.DB, defaultTaxRate decimal.Decimal) *TenantController {
	return &TenantController{DB: db, DefaultTaxRate: defaultTaxRate}
}

// CreateTenant adds a brand or an outlet under the caller's company.
func (tc *TenantController) CreateTenant(c *gin.Context) {
	var req struct {
		Name     string           `json:"name" binding:"required"`
		Type     string           `json:"type" binding:"required,oneof=brand outlet"`
		ParentID *uint            `json:"parent_id"`
		TaxRate  *decimal.Decimal `json:"tax_rate"`
		Address  string           `json:"address"`
		Settings json.RawMessage  `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	rootID := middlewares.CurrentTenantID(c)

	parentID := rootID
	if req.ParentID != nil {
		parentID = *req.ParentID
	} else if req.Type == models.TenantOutlet {
		utils.RespondError(c, utils.NewValidationError("parent_id (a brand) is required for outlets"))
		return
	}

	var parent models.Tenant
	if err := tc.DB.Where("id = ? AND root_id = ?", parentID, rootID).First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			err = utils.NewNotFoundError("parent tenant")
		}
		utils.RespondError(c, err)
		return
	}
	if want, _ := models.ValidParentType(req.Type); parent.Type != want {
		utils.RespondError(c, utils.NewValidationError("a %s must be placed under a %s", req.Type, want))
		return
	}

	tenant := models.Tenant{
		Name:     req.Name,
		Type:     req.Type,
		ParentID: &parent.ID,
		RootID:   rootID,
		Address:  req.Address,
		IsActive: true,
	}
	if req.Type == models.TenantOutlet {
		tenant.TaxRate = tc.DefaultTaxRate
		if req.TaxRate != nil {
			if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
				utils.RespondError(c, utils.NewValidationError("tax_rate must be between 0 and 1"))
				return
			}
			tenant.TaxRate = *req.TaxRate
		}
	}
	if len(req.Settings) > 0 {
		tenant.Settings = datatypes.JSON(req.Settings)
	}

	if err := tc.DB.Create(&tenant).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Tenant created", tenant)
}

// GetAllTenants lists the caller's whole company tree.
func (tc *TenantController) GetAllTenants(c *gin.Context) {
	q := tc.DB.Where("root_id = ?", middlewares.CurrentTenantID(c))
	if t := c.Query("type"); t != "" {
		q = q.Where("type = ?", t)
	}
	var tenants []models.Tenant
	if err := q.Order("id ASC").Find(&tenants).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tenants", tenants)
}

func (tc *TenantController) GetTenantByID(c *gin.Context) {
	tenant, err := tc.find(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Tenant detail", tenant)
}

func (tc *TenantController) UpdateTenant(c *gin.Context) {
	tenant, err := tc.find(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		Name     *string          `json:"name"`
		TaxRate  *decimal.Decimal `json:"tax_rate"`
		Address  *string          `json:"address"`
		IsActive *bool            `json:"is_active"`
		Settings json.RawMessage  `json:"settings"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.TaxRate != nil {
		if tenant.Type != models.TenantOutlet {
			utils.RespondError(c, utils.NewValidationError("only outlets carry a tax rate"))
			return
		}
		if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
			utils.RespondError(c, utils.NewValidationError("tax_rate must be between 0 and 1"))
			return
		}
		updates["tax_rate"] = *req.TaxRate
	}
	if req.IsActive != nil {
		if tenant.Type == models.TenantCompany && !*req.IsActive {
			utils.RespondError(c, utils.NewForbiddenError("the company cannot be deactivated"))
			return
		}
		updates["is_active"] = *req.IsActive
	}
	if len(req.Settings) > 0 {
		updates["settings"] = datatypes.JSON(req.Settings)
	}
	if len(updates) == 0 {
		utils.RespondError(c, utils.NewValidationError("nothing to update"))
		return
	}

	if err := tc.DB.Model(tenant).Updates(updates).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := tc.DB.First(tenant, tenant.ID).Error; err != nil {
		utils.ErrorLogger.WithField("tenant_id", tenant.ID).Warnf("reload tenant after update: %v", err)
	}
	utils.RespondJSON(c, http.StatusOK, "Tenant updated", tenant)
}

func (tc *TenantController) find(c *gin.Context) (*models.Tenant, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	var tenant models.Tenant
	if err := tc.DB.Where("id = ? AND root_id = ?", id, middlewares.CurrentTenantID(c)).First(&tenant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("tenant")
		}
		return nil, err
	}
	return &tenant, nil
}
