package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type IntegrationController struct {
	DB       *gorm.DB
	Platform *services.PlatformSyncService
}

func NewIntegrationController(db *gorm.DB, platform *services.PlatformSyncService) *IntegrationController {
	return &IntegrationController{DB: db, Platform: platform}
}

type integrationRequest struct {
	Platform             string                      `json:"platform"`
	ExternalRestaurantID string                      `json:"external_restaurant_id"`
	IsActive             *bool                       `json:"is_active"`
	Settings             *models.IntegrationSettings `json:"settings"`
}

func (ic *IntegrationController) GetAllIntegrations(c *gin.Context) {
	var integrations []models.PlatformIntegration
	if err := ic.DB.WithContext(c.Request.Context()).
		Where("outlet_id = ?", middlewares.CurrentOutlet(c).ID).
		Order("platform").Find(&integrations).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of integrations", integrations)
}

func (ic *IntegrationController) CreateIntegration(c *gin.Context) {
	var req integrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	if !models.IsValidPlatform(req.Platform) {
		utils.RespondError(c, utils.NewValidationError("platform must be swiggy or zomato"))
		return
	}
	if req.ExternalRestaurantID == "" {
		utils.RespondError(c, utils.NewValidationError("external_restaurant_id is required"))
		return
	}

	outlet := middlewares.CurrentOutlet(c)
	integration := models.PlatformIntegration{
		TenantID:             outlet.RootID,
		OutletID:             outlet.ID,
		Platform:             req.Platform,
		ExternalRestaurantID: req.ExternalRestaurantID,
		IsActive:             req.IsActive == nil || *req.IsActive,
	}
	if req.Settings != nil {
		raw, _ := json.Marshal(req.Settings)
		integration.Settings = raw
	}

	if err := ic.DB.WithContext(c.Request.Context()).Create(&integration).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			utils.RespondError(c, utils.NewConflictError("outlet already has a %s integration", req.Platform).WithCode(utils.CodeDuplicate))
			return
		}
		utils.RespondError(c, err)
		return
	}
	utils.InfoLogger.WithField("integration_id", integration.ID).Infof("%s integration created for outlet %d", integration.Platform, outlet.ID)
	utils.RespondJSON(c, http.StatusCreated, "Integration created", integration)
}

func (ic *IntegrationController) GetIntegrationByID(c *gin.Context) {
	integration, ok := ic.find(c, true)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Integration detail", integration)
}

func (ic *IntegrationController) UpdateIntegration(c *gin.Context) {
	integration, ok := ic.find(c, false)
	if !ok {
		return
	}
	var req integrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	if req.Platform != "" && req.Platform != integration.Platform {
		utils.RespondError(c, utils.NewValidationError("platform cannot be changed"))
		return
	}

	updates := map[string]interface{}{}
	if req.ExternalRestaurantID != "" {
		updates["external_restaurant_id"] = req.ExternalRestaurantID
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Settings != nil {
		raw, _ := json.Marshal(req.Settings)
		updates["settings"] = raw
	}
	if len(updates) > 0 {
		if err := ic.DB.WithContext(c.Request.Context()).Model(integration).Updates(updates).Error; err != nil {
			utils.RespondError(c, err)
			return
		}
	}

	integration, ok = ic.find(c, true)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Integration updated", integration)
}

func (ic *IntegrationController) ReplaceMappings(c *gin.Context) {
	integration, ok := ic.find(c, false)
	if !ok {
		return
	}
	var req struct {
		Mappings []services.MappingInput `json:"mappings" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	updated, err := ic.Platform.ReplaceMappings(c.Request.Context(), integration.OutletID, integration.ID, req.Mappings)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item mappings replaced", updated)
}

// SyncOrders pulls the placed orders from the platform right away.
func (ic *IntegrationController) SyncOrders(c *gin.Context) {
	integration, ok := ic.find(c, false)
	if !ok {
		return
	}
	summary, err := ic.Platform.PullOrders(c.Request.Context(), integration.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Platform orders synced", summary)
}

func (ic *IntegrationController) PushItems(c *gin.Context) {
	integration, ok := ic.find(c, false)
	if !ok {
		return
	}
	summary, err := ic.Platform.PushItemAvailability(c.Request.Context(), integration.ID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item availability pushed", summary)
}

func (ic *IntegrationController) find(c *gin.Context, withMappings bool) (*models.PlatformIntegration, bool) {
	id, err := paramID(c, "integration_id")
	if err != nil {
		utils.RespondError(c, err)
		return nil, false
	}
	q := ic.DB.WithContext(c.Request.Context())
	if withMappings {
		q = q.Preload("ItemMappings")
	}
	var integration models.PlatformIntegration
	if err := q.Where("id = ? AND outlet_id = ?", id, middlewares.CurrentOutlet(c).ID).First(&integration).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.RespondError(c, utils.NewNotFoundError("integration"))
			return nil, false
		}
		utils.RespondError(c, err)
		return nil, false
	}
	return &integration, true
}
