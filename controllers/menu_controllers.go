package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// MenuController manages the dishes of an outlet.
type MenuController struct {
	DB *gorm.DB
}

func NewMenuController(db *gorm.DB) *MenuController {
	return &MenuController{DB: db}
}

func (mc *MenuController) GetAllDishes(c *gin.Context) {
	outlet := middlewares.CurrentOutlet(c)
	p := utils.GetPagination(c)

	q := mc.DB.Model(&models.Dish{}).Where("outlet_id = ?", outlet.ID)
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if section := c.Query("kitchen_section"); section != "" {
		q = q.Where("kitchen_section = ?", section)
	}
	if available := c.Query("available"); available != "" {
		q = q.Where("is_available = ?", available == "true")
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		q = q.Where("name LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	var dishes []models.Dish
	if err := q.Order("category ASC, name ASC").Offset(p.Offset()).Limit(p.Limit).Find(&dishes).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondPaginated(c, http.StatusOK, "List of dishes", dishes, p.WithTotal(total))
}

func (mc *MenuController) CreateDish(c *gin.Context) {
	outlet := middlewares.CurrentOutlet(c)
	var req struct {
		Name           string          `json:"name" binding:"required"`
		Category       string          `json:"category"`
		Description    string          `json:"description"`
		Price          decimal.Decimal `json:"price"`
		KitchenSection string          `json:"kitchen_section"`
		TrackStock     bool            `json:"track_stock"`
		Stock          int             `json:"stock" binding:"min=0"`
		IsAvailable    *bool           `json:"is_available"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	if req.Price.IsNegative() {
		utils.RespondError(c, utils.NewValidationError("price cannot be negative"))
		return
	}

	dish := models.Dish{
		TenantID:       outlet.RootID,
		OutletID:       outlet.ID,
		Name:           strings.TrimSpace(req.Name),
		Category:       req.Category,
		Description:    req.Description,
		Price:          req.Price.Round(2),
		KitchenSection: strings.TrimSpace(req.KitchenSection),
		TrackStock:     req.TrackStock,
		Stock:          req.Stock,
		IsAvailable:    true,
	}
	if dish.KitchenSection == "" {
		dish.KitchenSection = models.DefaultKitchenSection
	}
	if req.IsAvailable != nil {
		dish.IsAvailable = *req.IsAvailable
	}

	if err := mc.DB.Create(&dish).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Dish created", dish)
}

func (mc *MenuController) GetDishByID(c *gin.Context) {
	dish, err := mc.find(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dish detail", dish)
}

func (mc *MenuController) UpdateDish(c *gin.Context) {
	dish, err := mc.find(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		Name           *string          `json:"name"`
		Category       *string          `json:"category"`
		Description    *string          `json:"description"`
		Price          *decimal.Decimal `json:"price"`
		KitchenSection *string          `json:"kitchen_section"`
		TrackStock     *bool            `json:"track_stock"`
		IsAvailable    *bool            `json:"is_available"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			utils.RespondError(c, utils.NewValidationError("name cannot be empty"))
			return
		}
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		updates["category"] = *req.Category
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Price != nil {
		if req.Price.IsNegative() {
			utils.RespondError(c, utils.NewValidationError("price cannot be negative"))
			return
		}
		updates["price"] = req.Price.Round(2)
	}
	if req.KitchenSection != nil {
		section := strings.TrimSpace(*req.KitchenSection)
		if section == "" {
			section = models.DefaultKitchenSection
		}
		updates["kitchen_section"] = section
	}
	if req.TrackStock != nil {
		updates["track_stock"] = *req.TrackStock
	}
	if req.IsAvailable != nil {
		updates["is_available"] = *req.IsAvailable
	}
	if len(updates) == 0 {
		utils.RespondError(c, utils.NewValidationError("nothing to update"))
		return
	}

	if err := mc.DB.Model(dish).Updates(updates).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := mc.DB.First(dish, dish.ID).Error; err != nil {
		utils.ErrorLogger.WithField("dish_id", dish.ID).Warnf("reload dish: %v", err)
	}
	utils.RespondJSON(c, http.StatusOK, "Dish updated", dish)
}

// DeleteDish removes the dish and any platform mapping pointing at it.
// Past order items keep their own copy of name and price.
func (mc *MenuController) DeleteDish(c *gin.Context) {
	dish, err := mc.find(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	err = mc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dish_id = ?", dish.ID).Delete(&models.PlatformItemMapping{}).Error; err != nil {
			return err
		}
		return tx.Delete(dish).Error
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dish deleted", nil)
}

// UpdateStock either shifts the stock by delta or sets it outright.
func (mc *MenuController) UpdateStock(c *gin.Context) {
	dish, err := mc.find(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		Delta *int `json:"delta"`
		Stock *int `json:"stock"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	if (req.Delta == nil) == (req.Stock == nil) {
		utils.RespondError(c, utils.NewValidationError("provide exactly one of delta or stock"))
		return
	}

	if req.Stock != nil {
		if *req.Stock < 0 {
			utils.RespondError(c, utils.NewValidationError("stock cannot be negative"))
			return
		}
		err = mc.DB.Model(dish).Update("stock", *req.Stock).Error
	} else {
		res := mc.DB.Model(&models.Dish{}).
			Where("id = ? AND stock + ? >= 0", dish.ID, *req.Delta).
			Update("stock", gorm.Expr("stock + ?", *req.Delta))
		err = res.Error
		if err == nil && res.RowsAffected == 0 {
			err = utils.NewConflictError("stock of %q cannot go below zero", dish.Name).WithCode(utils.CodeInsufficientStock)
		}
	}
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	if err := mc.DB.First(dish, dish.ID).Error; err != nil {
		utils.ErrorLogger.WithField("dish_id", dish.ID).Warnf("reload dish: %v", err)
	}
	utils.RespondJSON(c, http.StatusOK, "Stock updated", dish)
}

func (mc *MenuController) find(c *gin.Context) (*models.Dish, error) {
	id, err := paramID(c, "dish_id")
	if err != nil {
		return nil, err
	}
	var dish models.Dish
	if err := mc.DB.Where("id = ? AND outlet_id = ?", id, middlewares.CurrentOutlet(c).ID).First(&dish).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("dish")
		}
		return nil, err
	}
	return &dish, nil
}
