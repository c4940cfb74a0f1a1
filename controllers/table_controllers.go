package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type TableController struct {
	DB *gorm.DB
}

func NewTableController(db *gorm.DB) *TableController {
	return &TableController{DB: db}
}

func (tc *TableController) CreateTable(c *gin.Context) {
	outlet := middlewares.CurrentOutlet(c)
	var req struct {
		Number   string `json:"number" binding:"required"`
		Capacity int    `json:"capacity" binding:"omitempty,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}

	table := models.Table{
		OutletID: outlet.ID,
		Number:   strings.TrimSpace(req.Number),
		Capacity: req.Capacity,
		Status:   models.TableAvailable,
	}
	if table.Capacity == 0 {
		table.Capacity = 4
	}
	if err := tc.DB.Create(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = utils.NewConflictError("table %s already exists", table.Number).WithCode(utils.CodeDuplicate)
		}
		utils.RespondError(c, err)
		return
	}

	kds.BroadcastTableUpdate(outlet.RootID, table)
	utils.RespondJSON(c, http.StatusCreated, "Table created", table)
}

func (tc *TableController) GetAllTables(c *gin.Context) {
	q := tc.DB.Where("outlet_id = ?", middlewares.CurrentOutlet(c).ID)
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	var tables []models.Table
	if err := q.Order("number ASC").Find(&tables).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", tables)
}

func (tc *TableController) GetTableByID(c *gin.Context) {
	table, err := tc.find(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table detail", table)
}

// UpdateTableStatus changes the status by hand. A table still holding an
// open order cannot be freed or sent to cleaning; completing or cancelling
// the order does that.
func (tc *TableController) UpdateTableStatus(c *gin.Context) {
	table, err := tc.find(c)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	if !models.IsValidTableStatus(req.Status) {
		utils.RespondError(c, utils.NewValidationError("invalid table status %q", req.Status))
		return
	}
	if table.CurrentOrderID != nil && (req.Status == models.TableAvailable || req.Status == models.TableCleaning) {
		utils.RespondError(c, utils.NewConflictError("table %s has an open order", table.Number).WithCode(utils.CodeTableOccupied))
		return
	}

	if err := tc.DB.Model(table).Update("status", req.Status).Error; err != nil {
		utils.RespondError(c, err)
		return
	}
	table.Status = req.Status
	kds.BroadcastTableUpdate(middlewares.CurrentOutlet(c).RootID, *table)
	utils.RespondJSON(c, http.StatusOK, "Table status updated", table)
}

func (tc *TableController) find(c *gin.Context) (*models.Table, error) {
	id, err := paramID(c, "table_id")
	if err != nil {
		return nil, err
	}
	var table models.Table
	if err := tc.DB.Where("id = ? AND outlet_id = ?", id, middlewares.CurrentOutlet(c).ID).First(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("table")
		}
		return nil, err
	}
	return &table, nil
}
