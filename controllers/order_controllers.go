package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req services.CreateOrderInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	userID := middlewares.CurrentUserID(c)
	req.CreatedBy = &userID
	req.ExternalOrderID = nil

	order, err := oc.Orders.CreateOrder(c.Request.Context(), middlewares.CurrentOutlet(c), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

func (oc *OrderController) GetAllOrders(c *gin.Context) {
	p := utils.GetPagination(c)
	filter := services.OrderFilter{
		Status:  c.Query("status"),
		Source:  c.Query("source"),
		Type:    c.Query("type"),
		TableID: queryUint(c, "table_id"),
	}
	orders, total, err := oc.Orders.ListOrders(c.Request.Context(), middlewares.CurrentOutlet(c).ID, filter, p)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondPaginated(c, http.StatusOK, "List of orders", orders, p.WithTotal(total))
}

func (oc *OrderController) GetOrderByID(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	order, err := oc.Orders.GetOrder(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
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
	order, err := oc.Orders.UpdateStatus(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID, req.Status)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order status updated", order)
}

func (oc *OrderController) CancelOrder(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional.
	_ = c.ShouldBindJSON(&req)

	order, err := oc.Orders.CancelOrder(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID, req.Reason)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}

func (oc *OrderController) CancelOrderItem(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	itemID, err := paramID(c, "item_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	order, err := oc.Orders.CancelItem(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID, itemID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order item cancelled", order)
}

func (oc *OrderController) CompleteOrder(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	order, err := oc.Orders.CompleteOrder(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order completed", order)
}

func (oc *OrderController) UpdateDiscount(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req struct {
		Discount *decimal.Decimal `json:"discount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	order, err := oc.Orders.SetDiscount(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID, *req.Discount)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Discount applied", order)
}
