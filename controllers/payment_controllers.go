package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type PaymentController struct {
	Payments *services.PaymentService
}

func NewPaymentController(payments *services.PaymentService) *PaymentController {
	return &PaymentController{Payments: payments}
}

func (pc *PaymentController) CreatePayment(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	var req services.PaymentInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, utils.BindError(err))
		return
	}
	userID := middlewares.CurrentUserID(c)
	req.ReceivedBy = &userID

	payment, order, err := pc.Payments.RecordPayment(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID, req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Payment recorded", gin.H{
		"payment": payment,
		"order":   order,
		"change":  payment.Change,
	})
}

func (pc *PaymentController) GetOrderPayments(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	payments, err := pc.Payments.ListPayments(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of payments", payments)
}
