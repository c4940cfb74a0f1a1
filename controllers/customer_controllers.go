package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type CustomerController struct {
	Customers *services.CustomerService
}

func NewCustomerController(customers *services.CustomerService) *CustomerController {
	return &CustomerController{Customers: customers}
}

// GetAllCustomers searches the company's customers by phone or name (?q=).
func (cc *CustomerController) GetAllCustomers(c *gin.Context) {
	p := utils.GetPagination(c)
	tenantID := middlewares.CurrentOutlet(c).RootID
	customers, total, err := cc.Customers.List(c.Request.Context(), tenantID, c.Query("q"), p)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondPaginated(c, http.StatusOK, "List of customers", customers, p.WithTotal(total))
}

func (cc *CustomerController) GetCustomerByID(c *gin.Context) {
	id, err := paramID(c, "customer_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	customer, err := cc.Customers.Get(c.Request.Context(), middlewares.CurrentOutlet(c).RootID, id)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Customer detail", customer)
}
