package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is not checked: the socket is authenticated by token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type KDSController struct {
	KOTs *services.KOTService
}

func NewKDSController(kots *services.KOTService) *KDSController {
	return &KDSController{KOTs: kots}
}

// GetKitchenTickets is the kitchen display feed, filterable by section and status.
func (kc *KDSController) GetKitchenTickets(c *gin.Context) {
	kots, err := kc.KOTs.ListForKitchen(c.Request.Context(), middlewares.CurrentOutlet(c).ID, c.Query("section"), c.Query("status"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of KOTs", kots)
}

func (kc *KDSController) GetOrderTickets(c *gin.Context) {
	orderID, err := paramID(c, "order_id")
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	kots, err := kc.KOTs.ListByOrder(c.Request.Context(), middlewares.CurrentOutlet(c).ID, orderID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of KOTs", kots)
}

func (kc *KDSController) UpdateTicketStatus(c *gin.Context) {
	kotID, err := paramID(c, "kot_id")
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
	kot, err := kc.KOTs.UpdateStatus(c.Request.Context(), middlewares.CurrentOutlet(c).ID, kotID, req.Status)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "KOT status updated", kot)
}

// KDSHandler upgrades to a websocket and streams kitchen events of the
// caller's company, optionally narrowed with ?outlet_id=.
func KDSHandler(c *gin.Context) {
	role := c.GetString(middlewares.CtxRole)
	switch role {
	case models.RoleChef, models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleWaiter, models.RoleCashier:
	default:
		utils.RespondError(c, utils.NewForbiddenError("role cannot subscribe to the kitchen display"))
		return
	}

	client := kds.Client{
		Role:     role,
		TenantID: middlewares.CurrentTenantID(c),
		OutletID: queryUint(c, "outlet_id"),
	}
	if user := middlewares.CurrentUser(c); user != nil && user.OutletID != nil {
		client.OutletID = *user.OutletID
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Warnf("kds upgrade failed: %v", err)
		return
	}
	kds.RegisterClient(ws, client)

	// Drain reads until the client goes away.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	kds.UnregisterClient(ws)
}
