package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/config"
	"github.com/yeremiapane/restaurant-pos/controllers"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/services"
	"github.com/yeremiapane/restaurant-pos/utils"
)

var (
	managers   = []string{models.RoleOwner, models.RoleAdmin, models.RoleManager}
	frontDesk  = []string{models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleCashier, models.RoleWaiter}
	cashDesk   = []string{models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleCashier}
	kitchen    = []string{models.RoleOwner, models.RoleAdmin, models.RoleManager, models.RoleChef}
	companyAdm = []string{models.RoleOwner, models.RoleAdmin}
)

func SetupRouter(db *gorm.DB, cfg *config.Config, tokens *utils.TokenManager, svc *services.Container) *gin.Engine {
	r := gin.New()

	r.Use(middlewares.ErrorHandler())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares(cfg.CORSOrigins))
	r.Use(middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).RateLimit())

	// Controllers
	userCtrl := controllers.NewUserController(db, tokens, cfg.DefaultTaxRate)
	tenantCtrl := controllers.NewTenantController(db, cfg.DefaultTaxRate)
	menuCtrl := controllers.NewMenuController(db)
	tableCtrl := controllers.NewTableController(db)
	orderCtrl := controllers.NewOrderController(svc.Orders)
	kdsCtrl := controllers.NewKDSController(svc.KOTs)
	paymentCtrl := controllers.NewPaymentController(svc.Payments)
	customerCtrl := controllers.NewCustomerController(svc.Customers)
	integrationCtrl := controllers.NewIntegrationController(db, svc.PlatformSync)
	syncCtrl := controllers.NewSyncController(svc.SyncQueue)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			utils.RespondError(c, utils.NewInternalError("database unavailable"))
			return
		}
		utils.RespondJSON(c, http.StatusOK, "ok", gin.H{"kds_clients": kds.ClientCount()})
	})

	api := r.Group("/api/v1")

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	public := api.Group("/auth")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Kitchen display socket, authenticated by ?token=
	ws := api.Group("/kds")
	ws.Use(middlewares.WebSocketAuthMiddleware(tokens, db))
	{
		ws.GET("/ws", controllers.KDSHandler)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := api.Group("")
	auth.Use(middlewares.AuthMiddleware(tokens, db))

	auth.GET("/auth/me", userCtrl.GetProfile)

	// STAFF
	staff := auth.Group("/staff", middlewares.RequireRoles(managers...))
	{
		staff.GET("", userCtrl.ListStaff)
		staff.POST("", userCtrl.CreateStaff)
		staff.PATCH("/:id", userCtrl.UpdateStaff)
		staff.DELETE("/:id", userCtrl.DeactivateStaff)
	}

	// TENANTS
	auth.GET("/tenants", tenantCtrl.GetAllTenants)
	auth.GET("/tenants/:id", tenantCtrl.GetTenantByID)
	auth.POST("/tenants", middlewares.RequireRoles(companyAdm...), tenantCtrl.CreateTenant)
	auth.PATCH("/tenants/:id", middlewares.RequireRoles(companyAdm...), tenantCtrl.UpdateTenant)

	// ----------------------------------------------------------------
	//                      OUTLET ROUTES
	// ----------------------------------------------------------------
	outlet := auth.Group("/outlets/:outlet_id")
	outlet.Use(middlewares.OutletScope(db))

	// DISHES
	outlet.GET("/dishes", menuCtrl.GetAllDishes)
	outlet.GET("/dishes/:dish_id", menuCtrl.GetDishByID)
	outlet.POST("/dishes", middlewares.RequireRoles(managers...), menuCtrl.CreateDish)
	outlet.PATCH("/dishes/:dish_id", middlewares.RequireRoles(managers...), menuCtrl.UpdateDish)
	outlet.DELETE("/dishes/:dish_id", middlewares.RequireRoles(managers...), menuCtrl.DeleteDish)
	outlet.PATCH("/dishes/:dish_id/stock", middlewares.RequireRoles(kitchen...), menuCtrl.UpdateStock)

	// TABLES
	outlet.GET("/tables", tableCtrl.GetAllTables)
	outlet.GET("/tables/:table_id", tableCtrl.GetTableByID)
	outlet.POST("/tables", middlewares.RequireRoles(managers...), tableCtrl.CreateTable)
	outlet.PATCH("/tables/:table_id/status", middlewares.RequireRoles(frontDesk...), tableCtrl.UpdateTableStatus)

	// ORDERS
	orders := outlet.Group("/orders")
	{
		orders.GET("", orderCtrl.GetAllOrders)
		orders.GET("/:order_id", orderCtrl.GetOrderByID)
		orders.GET("/:order_id/kots", kdsCtrl.GetOrderTickets)
		orders.POST("", middlewares.RequireRoles(frontDesk...), orderCtrl.CreateOrder)
		orders.PATCH("/:order_id/status", middlewares.RequireRoles(frontDesk...), orderCtrl.UpdateOrderStatus)
		orders.POST("/:order_id/cancel", middlewares.RequireRoles(frontDesk...), orderCtrl.CancelOrder)
		orders.POST("/:order_id/items/:item_id/cancel", middlewares.RequireRoles(frontDesk...), orderCtrl.CancelOrderItem)
		orders.POST("/:order_id/complete", middlewares.RequireRoles(frontDesk...), orderCtrl.CompleteOrder)
		orders.PATCH("/:order_id/discount", middlewares.RequireRoles(cashDesk...), orderCtrl.UpdateDiscount)
	}

	// PAYMENTS
	payments := orders.Group("/:order_id/payments")
	payments.Use(middlewares.PaymentSecurityHeaders())
	{
		payments.GET("", middlewares.RequireRoles(cashDesk...), paymentCtrl.GetOrderPayments)
		payments.POST("", middlewares.RequireRoles(cashDesk...),
			middlewares.PaymentRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst), paymentCtrl.CreatePayment)
	}

	// KOTS
	outlet.GET("/kots", kdsCtrl.GetKitchenTickets)
	outlet.PATCH("/kots/:kot_id/status", middlewares.RequireRoles(kitchen...), kdsCtrl.UpdateTicketStatus)

	// CUSTOMERS
	outlet.GET("/customers", middlewares.RequireRoles(frontDesk...), customerCtrl.GetAllCustomers)
	outlet.GET("/customers/:customer_id", middlewares.RequireRoles(frontDesk...), customerCtrl.GetCustomerByID)

	// INTEGRATIONS
	integrations := outlet.Group("/integrations", middlewares.RequireRoles(managers...))
	{
		integrations.GET("", integrationCtrl.GetAllIntegrations)
		integrations.POST("", integrationCtrl.CreateIntegration)
		integrations.GET("/:integration_id", integrationCtrl.GetIntegrationByID)
		integrations.PATCH("/:integration_id", integrationCtrl.UpdateIntegration)
		integrations.PUT("/:integration_id/mappings", integrationCtrl.ReplaceMappings)
		integrations.POST("/:integration_id/sync", integrationCtrl.SyncOrders)
		integrations.POST("/:integration_id/push-items", integrationCtrl.PushItems)
	}

	// DEVICE SYNC
	sync := outlet.Group("/sync")
	{
		sync.POST("/push", syncCtrl.Push)
		sync.GET("/pull", syncCtrl.Pull)
		sync.GET("/records", syncCtrl.GetRecords)
		sync.POST("/records/:record_id/resolve", middlewares.RequireRoles(managers...), syncCtrl.Resolve)
	}

	return r
}
