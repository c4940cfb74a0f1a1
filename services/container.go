package services

import (
	"gorm.io/gorm"

	"github.com/yeremiapane/restaurant-pos/messaging"
)

// Container wires the services together. Orders push platform status
// changes through PlatformSync, which in turn creates orders through Orders.
type Container struct {
	Customers    *CustomerService
	Orders       *OrderService
	KOTs         *KOTService
	Payments     *PaymentService
	PlatformSync *PlatformSyncService
	SyncQueue    *SyncQueueService
}

func NewContainer(db *gorm.DB, events messaging.EventPublisher, clients map[string]PlatformAPI) *Container {
	if events == nil {
		events = messaging.NoopPublisher{}
	}
	customers := NewCustomerService(db)
	orders := NewOrderService(db, events, customers)
	payments := NewPaymentService(db, orders)
	platformSync := NewPlatformSyncService(db, orders, payments, clients)
	orders.Platforms = platformSync

	return &Container{
		Customers:    customers,
		Orders:       orders,
		KOTs:         NewKOTService(db, events, orders),
		Payments:     payments,
		PlatformSync: platformSync,
		SyncQueue:    NewSyncQueueService(db),
	}
}
