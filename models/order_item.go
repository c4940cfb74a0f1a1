package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	ItemPending   = "pending"
	ItemPreparing = "preparing"
	ItemReady     = "ready"
	ItemServed    = "served"
	ItemCancelled = "cancelled"
)

type OrderItem struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	OrderID        uint            `gorm:"not null;index" json:"order_id"`
	DishID         uint            `gorm:"not null;index" json:"dish_id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Quantity       int             `gorm:"not null" json:"quantity"`
	Price          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	KitchenSection string          `gorm:"type:varchar(50);not null" json:"kitchen_section"`
	Notes          string          `gorm:"type:text" json:"notes,omitempty"`
	Status         string          `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
