package models

import "time"

const (
	KOTPending   = "pending"
	KOTPreparing = "preparing"
	KOTReady     = "ready"
	KOTCancelled = "cancelled"
)

var kotFlow = map[string]string{
	KOTPending:   KOTPreparing,
	KOTPreparing: KOTReady,
}

// CanAdvanceKOT allows pending -> preparing -> ready, and pending -> ready
// for sections that skip the preparing step.
func CanAdvanceKOT(from, to string) bool {
	if kotFlow[from] == to {
		return true
	}
	return from == KOTPending && to == KOTReady
}

// KOT is a kitchen order ticket: the items of one order routed to one kitchen section.
type KOT struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrderID        uint       `gorm:"not null;index" json:"order_id"`
	OutletID       uint       `gorm:"not null;index" json:"outlet_id"`
	KOTNumber      string     `gorm:"column:kot_number;type:varchar(40);not null;uniqueIndex" json:"kot_number"`
	KitchenSection string     `gorm:"type:varchar(50);not null;index" json:"kitchen_section"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Items          []KOTItem  `gorm:"foreignKey:KOTID" json:"items,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ReadyAt        *time.Time `json:"ready_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (KOT) TableName() string {
	return "kots"
}

type KOTItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	KOTID       uint      `gorm:"column:kot_id;not null;index" json:"kot_id"`
	OrderItemID uint      `gorm:"not null;index" json:"order_item_id"`
	DishID      uint      `gorm:"not null" json:"dish_id"`
	Name        string    `gorm:"type:varchar(255);not null" json:"name"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	Notes       string    `gorm:"type:text" json:"notes,omitempty"`
	Status      string    `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (KOTItem) TableName() string {
	return "kot_items"
}
