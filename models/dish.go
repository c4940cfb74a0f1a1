package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultKitchenSection = "kitchen"

type Dish struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	TenantID       uint            `gorm:"not null;index" json:"tenant_id"`
	OutletID       uint            `gorm:"not null;index" json:"outlet_id"`
	Name           string          `gorm:"type:varchar(255);not null" json:"name"`
	Category       string          `gorm:"type:varchar(100);index" json:"category"`
	Description    string          `gorm:"type:text" json:"description,omitempty"`
	Price          decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	KitchenSection string          `gorm:"type:varchar(50);not null;default:'kitchen'" json:"kitchen_section"`
	TrackStock     bool            `gorm:"not null;default:false" json:"track_stock"`
	Stock          int             `gorm:"not null;default:0" json:"stock"`
	IsAvailable    bool            `gorm:"not null" json:"is_available"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
