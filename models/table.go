package models

import "time"

const (
	TableAvailable = "available"
	TableOccupied  = "occupied"
	TableReserved  = "reserved"
	TableCleaning  = "cleaning"
)

func IsValidTableStatus(s string) bool {
	switch s {
	case TableAvailable, TableOccupied, TableReserved, TableCleaning:
		return true
	}
	return false
}

type Table struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OutletID       uint      `gorm:"not null;uniqueIndex:idx_table_outlet_number" json:"outlet_id"`
	Number         string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_table_outlet_number" json:"number"`
	Capacity       int       `gorm:"not null;default:4" json:"capacity"`
	Status         string    `gorm:"type:varchar(20);not null;default:'available'" json:"status"`
	CurrentOrderID *uint     `json:"current_order_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
