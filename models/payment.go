package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MethodCash     = "cash"
	MethodCard     = "card"
	MethodUPI      = "upi"
	MethodWallet   = "wallet"
	MethodPlatform = "platform"
)

func IsValidPaymentMethod(m string) bool {
	switch m {
	case MethodCash, MethodCard, MethodUPI, MethodWallet, MethodPlatform:
		return true
	}
	return false
}

type Payment struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	OrderID    uint            `gorm:"not null;index" json:"order_id"`
	OutletID   uint            `gorm:"not null;index" json:"outlet_id"`
	Amount     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Method     string          `gorm:"type:varchar(20);not null" json:"method"`
	Reference  string          `gorm:"type:varchar(100)" json:"reference,omitempty"`
	Tendered   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tendered"`
	Change     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"change"`
	ReceivedBy *uint           `json:"received_by,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}
