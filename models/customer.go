package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	TenantID      uint            `gorm:"not null;uniqueIndex:idx_customer_tenant_phone" json:"tenant_id"`
	Name          string          `gorm:"type:varchar(255)" json:"name"`
	Phone         string          `gorm:"type:varchar(32);not null;uniqueIndex:idx_customer_tenant_phone" json:"phone"`
	Email         string          `gorm:"type:varchar(255)" json:"email,omitempty"`
	VisitCount    int             `gorm:"not null;default:0" json:"visit_count"`
	TotalSpent    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_spent"`
	LoyaltyPoints int             `gorm:"not null;default:0" json:"loyalty_points"`
	LastVisitAt   *time.Time      `json:"last_visit_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// LoyaltyPointsFor returns the points earned for an order total: one per 100 spent.
func LoyaltyPointsFor(total decimal.Decimal) int {
	return int(total.Div(decimal.NewFromInt(100)).Floor().IntPart())
}
