package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	TenantCompany = "company"
	TenantBrand   = "brand"
	TenantOutlet  = "outlet"
)

// Tenant is one node of the company -> brand -> outlet hierarchy.
// RootID always points at the company.
type Tenant struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	Type      string          `gorm:"type:varchar(20);not null;index" json:"type"`
	ParentID  *uint           `gorm:"index" json:"parent_id,omitempty"`
	RootID    uint            `gorm:"index" json:"root_id"`
	TaxRate   decimal.Decimal `gorm:"type:decimal(6,4);not null;default:0" json:"tax_rate"`
	Address   string          `gorm:"type:varchar(500)" json:"address,omitempty"`
	Settings  datatypes.JSON  `json:"settings,omitempty"`
	IsActive  bool            `gorm:"not null" json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ValidParentType reports which parent type a tenant of type t must have.
// Companies have no parent.
func ValidParentType(t string) (string, bool) {
	switch t {
	case TenantCompany:
		return "", true
	case TenantBrand:
		return TenantCompany, true
	case TenantOutlet:
		return TenantBrand, true
	}
	return "", false
}
