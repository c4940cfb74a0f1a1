package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	PlatformSwiggy = "swiggy"
	PlatformZomato = "zomato"
)

func IsValidPlatform(p string) bool {
	return p == PlatformSwiggy || p == PlatformZomato
}

// IntegrationSettings is the decoded form of PlatformIntegration.Settings.
type IntegrationSettings struct {
	AutoAccept bool `json:"auto_accept"`
	Poll       bool `json:"poll"`
}

type PlatformIntegration struct {
	ID                   uint                  `gorm:"primaryKey" json:"id"`
	TenantID             uint                  `gorm:"not null;index" json:"tenant_id"`
	OutletID             uint                  `gorm:"not null;uniqueIndex:idx_integration_outlet_platform" json:"outlet_id"`
	Platform             string                `gorm:"type:varchar(20);not null;uniqueIndex:idx_integration_outlet_platform" json:"platform"`
	ExternalRestaurantID string                `gorm:"type:varchar(100);not null" json:"external_restaurant_id"`
	IsActive             bool                  `gorm:"not null" json:"is_active"`
	Settings             datatypes.JSON        `json:"settings,omitempty"`
	LastSyncedAt         *time.Time            `json:"last_synced_at,omitempty"`
	ItemMappings         []PlatformItemMapping `gorm:"foreignKey:IntegrationID" json:"item_mappings,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Options decodes Settings. Malformed or empty settings yield the zero value.
func (p *PlatformIntegration) Options() IntegrationSettings {
	var s IntegrationSettings
	if len(p.Settings) > 0 {
		_ = json.Unmarshal(p.Settings, &s)
	}
	return s
}

type PlatformItemMapping struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	IntegrationID  uint      `gorm:"not null;uniqueIndex:idx_mapping_integration_item" json:"integration_id"`
	DishID         uint      `gorm:"not null;index" json:"dish_id"`
	ExternalItemID string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_mapping_integration_item" json:"external_item_id"`
	CreatedAt      time.Time `json:"created_at"`
}
