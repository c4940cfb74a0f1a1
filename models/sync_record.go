package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SyncPush = "push"
	SyncPull = "pull"
)

const (
	SyncPending   = "pending"
	SyncCompleted = "completed"
	SyncFailed    = "failed"
)

const (
	EntityTable = "table"
	EntityDish  = "dish"
	EntityOrder = "order"
)

const (
	StrategyServerWins = "server-wins"
	StrategyClientWins = "client-wins"
	StrategyMerge      = "merge"
)

func IsValidStrategy(s string) bool {
	return s == StrategyServerWins || s == StrategyClientWins || s == StrategyMerge
}

// SyncRecord is one entry of the offline device sync queue.
type SyncRecord struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	OutletID        uint           `gorm:"not null;index" json:"outlet_id"`
	DeviceID        string         `gorm:"type:varchar(100);not null;index" json:"device_id"`
	Direction       string         `gorm:"type:varchar(10);not null" json:"direction"`
	EntityType      string         `gorm:"type:varchar(20)" json:"entity_type,omitempty"`
	EntityID        uint           `json:"entity_id,omitempty"`
	Operation       string         `gorm:"type:varchar(20)" json:"operation,omitempty"`
	Payload         datatypes.JSON `json:"payload,omitempty"`
	Base            datatypes.JSON `json:"base,omitempty"`
	ServerSnapshot  datatypes.JSON `json:"server_snapshot,omitempty"`
	ClientUpdatedAt *time.Time     `json:"client_updated_at,omitempty"`
	Status          string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Conflict        bool           `gorm:"not null;default:false;index" json:"conflict"`
	Error           string         `gorm:"type:text" json:"error,omitempty"`
	Strategy        string         `gorm:"type:varchar(20)" json:"strategy,omitempty"`
	ResolvedBy      *uint          `json:"resolved_by,omitempty"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
