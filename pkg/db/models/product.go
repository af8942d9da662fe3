package models

import (
	"time"

	"github.com/google/uuid"
)

// Product represents a sellable catalog entry. Pricing lives on the
// inventory batches; the product row is the identity stock hangs off.
type Product struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SKU        string           `gorm:"column:sku;not null;uniqueIndex"`
	Name       string           `gorm:"column:name;not null"`
	Unit       string           `gorm:"column:unit;not null;default:piece"`
	IsActive   bool             `gorm:"column:is_active;not null;default:true"`
	StockLevel *StockLevel      `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Batches    []InventoryBatch `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
