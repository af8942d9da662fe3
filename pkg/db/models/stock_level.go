package models

import (
	"time"

	"github.com/google/uuid"
)

// StockLevel tracks available/reserved counts per product. It is the
// denormalized sum of the product's active batches and is only mutated
// through guarded updates that refuse to go negative.
type StockLevel struct {
	ProductID         uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	AvailableQuantity int       `gorm:"column:available_quantity;not null;default:0"`
	ReservedQuantity  int       `gorm:"column:reserved_quantity;not null;default:0"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
