package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DamagedGood is a write-off of stock that can no longer be sold.
// Reporting one deducts stock and books a loss adjustment; reversing
// one restores the stock and removes this row and its adjustment, so a
// surviving row always represents a live write-off.
type DamagedGood struct {
	ID        uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductID uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	BatchID   *uuid.UUID       `gorm:"column:batch_id;type:uuid"`
	Quantity  int              `gorm:"column:quantity;not null"`
	CostPrice *decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2)"`
	Reason    *string          `gorm:"column:reason"`
	CreatedAt time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
