package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItemBatch records which batch a confirmed line item consumed
// from and at what cost. One line item may span several batches when
// the oldest batch could not cover the full quantity.
type OrderItemBatch struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderItemID uuid.UUID       `gorm:"column:order_item_id;type:uuid;not null;index"`
	BatchID     uuid.UUID       `gorm:"column:batch_id;type:uuid;not null;index"`
	Quantity    int             `gorm:"column:quantity;not null"`
	CostPrice   decimal.Decimal `gorm:"column:cost_price;type:numeric(12,2);not null"`
}
