package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// InventoryBatch is a single purchased lot of a product. Batches carry
// their own cost and expiry so the same product can exist at several
// price points at once. The (product, batch number, expiry) triple is
// unique; two receipts of the same lot top up the existing row instead.
type InventoryBatch struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProductID         uuid.UUID         `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_batches_product_number_expiry"`
	BatchNumber       string            `gorm:"column:batch_number;not null;uniqueIndex:idx_batches_product_number_expiry"`
	ExpiryDate        *time.Time        `gorm:"column:expiry_date;type:date;uniqueIndex:idx_batches_product_number_expiry"`
	CostPrice         decimal.Decimal   `gorm:"column:cost_price;type:numeric(12,2);not null"`
	SellingPrice      decimal.Decimal   `gorm:"column:selling_price;type:numeric(12,2);not null"`
	InitialQuantity   int               `gorm:"column:initial_quantity;not null"`
	AvailableQuantity int               `gorm:"column:available_quantity;not null;default:0"`
	Status            enums.BatchStatus `gorm:"column:status;type:batch_status_enum;not null;default:active"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
