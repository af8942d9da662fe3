package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// OrderItem is one product line on an order.
type OrderItem struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID uuid.UUID             `gorm:"column:product_id;type:uuid;not null"`
	Quantity  int                   `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal       `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Status    enums.OrderItemStatus `gorm:"column:status;type:order_item_status_enum;not null;default:normal"`
	Batches   []OrderItemBatch      `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE"`
}
