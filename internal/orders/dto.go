package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// CreateOrderItemInput is one requested product line.
type CreateOrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// CreateOrderInput carries everything needed to open an order. When
// CreatedByAdminID is set the order is confirmed and allocated in the
// same call instead of waiting in pending.
type CreateOrderInput struct {
	ClientID         *uuid.UUID
	CreatedByAdminID *uuid.UUID
	Source           enums.OrderSource
	DeliveryMethod   *enums.DeliveryMethod
	Note             *string
	Items            []CreateOrderItemInput
}

// OrderFilters narrow the order list.
type OrderFilters struct {
	Status   *enums.OrderStatus
	Source   *enums.OrderSource
	ClientID *uuid.UUID
	DateFrom *time.Time
	DateTo   *time.Time
}

// OrderList wraps one page of orders plus the next page cursor.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ItemBatchDetail joins an order item with one batch it consumed from,
// used to put stock back on cancellation or return.
type ItemBatchDetail struct {
	OrderItemID uuid.UUID
	ProductID   uuid.UUID
	BatchID     uuid.UUID
	Quantity    int
	CostPrice   decimal.Decimal
}
