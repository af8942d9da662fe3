package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// OrderConfirmedEvent is emitted once stock has been allocated to an order.
type OrderConfirmedEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CostPrice   decimal.Decimal `json:"cost_price"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

// OrderCanceledEvent is emitted when a confirmed order is canceled and
// its stock restored.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	CanceledAt time.Time `json:"canceled_at"`
	Restocked  bool      `json:"restocked"`
}

// OrderReturnedEvent is emitted when a delivered or completed order comes back.
type OrderReturnedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	ReturnedAt time.Time `json:"returned_at"`
}

// OrderStatusChangedEvent covers the remaining lifecycle hops.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
}

// StockLowEvent fires when a product's available stock drops to or below
// the configured alert threshold.
type StockLowEvent struct {
	ProductID         uuid.UUID `json:"product_id"`
	AvailableQuantity int       `json:"available_quantity"`
	Threshold         int       `json:"threshold"`
}

// BatchExpiredEvent reports a batch the expiry sweep took out of rotation.
type BatchExpiredEvent struct {
	BatchID         uuid.UUID `json:"batch_id"`
	ProductID       uuid.UUID `json:"product_id"`
	ExpiredQuantity int       `json:"expired_quantity"`
	ExpiryDate      time.Time `json:"expiry_date"`
}
