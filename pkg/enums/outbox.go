package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateProduct OutboxAggregateType = "product"
	AggregateBatch   OutboxAggregateType = "batch"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateProduct,
	AggregateBatch,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderConfirmed     OutboxEventType = "order_confirmed"
	EventOrderCanceled      OutboxEventType = "order_canceled"
	EventOrderReturned      OutboxEventType = "order_returned"
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventStockLow           OutboxEventType = "stock_low"
	EventBatchExpired       OutboxEventType = "batch_expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderConfirmed,
	EventOrderCanceled,
	EventOrderReturned,
	EventOrderStatusChanged,
	EventStockLow,
	EventBatchExpired,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
