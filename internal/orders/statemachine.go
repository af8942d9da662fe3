package orders

import (
	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// allowedNext returns the statuses an order may move to from its current
// state. The path out of confirmed depends on where the order ships and
// how it reaches the client: hand-delivered city orders close directly,
// courier city orders pass through delivered, and out-of-town orders
// pass through shipped. A confirmed city order with no delivery method
// chosen yet can only be canceled.
func allowedNext(order *models.Order) []enums.OrderStatus {
	switch order.Status {
	case enums.OrderStatusPending:
		return []enums.OrderStatus{
			enums.OrderStatusConfirmed,
			enums.OrderStatusRejected,
			enums.OrderStatusCanceled,
		}
	case enums.OrderStatusConfirmed:
		if order.Source == enums.OrderSourceOutsideCity {
			return []enums.OrderStatus{enums.OrderStatusShipped, enums.OrderStatusCanceled}
		}
		if order.DeliveryMethod != nil {
			switch *order.DeliveryMethod {
			case enums.DeliveryMethodHandDelivered:
				return []enums.OrderStatus{enums.OrderStatusDone, enums.OrderStatusCanceled}
			case enums.DeliveryMethodDelivery:
				return []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCanceled}
			}
		}
		return []enums.OrderStatus{enums.OrderStatusCanceled}
	case enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return []enums.OrderStatus{
			enums.OrderStatusDone,
			enums.OrderStatusReturned,
			enums.OrderStatusCanceled,
		}
	case enums.OrderStatusDone:
		return []enums.OrderStatus{enums.OrderStatusReturned}
	default:
		return nil
	}
}

func canTransition(order *models.Order, to enums.OrderStatus) bool {
	for _, status := range allowedNext(order) {
		if status == to {
			return true
		}
	}
	return false
}

// restocksOnCancel reports whether canceling from this status must put
// allocated stock back. Pending orders never allocated anything.
func restocksOnCancel(from enums.OrderStatus) bool {
	switch from {
	case enums.OrderStatusConfirmed, enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return true
	default:
		return false
	}
}

// methodMatchesSource checks that the delivery method is one the order's
// source supports: city orders go out by courier or by hand, out-of-town
// orders only ship.
func methodMatchesSource(source enums.OrderSource, method enums.DeliveryMethod) bool {
	switch source {
	case enums.OrderSourceInsideCity:
		return method == enums.DeliveryMethodDelivery || method == enums.DeliveryMethodHandDelivered
	case enums.OrderSourceOutsideCity:
		return method == enums.DeliveryMethodShipping
	default:
		return false
	}
}
