package enums

// OrderItemStatus marks whether a line item has been returned.
type OrderItemStatus string

const (
	OrderItemStatusNormal   OrderItemStatus = "normal"
	OrderItemStatusReturned OrderItemStatus = "returned"
)

// IsValid reports whether the value is a known OrderItemStatus.
func (o OrderItemStatus) IsValid() bool {
	return o == OrderItemStatusNormal || o == OrderItemStatusReturned
}
