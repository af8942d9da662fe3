package enums

import "fmt"

// DeliveryMethod is how a confirmed order reaches the client.
type DeliveryMethod string

const (
	DeliveryMethodDelivery      DeliveryMethod = "delivery"
	DeliveryMethodShipping      DeliveryMethod = "shipping"
	DeliveryMethodHandDelivered DeliveryMethod = "hand_delivered"
)

var validDeliveryMethods = []DeliveryMethod{
	DeliveryMethodDelivery,
	DeliveryMethodShipping,
	DeliveryMethodHandDelivered,
}

// IsValid reports whether the value is a known DeliveryMethod.
func (d DeliveryMethod) IsValid() bool {
	for _, candidate := range validDeliveryMethods {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryMethod converts raw input into a DeliveryMethod.
func ParseDeliveryMethod(value string) (DeliveryMethod, error) {
	for _, candidate := range validDeliveryMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery method %q", value)
}
