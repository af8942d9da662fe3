package enums

import "fmt"

// OrderSource distinguishes in-city orders from orders shipped out of town.
type OrderSource string

const (
	OrderSourceInsideCity  OrderSource = "inside_city"
	OrderSourceOutsideCity OrderSource = "outside_city"
)

// IsValid reports whether the value is a known OrderSource.
func (o OrderSource) IsValid() bool {
	return o == OrderSourceInsideCity || o == OrderSourceOutsideCity
}

// ParseOrderSource converts raw input into an OrderSource.
func ParseOrderSource(value string) (OrderSource, error) {
	source := OrderSource(value)
	if !source.IsValid() {
		return "", fmt.Errorf("invalid order source %q", value)
	}
	return source, nil
}
