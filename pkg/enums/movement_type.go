package enums

import "fmt"

// MovementType classifies an entry in the append-only stock movement log.
type MovementType string

const (
	MovementSale            MovementType = "sale"
	MovementRestock         MovementType = "restock"
	MovementReservation     MovementType = "reservation"
	MovementAdjustment      MovementType = "adjustment"
	MovementDamaged         MovementType = "damaged"
	MovementDamagedReversal MovementType = "damaged_reversal"
	MovementReturn          MovementType = "return"
)

var validMovementTypes = []MovementType{
	MovementSale,
	MovementRestock,
	MovementReservation,
	MovementAdjustment,
	MovementDamaged,
	MovementDamagedReversal,
	MovementReturn,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
