package enums

import "fmt"

// AdjustmentType marks a bookkeeping entry as a gain or a loss.
type AdjustmentType string

const (
	AdjustmentLoss AdjustmentType = "loss"
	AdjustmentGain AdjustmentType = "gain"
)

// IsValid reports whether the value is a known AdjustmentType.
func (a AdjustmentType) IsValid() bool {
	return a == AdjustmentLoss || a == AdjustmentGain
}

// AdjustmentSourceKind tags the stock-affecting event an adjustment
// belongs to. Modeled as an explicit kind rather than a dynamic relation
// so each variant can own its reversal behavior.
type AdjustmentSourceKind string

const (
	AdjustmentSourceDamagedGoods AdjustmentSourceKind = "damaged_goods"
)

// IsValid reports whether the value is a known AdjustmentSourceKind.
func (a AdjustmentSourceKind) IsValid() bool {
	return a == AdjustmentSourceDamagedGoods
}

// ParseAdjustmentSourceKind converts raw input into an AdjustmentSourceKind.
func ParseAdjustmentSourceKind(value string) (AdjustmentSourceKind, error) {
	kind := AdjustmentSourceKind(value)
	if !kind.IsValid() {
		return "", fmt.Errorf("invalid adjustment source kind %q", value)
	}
	return kind, nil
}
