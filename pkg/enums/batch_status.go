package enums

import "fmt"

// BatchStatus tracks the lifecycle of an inventory batch.
type BatchStatus string

const (
	BatchStatusActive   BatchStatus = "active"
	BatchStatusExpired  BatchStatus = "expired"
	BatchStatusDepleted BatchStatus = "depleted"
)

var validBatchStatuses = []BatchStatus{
	BatchStatusActive,
	BatchStatusExpired,
	BatchStatusDepleted,
}

// String implements fmt.Stringer.
func (b BatchStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BatchStatus.
func (b BatchStatus) IsValid() bool {
	for _, candidate := range validBatchStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBatchStatus converts raw input into a BatchStatus.
func ParseBatchStatus(value string) (BatchStatus, error) {
	for _, candidate := range validBatchStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid batch status %q", value)
}
