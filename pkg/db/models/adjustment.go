package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// Adjustment is a monetary bookkeeping entry tied to a stock-affecting
// event. The (SourceKind, SourceID) pair points at the originating
// record, for example a damaged goods report.
type Adjustment struct {
	ID         uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	Type       enums.AdjustmentType       `gorm:"column:type;type:adjustment_type_enum;not null"`
	Amount     decimal.Decimal            `gorm:"column:amount;type:numeric(12,2);not null"`
	SourceKind enums.AdjustmentSourceKind `gorm:"column:source_kind;type:adjustment_source_enum;not null;index:idx_adjustments_source"`
	SourceID   uuid.UUID                  `gorm:"column:source_id;type:uuid;not null;index:idx_adjustments_source"`
	Note       *string                    `gorm:"column:note"`
	CreatedAt  time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
