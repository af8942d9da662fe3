package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// StockMovement is one row in the append-only movement log. Rows are
// written inside the same transaction as the stock change they describe
// and are never updated or deleted afterwards; reversals are new rows
// with the opposite sign.
//
// AvailableChange is signed: negative for sales and damage write-offs,
// positive for restocks, returns and reversals. Quantity is the absolute
// number of units the movement touched. BatchNumber, ExpiryDate and
// CostPrice are snapshots taken at write time so the log stays readable
// even after the batch row changes.
type StockMovement struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID          `gorm:"column:product_id;type:uuid;not null;index"`
	BatchID         *uuid.UUID         `gorm:"column:batch_id;type:uuid;index"`
	MovementType    enums.MovementType `gorm:"column:movement_type;type:movement_type_enum;not null"`
	Quantity        int                `gorm:"column:quantity;not null"`
	AvailableChange int                `gorm:"column:available_change;not null"`
	CostPrice       *decimal.Decimal   `gorm:"column:cost_price;type:numeric(12,2)"`
	BatchNumber     *string            `gorm:"column:batch_number"`
	ExpiryDate      *time.Time         `gorm:"column:expiry_date;type:date"`
	ReferenceKind   *string            `gorm:"column:reference_kind"`
	ReferenceID     *uuid.UUID         `gorm:"column:reference_id;type:uuid"`
	Reason          *string            `gorm:"column:reason"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime;index"`
}
