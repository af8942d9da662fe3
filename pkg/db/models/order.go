package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// Order is a client order moving through the fulfillment state machine.
// ClientID, CreatedByAdminID and DeliveryID reference records owned by
// external collaborators; they are opaque here.
type Order struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ClientID         *uuid.UUID            `gorm:"column:client_id;type:uuid"`
	CreatedByAdminID *uuid.UUID            `gorm:"column:created_by_admin_id;type:uuid"`
	Status           enums.OrderStatus     `gorm:"column:status;type:order_status_enum;not null;default:pending"`
	Source           enums.OrderSource     `gorm:"column:source;type:order_source_enum;not null"`
	DeliveryMethod   *enums.DeliveryMethod `gorm:"column:delivery_method;type:delivery_method_enum"`
	DeliveryID       *uuid.UUID            `gorm:"column:delivery_id;type:uuid"`
	TotalAmount      decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null;default:0"`
	CostPrice        decimal.Decimal       `gorm:"column:cost_price;type:numeric(12,2);not null;default:0"`
	Note             *string               `gorm:"column:note"`
	Items            []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	ConfirmedAt      *time.Time            `gorm:"column:confirmed_at"`
	ClosedAt         *time.Time            `gorm:"column:closed_at"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
