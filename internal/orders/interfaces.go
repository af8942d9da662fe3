package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	"github.com/stocklinehq/stockline-backend/pkg/pagination"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateItemBatches(ctx context.Context, links []models.OrderItemBatch) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	UpdateStatusGuarded(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	MarkItemsReturned(ctx context.Context, orderID uuid.UUID) error
	ListItemBatchDetails(ctx context.Context, orderID uuid.UUID) ([]ItemBatchDetail, error)
}
