package movements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// Repository persists and reads movement log rows. The log is
// append-only; there are deliberately no update or delete methods.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, movement *models.StockMovement) error
	ListByProduct(ctx context.Context, productID uuid.UUID, filter ListFilter) ([]models.StockMovement, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.StockMovement, error)
}

// ListFilter narrows movement log reads.
type ListFilter struct {
	Type   *enums.MovementType
	Limit  int
	Offset int
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a movements repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, filter ListFilter) ([]models.StockMovement, error) {
	q := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Order("id DESC")
	if filter.Type != nil {
		q = q.Where("movement_type = ?", *filter.Type)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var rows []models.StockMovement
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.StockMovement, error) {
	var rows []models.StockMovement
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
