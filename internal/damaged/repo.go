package damaged

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// Repository persists damaged goods reports and their loss adjustments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, report *models.DamagedGood) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DamagedGood, error)
	List(ctx context.Context, filter ListFilter) ([]models.DamagedGood, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	CreateAdjustment(ctx context.Context, adjustment *models.Adjustment) error
	DeleteAdjustmentsForSource(ctx context.Context, kind enums.AdjustmentSourceKind, sourceID uuid.UUID) error
}

// ListFilter narrows the damaged goods list.
type ListFilter struct {
	ProductID *uuid.UUID
	Limit     int
	Offset    int
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a damaged goods repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, report *models.DamagedGood) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DamagedGood, error) {
	var report models.DamagedGood
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.DamagedGood, error) {
	q := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC")
	if filter.ProductID != nil {
		q = q.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var reports []models.DamagedGood
	if err := q.Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// Delete removes the report. Zero rows affected means a concurrent
// reversal already took it.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.DamagedGood{})
	return res.RowsAffected > 0, res.Error
}

func (r *repository) CreateAdjustment(ctx context.Context, adjustment *models.Adjustment) error {
	return r.db.WithContext(ctx).Create(adjustment).Error
}

func (r *repository) DeleteAdjustmentsForSource(ctx context.Context, kind enums.AdjustmentSourceKind, sourceID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("source_kind = ? AND source_id = ?", kind, sourceID).
		Delete(&models.Adjustment{}).Error
}
