package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// fifoOrder sorts dated batches before undated ones, earliest expiry
// first, with creation time and id as stable tiebreaks. This is the
// consumption order the allocation walk relies on.
const fifoOrder = "(expiry_date IS NULL) ASC, expiry_date ASC, created_at ASC, id ASC"

// Repository owns inventory batch persistence. Quantity changes go
// through the guarded Consume/Restore methods; rows are never deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, batch *models.InventoryBatch) error
	Save(ctx context.Context, batch *models.InventoryBatch) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryBatch, error)
	FindByNaturalKey(ctx context.Context, productID uuid.UUID, batchNumber string, expiryDate *time.Time) (*models.InventoryBatch, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, activeOnly bool) ([]models.InventoryBatch, error)
	EligibleForAllocation(ctx context.Context, productID uuid.UUID, asOf time.Time) ([]models.InventoryBatch, error)
	Consume(ctx context.Context, batchID uuid.UUID, qty int) (bool, error)
	Restore(ctx context.Context, batchID uuid.UUID, qty int) (bool, error)
	MarkDepletedIfEmpty(ctx context.Context, batchID uuid.UUID) (bool, error)
	FindExpiredActive(ctx context.Context, asOf time.Time) ([]models.InventoryBatch, error)
	MarkExpired(ctx context.Context, batchID uuid.UUID) error
	ProductExists(ctx context.Context, productID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a batch repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, batch *models.InventoryBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) Save(ctx context.Context, batch *models.InventoryBatch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryBatch, error) {
	var batch models.InventoryBatch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) FindByNaturalKey(ctx context.Context, productID uuid.UUID, batchNumber string, expiryDate *time.Time) (*models.InventoryBatch, error) {
	q := r.db.WithContext(ctx).
		Where("product_id = ? AND batch_number = ?", productID, batchNumber)
	if expiryDate == nil {
		q = q.Where("expiry_date IS NULL")
	} else {
		q = q.Where("expiry_date = ?", expiryDate.Format("2006-01-02"))
	}
	var batch models.InventoryBatch
	if err := q.First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, activeOnly bool) ([]models.InventoryBatch, error) {
	q := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order(fifoOrder)
	if activeOnly {
		q = q.Where("status = ?", enums.BatchStatusActive)
	}
	var batches []models.InventoryBatch
	if err := q.Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

// EligibleForAllocation returns the product's consumable batches in
// FIFO order: active, and either undated or not yet expired as of the
// given day.
func (r *repository) EligibleForAllocation(ctx context.Context, productID uuid.UUID, asOf time.Time) ([]models.InventoryBatch, error) {
	var batches []models.InventoryBatch
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Where("status = ?", enums.BatchStatusActive).
		Where("available_quantity > 0").
		Where("expiry_date IS NULL OR expiry_date >= ?", asOf.Format("2006-01-02")).
		Order(fifoOrder).
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

// Consume is a compare-and-swap decrement. Zero rows affected means a
// concurrent allocation got there first; the caller treats it as a
// failed take, not an error.
func (r *repository) Consume(ctx context.Context, batchID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_batches
		SET available_quantity = available_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_quantity >= ?
	`, qty, batchID, qty)
	return res.RowsAffected > 0, res.Error
}

// Restore puts quantity back on a batch and reactivates it if the
// earlier consumption had depleted it.
func (r *repository) Restore(ctx context.Context, batchID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_batches
		SET available_quantity = available_quantity + ?,
			status = CASE WHEN status = ? THEN ? ELSE status END,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, qty, enums.BatchStatusDepleted, enums.BatchStatusActive, batchID)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) MarkDepletedIfEmpty(ctx context.Context, batchID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventory_batches
		SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND available_quantity = 0 AND status = ?
	`, enums.BatchStatusDepleted, batchID, enums.BatchStatusActive)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) FindExpiredActive(ctx context.Context, asOf time.Time) ([]models.InventoryBatch, error) {
	var batches []models.InventoryBatch
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.BatchStatusActive).
		Where("expiry_date IS NOT NULL AND expiry_date < ?", asOf.Format("2006-01-02")).
		Order("expiry_date ASC, id ASC").
		Find(&batches).Error
	if err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) MarkExpired(ctx context.Context, batchID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Where("id = ?", batchID).
		Update("status", enums.BatchStatusExpired).Error
}

func (r *repository) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Count(&count).Error
	return count > 0, err
}
