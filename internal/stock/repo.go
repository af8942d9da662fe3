package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
)

// Repository owns the per-product stock aggregate rows. All mutators are
// guarded raw UPDATEs: the WHERE clause carries the invariant, and zero
// rows affected means the change would have driven a counter negative.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error)
	EnsureRow(ctx context.Context, productID uuid.UUID) error
	Add(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Deduct(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Reserve(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	Release(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	RecomputeAvailable(ctx context.Context, productID uuid.UUID, asOf time.Time) (int, error)
	SetAvailable(ctx context.Context, productID uuid.UUID, qty int) error
	ListProductIDs(ctx context.Context) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, productID uuid.UUID) (*models.StockLevel, error) {
	var level models.StockLevel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		First(&level).Error
	if err != nil {
		return nil, err
	}
	return &level, nil
}

// EnsureRow creates the zero-valued aggregate row if missing.
func (r *repository) EnsureRow(ctx context.Context, productID uuid.UUID) error {
	row := models.StockLevel{ProductID: productID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (r *repository) Add(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET available_quantity = available_quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, qty, productID)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) Deduct(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET available_quantity = available_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_quantity >= ?
	`, qty, productID, qty)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) Reserve(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET available_quantity = available_quantity - ?,
			reserved_quantity = reserved_quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND available_quantity >= ?
	`, qty, qty, productID, qty)
	return res.RowsAffected > 0, res.Error
}

func (r *repository) Release(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET available_quantity = available_quantity + ?,
			reserved_quantity = reserved_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ? AND reserved_quantity >= ?
	`, qty, qty, productID, qty)
	return res.RowsAffected > 0, res.Error
}

// RecomputeAvailable sums the product's active, unexpired batches.
func (r *repository) RecomputeAvailable(ctx context.Context, productID uuid.UUID, asOf time.Time) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.InventoryBatch{}).
		Select("COALESCE(SUM(available_quantity), 0)").
		Where("product_id = ?", productID).
		Where("status = ?", enums.BatchStatusActive).
		Where("expiry_date IS NULL OR expiry_date >= ?", asOf.Format("2006-01-02")).
		Scan(&total).Error
	return total, err
}

func (r *repository) SetAvailable(ctx context.Context, productID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE stock_levels
		SET available_quantity = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE product_id = ?
	`, qty, productID).Error
}

func (r *repository) ListProductIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.StockLevel{}).
		Order("product_id ASC").
		Pluck("product_id", &ids).Error
	return ids, err
}
