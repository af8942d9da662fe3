package damaged

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/internal/inventory"
	"github.com/stocklinehq/stockline-backend/internal/movements"
	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
)

const refKindDamagedGoods = "damaged_goods"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockMutator interface {
	AddTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	DeductTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type movementLogger interface {
	Log(ctx context.Context, tx *gorm.DB, entry movements.Entry) error
}

// ReportInput describes one write-off against a specific batch.
type ReportInput struct {
	ProductID uuid.UUID
	BatchID   uuid.UUID
	Quantity  int
	Reason    *string
}

// Service is the damaged goods ledger. A report takes stock out of a
// batch and books the loss; a reversal is the exact inverse and removes
// the report and its adjustment entirely.
type Service interface {
	Report(ctx context.Context, input ReportInput) (*models.DamagedGood, error)
	Reverse(ctx context.Context, reportID uuid.UUID) error
	Get(ctx context.Context, reportID uuid.UUID) (*models.DamagedGood, error)
	List(ctx context.Context, filter ListFilter) ([]models.DamagedGood, error)
}

type service struct {
	repo     Repository
	batches  inventory.Repository
	tx       txRunner
	stock    stockMutator
	movement movementLogger
	logg     *logger.Logger
}

// NewService builds the damaged goods service.
func NewService(repo Repository, batches inventory.Repository, tx txRunner, stock stockMutator, movement movementLogger, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("damaged goods repository required")
	}
	if batches == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("stock mutator required")
	}
	if movement == nil {
		return nil, fmt.Errorf("movement logger required")
	}
	return &service{repo: repo, batches: batches, tx: tx, stock: stock, movement: movement, logg: logg}, nil
}

func (s *service) Report(ctx context.Context, input ReportInput) (*models.DamagedGood, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.BatchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var result *models.DamagedGood
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		batches := s.batches.WithTx(tx)
		batch, err := batches.FindByID(ctx, input.BatchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch")
		}
		if batch.ProductID != input.ProductID {
			return pkgerrors.New(pkgerrors.CodeValidation, "batch does not belong to product")
		}
		if input.Quantity > batch.AvailableQuantity {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("batch %s: cannot write off %d of %d available", batch.BatchNumber, input.Quantity, batch.AvailableQuantity))
		}

		ok, err := batches.Consume(ctx, batch.ID, input.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement batch")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "batch consumed concurrently")
		}
		if input.Quantity == batch.AvailableQuantity {
			if _, err := batches.MarkDepletedIfEmpty(ctx, batch.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark batch depleted")
			}
		}

		cost := batch.CostPrice
		batchID := batch.ID
		report := &models.DamagedGood{
			ID:        uuid.New(),
			ProductID: batch.ProductID,
			BatchID:   &batchID,
			Quantity:  input.Quantity,
			CostPrice: &cost,
			Reason:    input.Reason,
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, report); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create damaged goods report")
		}

		refKind := refKindDamagedGoods
		reportID := report.ID
		if err := s.movement.Log(ctx, tx, movements.Entry{
			ProductID:       batch.ProductID,
			BatchID:         &batchID,
			Type:            enums.MovementDamaged,
			Quantity:        input.Quantity,
			AvailableChange: -input.Quantity,
			CostPrice:       &cost,
			BatchNumber:     &batch.BatchNumber,
			ExpiryDate:      batch.ExpiryDate,
			ReferenceKind:   &refKind,
			ReferenceID:     &reportID,
			Reason:          input.Reason,
		}); err != nil {
			return err
		}

		if err := s.stock.DeductTx(ctx, tx, batch.ProductID, input.Quantity); err != nil {
			return err
		}

		loss := cost.Mul(decimal.NewFromInt(int64(input.Quantity)))
		adjustment := &models.Adjustment{
			ID:         uuid.New(),
			Type:       enums.AdjustmentLoss,
			Amount:     loss,
			SourceKind: enums.AdjustmentSourceDamagedGoods,
			SourceID:   report.ID,
			Note:       input.Reason,
		}
		if err := repo.CreateAdjustment(ctx, adjustment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create loss adjustment")
		}

		result = report
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reverse undoes a report in one atomic unit: the batch and aggregate
// get the quantity back, an offsetting movement lands in the log, and
// the report plus its loss adjustment disappear.
func (s *service) Reverse(ctx context.Context, reportID uuid.UUID) error {
	if reportID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "report id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		report, err := repo.FindByID(ctx, reportID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "damaged goods report not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load damaged goods report")
		}
		if report.BatchID == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "batch no longer exists, cannot reverse")
		}

		ok, err := repo.Delete(ctx, report.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete damaged goods report")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "report reversed concurrently")
		}

		batches := s.batches.WithTx(tx)
		restored, err := batches.Restore(ctx, *report.BatchID, report.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore batch")
		}
		if !restored {
			return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found for reversal")
		}

		refKind := refKindDamagedGoods
		id := report.ID
		if err := s.movement.Log(ctx, tx, movements.Entry{
			ProductID:       report.ProductID,
			BatchID:         report.BatchID,
			Type:            enums.MovementDamagedReversal,
			Quantity:        report.Quantity,
			AvailableChange: report.Quantity,
			CostPrice:       report.CostPrice,
			ReferenceKind:   &refKind,
			ReferenceID:     &id,
			Reason:          report.Reason,
		}); err != nil {
			return err
		}

		if err := s.stock.AddTx(ctx, tx, report.ProductID, report.Quantity); err != nil {
			return err
		}

		if err := repo.DeleteAdjustmentsForSource(ctx, enums.AdjustmentSourceDamagedGoods, report.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete loss adjustment")
		}
		return nil
	})
}

func (s *service) Get(ctx context.Context, reportID uuid.UUID) (*models.DamagedGood, error) {
	if reportID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "report id required")
	}
	report, err := s.repo.FindByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "damaged goods report not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load damaged goods report")
	}
	return report, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) ([]models.DamagedGood, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	reports, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list damaged goods")
	}
	return reports, nil
}
