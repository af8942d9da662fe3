package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/internal/movements"
	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
	"github.com/stocklinehq/stockline-backend/pkg/outbox"
	"github.com/stocklinehq/stockline-backend/pkg/outbox/payloads"
)

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

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CreateBatchInput is a restock: a new lot, or a top-up of an existing
// (product, batch number, expiry) triple.
type CreateBatchInput struct {
	ProductID    uuid.UUID
	BatchNumber  string
	ExpiryDate   *time.Time
	CostPrice    decimal.Decimal
	SellingPrice decimal.Decimal
	Quantity     int
}

// UpdateBatchInput is a manual correction to an existing batch.
type UpdateBatchInput struct {
	AvailableQuantity *int
	CostPrice         *decimal.Decimal
	SellingPrice      *decimal.Decimal
	Reason            *string
}

// ExpiredBatch reports one batch taken out of rotation by the expiry sweep.
type ExpiredBatch struct {
	BatchID         uuid.UUID
	ProductID       uuid.UUID
	ExpiredQuantity int
	ExpiryDate      time.Time
}

// Service is the batch store: every quantity change it makes is paired
// with a movement row and an aggregate update in the same transaction.
type Service interface {
	CreateBatch(ctx context.Context, input CreateBatchInput) (*models.InventoryBatch, error)
	UpdateBatch(ctx context.Context, batchID uuid.UUID, input UpdateBatchInput) (*models.InventoryBatch, error)
	GetBatch(ctx context.Context, batchID uuid.UUID) (*models.InventoryBatch, error)
	GetBatchesForProduct(ctx context.Context, productID uuid.UUID, activeOnly bool) ([]models.InventoryBatch, error)
	ExpireDue(ctx context.Context, asOf time.Time) ([]ExpiredBatch, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	stock    stockMutator
	movement movementLogger
	outbox   outboxEmitter
	logg     *logger.Logger
}

// NewService builds the batch store service.
func NewService(repo Repository, tx txRunner, stock stockMutator, movement movementLogger, ob outboxEmitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
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
	if ob == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, tx: tx, stock: stock, movement: movement, outbox: ob, logg: logg}, nil
}

func (s *service) CreateBatch(ctx context.Context, input CreateBatchInput) (*models.InventoryBatch, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.BatchNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch number required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.CostPrice.IsNegative() || input.SellingPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prices must not be negative")
	}

	var result *models.InventoryBatch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		exists, err := repo.ProductExists(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		batch, err := repo.FindByNaturalKey(ctx, input.ProductID, input.BatchNumber, input.ExpiryDate)
		switch {
		case err == nil:
			// Same lot received again: top up instead of duplicating.
			if ok, restoreErr := repo.Restore(ctx, batch.ID, input.Quantity); restoreErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, restoreErr, "top up batch")
			} else if !ok {
				return pkgerrors.New(pkgerrors.CodeDependency, "batch disappeared during top up")
			}
			batch, err = repo.FindByID(ctx, batch.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload batch")
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			batch = &models.InventoryBatch{
				ID:                uuid.New(),
				ProductID:         input.ProductID,
				BatchNumber:       input.BatchNumber,
				ExpiryDate:        input.ExpiryDate,
				CostPrice:         input.CostPrice,
				SellingPrice:      input.SellingPrice,
				InitialQuantity:   input.Quantity,
				AvailableQuantity: input.Quantity,
				Status:            enums.BatchStatusActive,
			}
			if err := repo.Create(ctx, batch); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create batch")
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find batch")
		}

		cost := batch.CostPrice
		if err := s.movement.Log(ctx, tx, movements.Entry{
			ProductID:       batch.ProductID,
			BatchID:         &batch.ID,
			Type:            enums.MovementRestock,
			Quantity:        input.Quantity,
			AvailableChange: input.Quantity,
			CostPrice:       &cost,
			BatchNumber:     &batch.BatchNumber,
			ExpiryDate:      batch.ExpiryDate,
		}); err != nil {
			return err
		}

		if err := s.stock.AddTx(ctx, tx, batch.ProductID, input.Quantity); err != nil {
			return err
		}

		result = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateBatch applies a manual correction. A quantity change books an
// adjustment movement and moves the aggregate by the delta; a zero
// delta touches prices only and leaves the ledger alone.
func (s *service) UpdateBatch(ctx context.Context, batchID uuid.UUID, input UpdateBatchInput) (*models.InventoryBatch, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	if input.AvailableQuantity != nil && *input.AvailableQuantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var result *models.InventoryBatch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		batch, err := repo.FindByID(ctx, batchID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch")
		}

		delta := 0
		if input.AvailableQuantity != nil {
			delta = *input.AvailableQuantity - batch.AvailableQuantity
			batch.AvailableQuantity = *input.AvailableQuantity
			switch {
			case batch.AvailableQuantity == 0 && batch.Status == enums.BatchStatusActive:
				batch.Status = enums.BatchStatusDepleted
			case batch.AvailableQuantity > 0 && batch.Status == enums.BatchStatusDepleted:
				batch.Status = enums.BatchStatusActive
			}
		}
		if input.CostPrice != nil {
			batch.CostPrice = *input.CostPrice
		}
		if input.SellingPrice != nil {
			batch.SellingPrice = *input.SellingPrice
		}

		if err := repo.Save(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save batch")
		}

		if delta != 0 {
			qty := delta
			if qty < 0 {
				qty = -qty
			}
			cost := batch.CostPrice
			if err := s.movement.Log(ctx, tx, movements.Entry{
				ProductID:       batch.ProductID,
				BatchID:         &batch.ID,
				Type:            enums.MovementAdjustment,
				Quantity:        qty,
				AvailableChange: delta,
				CostPrice:       &cost,
				BatchNumber:     &batch.BatchNumber,
				ExpiryDate:      batch.ExpiryDate,
				Reason:          input.Reason,
			}); err != nil {
				return err
			}

			if delta > 0 {
				if err := s.stock.AddTx(ctx, tx, batch.ProductID, delta); err != nil {
					return err
				}
			} else {
				if err := s.stock.DeductTx(ctx, tx, batch.ProductID, -delta); err != nil {
					return err
				}
			}
		}

		result = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetBatch(ctx context.Context, batchID uuid.UUID) (*models.InventoryBatch, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}
	batch, err := s.repo.FindByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "batch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load batch")
	}
	return batch, nil
}

func (s *service) GetBatchesForProduct(ctx context.Context, productID uuid.UUID, activeOnly bool) ([]models.InventoryBatch, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	batches, err := s.repo.ListByProduct(ctx, productID, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list batches")
	}
	return batches, nil
}

// ExpireDue marks overdue active batches expired and removes their
// remaining quantity from the aggregate, one transaction per batch so a
// single bad row does not wedge the whole sweep.
func (s *service) ExpireDue(ctx context.Context, asOf time.Time) ([]ExpiredBatch, error) {
	due, err := s.repo.FindExpiredActive(ctx, asOf)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired batches")
	}

	expired := make([]ExpiredBatch, 0, len(due))
	for _, batch := range due {
		batch := batch
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if err := repo.MarkExpired(ctx, batch.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark batch expired")
			}

			if batch.AvailableQuantity > 0 {
				cost := batch.CostPrice
				reason := "expired"
				if err := s.movement.Log(ctx, tx, movements.Entry{
					ProductID:       batch.ProductID,
					BatchID:         &batch.ID,
					Type:            enums.MovementAdjustment,
					Quantity:        batch.AvailableQuantity,
					AvailableChange: -batch.AvailableQuantity,
					CostPrice:       &cost,
					BatchNumber:     &batch.BatchNumber,
					ExpiryDate:      batch.ExpiryDate,
					Reason:          &reason,
				}); err != nil {
					return err
				}
				if err := s.stock.DeductTx(ctx, tx, batch.ProductID, batch.AvailableQuantity); err != nil {
					return err
				}
			}

			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBatchExpired,
				AggregateType: enums.AggregateBatch,
				AggregateID:   batch.ID,
				Version:       1,
				Data: payloads.BatchExpiredEvent{
					BatchID:         batch.ID,
					ProductID:       batch.ProductID,
					ExpiredQuantity: batch.AvailableQuantity,
					ExpiryDate:      *batch.ExpiryDate,
				},
			})
		})
		if err != nil {
			return expired, err
		}
		expired = append(expired, ExpiredBatch{
			BatchID:         batch.ID,
			ProductID:       batch.ProductID,
			ExpiredQuantity: batch.AvailableQuantity,
			ExpiryDate:      *batch.ExpiryDate,
		})
	}
	return expired, nil
}
