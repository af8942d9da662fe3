package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/internal/inventory"
	"github.com/stocklinehq/stockline-backend/internal/movements"
	"github.com/stocklinehq/stockline-backend/pkg/config"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/metrics"
	"github.com/stocklinehq/stockline-backend/pkg/outbox"
	"github.com/stocklinehq/stockline-backend/pkg/outbox/payloads"
)

type stockMutator interface {
	AddTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	DeductTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type movementLogger interface {
	Log(ctx context.Context, tx *gorm.DB, entry movements.Entry) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Request asks for a quantity of one product, tagged with the record the
// resulting movements should reference.
type Request struct {
	ProductID     uuid.UUID
	Quantity      int
	ReferenceKind string
	ReferenceID   *uuid.UUID
}

// Consumption records how much of the request one batch satisfied, with
// the batch's cost snapshot so the caller can price the take.
type Consumption struct {
	BatchID     uuid.UUID
	Quantity    int
	CostPrice   decimal.Decimal
	BatchNumber string
	ExpiryDate  *time.Time
}

// Restoration puts a previous consumption back, batch by batch.
type Restoration struct {
	ProductID   uuid.UUID
	BatchID     uuid.UUID
	Quantity    int
	CostPrice   *decimal.Decimal
	BatchNumber *string
	ExpiryDate  *time.Time
}

// Engine consumes batches in expiry-first order and restores them on
// cancellation or return. Both operations run inside a caller-owned
// transaction; a failed allocation leaves nothing behind once the
// transaction rolls back.
type Engine interface {
	Allocate(ctx context.Context, tx *gorm.DB, req Request) ([]Consumption, error)
	Restore(ctx context.Context, tx *gorm.DB, items []Restoration, movementType enums.MovementType, referenceKind string, referenceID *uuid.UUID, reason *string) error
}

type engine struct {
	batches  inventory.Repository
	stock    stockMutator
	movement movementLogger
	outbox   outboxEmitter
	metrics  *metrics.AllocationMetrics
	cfg      config.InventoryConfig
}

// NewEngine builds the allocation engine. Metrics are optional.
func NewEngine(batches inventory.Repository, stock stockMutator, movement movementLogger, ob outboxEmitter, m *metrics.AllocationMetrics, cfg config.InventoryConfig) (Engine, error) {
	if batches == nil {
		return nil, fmt.Errorf("inventory repository required")
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
	return &engine{batches: batches, stock: stock, movement: movement, outbox: ob, metrics: m, cfg: cfg}, nil
}

// Allocate walks the product's eligible batches in FIFO order and takes
// from each until the request is filled. Every take is a guarded
// decrement, so losing a race to a concurrent allocation just means the
// batch is skipped on this pass. If the walk ends short, the whole
// request fails with insufficient stock and the caller's transaction
// rolls back the partial takes.
func (e *engine) Allocate(ctx context.Context, tx *gorm.DB, req Request) ([]Consumption, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required for allocation")
	}
	if req.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if req.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := e.batches.WithTx(tx)
	eligible, err := repo.EligibleForAllocation(ctx, req.ProductID, time.Now())
	if err != nil {
		e.metrics.IncAttempt("error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list eligible batches")
	}

	totalAvailable := 0
	for _, batch := range eligible {
		totalAvailable += batch.AvailableQuantity
	}

	remaining := req.Quantity
	consumptions := make([]Consumption, 0, len(eligible))
	for _, batch := range eligible {
		if remaining == 0 {
			break
		}
		take := batch.AvailableQuantity
		if take > remaining {
			take = remaining
		}
		ok, err := repo.Consume(ctx, batch.ID, take)
		if err != nil {
			e.metrics.IncAttempt("error")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume batch")
		}
		if !ok {
			// Raced by a concurrent allocation; move on to the next batch.
			continue
		}
		if take == batch.AvailableQuantity {
			if _, err := repo.MarkDepletedIfEmpty(ctx, batch.ID); err != nil {
				e.metrics.IncAttempt("error")
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark batch depleted")
			}
		}

		cost := batch.CostPrice
		number := batch.BatchNumber
		refKind := referenceKindPtr(req.ReferenceKind)
		if err := e.movement.Log(ctx, tx, movements.Entry{
			ProductID:       batch.ProductID,
			BatchID:         &batch.ID,
			Type:            enums.MovementSale,
			Quantity:        take,
			AvailableChange: -take,
			CostPrice:       &cost,
			BatchNumber:     &number,
			ExpiryDate:      batch.ExpiryDate,
			ReferenceKind:   refKind,
			ReferenceID:     req.ReferenceID,
		}); err != nil {
			e.metrics.IncAttempt("error")
			return nil, err
		}

		consumptions = append(consumptions, Consumption{
			BatchID:     batch.ID,
			Quantity:    take,
			CostPrice:   batch.CostPrice,
			BatchNumber: batch.BatchNumber,
			ExpiryDate:  batch.ExpiryDate,
		})
		remaining -= take
	}

	if remaining > 0 {
		e.metrics.IncAttempt("insufficient")
		e.metrics.IncInsufficient()
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("product %s: requested %d, available %d", req.ProductID, req.Quantity, totalAvailable))
	}

	if err := e.stock.DeductTx(ctx, tx, req.ProductID, req.Quantity); err != nil {
		e.metrics.IncAttempt("error")
		return nil, err
	}

	if left := totalAvailable - req.Quantity; left <= e.cfg.MinAlertQuantity {
		err := e.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockLow,
			AggregateType: enums.AggregateProduct,
			AggregateID:   req.ProductID,
			Version:       1,
			Data: payloads.StockLowEvent{
				ProductID:         req.ProductID,
				AvailableQuantity: left,
				Threshold:         e.cfg.MinAlertQuantity,
			},
		})
		if err != nil {
			e.metrics.IncAttempt("error")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock low event")
		}
	}

	e.metrics.IncAttempt("success")
	e.metrics.AddUnits(req.Quantity)
	return consumptions, nil
}

// Restore reverses earlier consumptions: each batch gets its quantity
// back (reactivating depleted rows) and the aggregate is topped up per
// product. The movement type distinguishes cancellations from returns.
func (e *engine) Restore(ctx context.Context, tx *gorm.DB, items []Restoration, movementType enums.MovementType, referenceKind string, referenceID *uuid.UUID, reason *string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for restore")
	}
	if !movementType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}

	repo := e.batches.WithTx(tx)
	perProduct := map[uuid.UUID]int{}
	for _, item := range items {
		if item.ProductID == uuid.Nil || item.BatchID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "restoration needs product and batch ids")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "restoration quantity must be positive")
		}

		ok, err := repo.Restore(ctx, item.BatchID, item.Quantity)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore batch")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "batch not found for restore")
		}

		refKind := referenceKindPtr(referenceKind)
		if err := e.movement.Log(ctx, tx, movements.Entry{
			ProductID:       item.ProductID,
			BatchID:         &item.BatchID,
			Type:            movementType,
			Quantity:        item.Quantity,
			AvailableChange: item.Quantity,
			CostPrice:       item.CostPrice,
			BatchNumber:     item.BatchNumber,
			ExpiryDate:      item.ExpiryDate,
			ReferenceKind:   refKind,
			ReferenceID:     referenceID,
			Reason:          reason,
		}); err != nil {
			return err
		}

		perProduct[item.ProductID] += item.Quantity
	}

	for productID, qty := range perProduct {
		if err := e.stock.AddTx(ctx, tx, productID, qty); err != nil {
			return err
		}
	}
	return nil
}

func referenceKindPtr(kind string) *string {
	if kind == "" {
		return nil
	}
	return &kind
}
