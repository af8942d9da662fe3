package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/internal/allocation"
	"github.com/stocklinehq/stockline-backend/internal/stock"
	"github.com/stocklinehq/stockline-backend/pkg/config"
	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
	"github.com/stocklinehq/stockline-backend/pkg/outbox"
	"github.com/stocklinehq/stockline-backend/pkg/outbox/payloads"
	"github.com/stocklinehq/stockline-backend/pkg/pagination"
)

const (
	refKindOrder     = "order"
	refKindOrderItem = "order_item"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type allocator interface {
	Allocate(ctx context.Context, tx *gorm.DB, req allocation.Request) ([]allocation.Consumption, error)
	Restore(ctx context.Context, tx *gorm.DB, items []allocation.Restoration, movementType enums.MovementType, referenceKind string, referenceID *uuid.UUID, reason *string) error
}

// stockChecker answers the cheap aggregate question before an admin
// order commits to the full allocation walk.
type stockChecker interface {
	GetStock(ctx context.Context, productID uuid.UUID) (*stock.Level, error)
}

// Service drives orders through the fulfillment state machine.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	RejectOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
	AssignDelivery(ctx context.Context, orderID, deliveryID uuid.UUID) error
	UpdateDeliveryMethod(ctx context.Context, orderID uuid.UUID, method enums.DeliveryMethod) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	alloc  allocator
	stock  stockChecker
	outbox outboxPublisher
	cfg    config.InventoryConfig
	logg   *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(repo Repository, tx txRunner, alloc allocator, stockSvc stockChecker, ob outboxPublisher, cfg config.InventoryConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if alloc == nil {
		return nil, fmt.Errorf("allocation engine required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if ob == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, alloc: alloc, stock: stockSvc, outbox: ob, cfg: cfg, logg: logg}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	orderID := uuid.New()
	for _, item := range input.Items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   orderID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Status:    enums.OrderItemStatusNormal,
		})
	}

	order := &models.Order{
		ID:               orderID,
		ClientID:         input.ClientID,
		CreatedByAdminID: input.CreatedByAdminID,
		Status:           enums.OrderStatusPending,
		Source:           input.Source,
		DeliveryMethod:   input.DeliveryMethod,
		TotalAmount:      total,
		Note:             input.Note,
		Items:            items,
	}

	// Admin orders skip pending: check the aggregate up front so an
	// obviously short order fails before any row is written, then
	// confirm and allocate in one transaction.
	admin := input.CreatedByAdminID != nil
	if admin {
		if err := s.preflightStock(ctx, input.Items); err != nil {
			return nil, err
		}
		now := time.Now()
		order.Status = enums.OrderStatusConfirmed
		order.ConfirmedAt = &now
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if !admin {
			return nil
		}
		cost, err := s.allocateItems(ctx, tx, order)
		if err != nil {
			return err
		}
		order.CostPrice = cost
		if err := repo.Update(ctx, order.ID, map[string]any{"cost_price": cost}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order cost")
		}
		return s.emitConfirmed(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ConfirmOrder moves a pending order to confirmed, allocating stock to
// every line item. Allocation failure rolls the whole confirmation back
// and the order stays pending.
func (s *service) ConfirmOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !canTransition(order, enums.OrderStatusConfirmed) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot confirm order in status %s", order.Status))
		}

		cost, err := s.allocateItems(ctx, tx, order)
		if err != nil {
			return err
		}

		now := time.Now()
		ok, err := repo.UpdateStatusGuarded(ctx, order.ID, order.Status, enums.OrderStatusConfirmed, map[string]any{
			"confirmed_at": now,
			"cost_price":   cost,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		order.Status = enums.OrderStatusConfirmed
		order.ConfirmedAt = &now
		order.CostPrice = cost
		result = order
		return s.emitConfirmed(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RejectOrder closes a pending order without ever touching stock.
func (s *service) RejectOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.closeWithoutStock(ctx, orderID, enums.OrderStatusRejected)
}

func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !to.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	switch to {
	case enums.OrderStatusConfirmed:
		return s.ConfirmOrder(ctx, orderID)
	case enums.OrderStatusRejected:
		return s.RejectOrder(ctx, orderID)
	case enums.OrderStatusCanceled:
		return s.cancelOrder(ctx, orderID)
	case enums.OrderStatusReturned:
		return s.returnOrder(ctx, orderID)
	default:
		return s.plainTransition(ctx, orderID, to)
	}
}

// cancelOrder closes the order. Cancelling after confirmation puts the
// allocated stock back batch by batch; cancelling from pending is a
// plain status write.
func (s *service) cancelOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !canTransition(order, enums.OrderStatusCanceled) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot cancel order in status %s", order.Status))
		}

		restocked := false
		if restocksOnCancel(order.Status) {
			reason := "order canceled"
			restocked, err = s.restock(ctx, tx, repo, order, enums.MovementAdjustment, &reason)
			if err != nil {
				return err
			}
		}

		now := time.Now()
		ok, err := repo.UpdateStatusGuarded(ctx, order.ID, order.Status, enums.OrderStatusCanceled, map[string]any{"closed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		order.Status = enums.OrderStatusCanceled
		order.ClosedAt = &now
		result = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCanceledEvent{
				OrderID:    order.ID,
				CanceledAt: now,
				Restocked:  restocked,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// returnOrder takes a shipped, delivered or completed order back: every
// consumed batch gets its quantity restored under a return movement and
// the line items are flagged returned.
func (s *service) returnOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !canTransition(order, enums.OrderStatusReturned) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot return order in status %s", order.Status))
		}

		if _, err := s.restock(ctx, tx, repo, order, enums.MovementReturn, nil); err != nil {
			return err
		}
		if err := repo.MarkItemsReturned(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark items returned")
		}

		now := time.Now()
		ok, err := repo.UpdateStatusGuarded(ctx, order.ID, order.Status, enums.OrderStatusReturned, map[string]any{"closed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		order.Status = enums.OrderStatusReturned
		order.ClosedAt = &now
		result = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderReturned,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderReturnedEvent{
				OrderID:    order.ID,
				ReturnedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// plainTransition covers the hops with no stock side effects: shipped,
// delivered and done.
func (s *service) plainTransition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Status == to {
			result = order
			return nil
		}
		if !canTransition(order, to) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, to))
		}

		updates := map[string]any{}
		var closedAt *time.Time
		if to == enums.OrderStatusDone {
			now := time.Now()
			closedAt = &now
			updates["closed_at"] = now
		}

		from := order.Status
		ok, err := repo.UpdateStatusGuarded(ctx, order.ID, from, to, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		order.Status = to
		order.ClosedAt = closedAt
		result = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				FromStatus: from,
				ToStatus:   to,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) AssignDelivery(ctx context.Context, orderID, deliveryID uuid.UUID) error {
	if orderID == uuid.Nil || deliveryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order and delivery ids required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enums.OrderStatusConfirmed, enums.OrderStatusShipped:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot assign delivery in status %s", order.Status))
		}
		if order.DeliveryMethod != nil && *order.DeliveryMethod == enums.DeliveryMethodHandDelivered {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "hand delivered orders have no delivery")
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"delivery_id": deliveryID}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign delivery")
		}
		return nil
	})
}

func (s *service) UpdateDeliveryMethod(ctx context.Context, orderID uuid.UUID, method enums.DeliveryMethod) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery method")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		switch order.Status {
		case enums.OrderStatusPending, enums.OrderStatusConfirmed:
		default:
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot change delivery method in status %s", order.Status))
		}
		if !methodMatchesSource(order.Source, method) {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("delivery method %s not allowed for %s orders", method, order.Source))
		}
		if err := repo.Update(ctx, order.ID, map[string]any{"delivery_method": method}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery method")
		}
		return nil
	})
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.loadOrder(ctx, s.repo, orderID)
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) validateCreate(input CreateOrderInput) error {
	if !input.Source.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order source")
	}
	if input.DeliveryMethod != nil && !methodMatchesSource(input.Source, *input.DeliveryMethod) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("delivery method %s not allowed for %s orders", *input.DeliveryMethod, input.Source))
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one item")
	}
	maxItems := s.cfg.MaxOrderItems
	if maxItems > 0 && len(input.Items) > maxItems {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("order exceeds %d item lines", maxItems))
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		if item.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "item quantity must be positive")
		}
		if item.UnitPrice.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "item unit price must not be negative")
		}
	}
	return nil
}

func (s *service) preflightStock(ctx context.Context, items []CreateOrderItemInput) error {
	needed := map[uuid.UUID]int{}
	for _, item := range items {
		needed[item.ProductID] += item.Quantity
	}
	for productID, qty := range needed {
		level, err := s.stock.GetStock(ctx, productID)
		if err != nil {
			if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
				return pkgerrors.New(pkgerrors.CodeInsufficientStock,
					fmt.Sprintf("product %s: no stock on hand", productID))
			}
			return err
		}
		if level.AvailableQuantity < qty {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("product %s: requested %d, available %d", productID, qty, level.AvailableQuantity))
		}
	}
	return nil
}

// allocateItems runs the allocation walk for every line item, records
// which batches each item consumed from, and returns the summed cost of
// the take.
func (s *service) allocateItems(ctx context.Context, tx *gorm.DB, order *models.Order) (decimal.Decimal, error) {
	repo := s.repo.WithTx(tx)
	cost := decimal.Zero
	links := make([]models.OrderItemBatch, 0, len(order.Items))
	for i := range order.Items {
		item := &order.Items[i]
		itemID := item.ID
		consumptions, err := s.alloc.Allocate(ctx, tx, allocation.Request{
			ProductID:     item.ProductID,
			Quantity:      item.Quantity,
			ReferenceKind: refKindOrderItem,
			ReferenceID:   &itemID,
		})
		if err != nil {
			return decimal.Zero, err
		}
		for _, consumption := range consumptions {
			links = append(links, models.OrderItemBatch{
				ID:          uuid.New(),
				OrderItemID: item.ID,
				BatchID:     consumption.BatchID,
				Quantity:    consumption.Quantity,
				CostPrice:   consumption.CostPrice,
			})
			cost = cost.Add(consumption.CostPrice.Mul(decimal.NewFromInt(int64(consumption.Quantity))))
		}
	}
	if err := repo.CreateItemBatches(ctx, links); err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record item batches")
	}
	return cost, nil
}

// restock reverses the order's recorded consumptions. Returns false when
// the order never allocated anything.
func (s *service) restock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, movementType enums.MovementType, reason *string) (bool, error) {
	details, err := repo.ListItemBatchDetails(ctx, order.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item batches")
	}
	if len(details) == 0 {
		return false, nil
	}

	orderID := order.ID
	restorations := make([]allocation.Restoration, 0, len(details))
	for _, detail := range details {
		cost := detail.CostPrice
		restorations = append(restorations, allocation.Restoration{
			ProductID: detail.ProductID,
			BatchID:   detail.BatchID,
			Quantity:  detail.Quantity,
			CostPrice: &cost,
		})
	}
	if err := s.alloc.Restore(ctx, tx, restorations, movementType, refKindOrder, &orderID, reason); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) closeWithoutStock(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !canTransition(order, to) {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("cannot move order from %s to %s", order.Status, to))
		}

		now := time.Now()
		from := order.Status
		ok, err := repo.UpdateStatusGuarded(ctx, order.ID, from, to, map[string]any{"closed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order changed concurrently")
		}

		order.Status = to
		order.ClosedAt = &now
		result = order
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				FromStatus: from,
				ToStatus:   to,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) emitConfirmed(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	confirmedAt := time.Now()
	if order.ConfirmedAt != nil {
		confirmedAt = *order.ConfirmedAt
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderConfirmed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Data: payloads.OrderConfirmedEvent{
			OrderID:     order.ID,
			ItemCount:   len(order.Items),
			TotalAmount: order.TotalAmount,
			CostPrice:   order.CostPrice,
			ConfirmedAt: confirmedAt,
		},
	})
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
