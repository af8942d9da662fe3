package allocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/internal/inventory"
	"github.com/stocklinehq/stockline-backend/internal/movements"
	"github.com/stocklinehq/stockline-backend/pkg/config"
	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/outbox"
)

func TestAllocateWalksBatchesInExpiryOrder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID := uuid.New()
	early := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)
	a := env.seedBatch(t, productID, "A", &early, 5)
	b := env.seedBatch(t, productID, "B", &late, 5)
	c := env.seedBatch(t, productID, "C", nil, 2)

	var got []Consumption
	err := env.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		got, terr = env.engine.Allocate(context.Background(), tx, Request{ProductID: productID, Quantity: 12})
		return terr
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected three consumptions, got %d", len(got))
	}
	wantOrder := []uuid.UUID{a.ID, b.ID, c.ID}
	wantQty := []int{5, 5, 2}
	for i, consumption := range got {
		if consumption.BatchID != wantOrder[i] || consumption.Quantity != wantQty[i] {
			t.Fatalf("consumption %d out of order: %+v", i, consumption)
		}
	}

	for _, id := range wantOrder {
		var batch models.InventoryBatch
		if err := env.db.First(&batch, "id = ?", id).Error; err != nil {
			t.Fatalf("load batch: %v", err)
		}
		if batch.AvailableQuantity != 0 {
			t.Fatalf("expected batch %s emptied, got %d", batch.BatchNumber, batch.AvailableQuantity)
		}
		if batch.Status != enums.BatchStatusDepleted {
			t.Fatalf("expected batch %s depleted, got %s", batch.BatchNumber, batch.Status)
		}
	}

	if len(env.stock.deducts) != 1 || env.stock.deducts[0].qty != 12 {
		t.Fatalf("expected single aggregate deduct of 12, got %+v", env.stock.deducts)
	}
	if len(env.moves.entries) != 3 {
		t.Fatalf("expected three sale movements, got %d", len(env.moves.entries))
	}
	for _, entry := range env.moves.entries {
		if entry.Type != enums.MovementSale || entry.AvailableChange >= 0 {
			t.Fatalf("unexpected movement: %+v", entry)
		}
	}
}

func TestAllocatePartialBatchLeavesRemainder(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID := uuid.New()
	early := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)
	a := env.seedBatch(t, productID, "A", &early, 5)
	b := env.seedBatch(t, productID, "B", &late, 5)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, terr := env.engine.Allocate(context.Background(), tx, Request{ProductID: productID, Quantity: 7})
		return terr
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	var reloadedA, reloadedB models.InventoryBatch
	if err := env.db.First(&reloadedA, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("load batch a: %v", err)
	}
	if err := env.db.First(&reloadedB, "id = ?", b.ID).Error; err != nil {
		t.Fatalf("load batch b: %v", err)
	}
	if reloadedA.AvailableQuantity != 0 || reloadedA.Status != enums.BatchStatusDepleted {
		t.Fatalf("unexpected batch a state: %+v", reloadedA)
	}
	if reloadedB.AvailableQuantity != 3 || reloadedB.Status != enums.BatchStatusActive {
		t.Fatalf("unexpected batch b state: %+v", reloadedB)
	}
}

func TestAllocateInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID := uuid.New()
	batch := env.seedBatch(t, productID, "ONLY", nil, 4)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, terr := env.engine.Allocate(context.Background(), tx, Request{ProductID: productID, Quantity: 6})
		return terr
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var reloaded models.InventoryBatch
	if err := env.db.First(&reloaded, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if reloaded.AvailableQuantity != 4 {
		t.Fatalf("expected rollback to restore quantity, got %d", reloaded.AvailableQuantity)
	}
	if len(env.stock.deducts) != 0 {
		t.Fatalf("aggregate must not be touched on failure, got %+v", env.stock.deducts)
	}
}

func TestAllocateEmitsStockLowAtThreshold(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID := uuid.New()
	env.seedBatch(t, productID, "A", nil, 8)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, terr := env.engine.Allocate(context.Background(), tx, Request{ProductID: productID, Quantity: 4})
		return terr
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if len(env.events.events) != 1 {
		t.Fatalf("expected stock low event, got %d", len(env.events.events))
	}
	event := env.events.events[0]
	if event.EventType != enums.EventStockLow || event.AggregateID != productID {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestAllocateSkipsStockLowAboveThreshold(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID := uuid.New()
	env.seedBatch(t, productID, "A", nil, 20)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, terr := env.engine.Allocate(context.Background(), tx, Request{ProductID: productID, Quantity: 4})
		return terr
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if len(env.events.events) != 0 {
		t.Fatalf("expected no event, got %+v", env.events.events)
	}
}

// racingBatchRepo injects a competing take between the eligibility scan
// and the guarded decrement, the window where two allocations can see
// the same batch quantity.
type racingBatchRepo struct {
	inventory.Repository
	raced *bool
	take  int
}

func (r *racingBatchRepo) WithTx(tx *gorm.DB) inventory.Repository {
	return &racingBatchRepo{Repository: r.Repository.WithTx(tx), raced: r.raced, take: r.take}
}

func (r *racingBatchRepo) EligibleForAllocation(ctx context.Context, productID uuid.UUID, asOf time.Time) ([]models.InventoryBatch, error) {
	batches, err := r.Repository.EligibleForAllocation(ctx, productID, asOf)
	if err != nil || *r.raced || len(batches) == 0 {
		return batches, err
	}
	*r.raced = true
	ok, err := r.Repository.Consume(ctx, batches[0].ID, r.take)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("competing take did not apply")
	}
	return batches, nil
}

func TestAllocateLosingRaceFailsWithInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	stock := &stubStock{}
	moves := &stubMovements{}
	events := &stubOutbox{}
	raced := false
	eng, err := NewEngine(&racingBatchRepo{Repository: inventory.NewRepository(db), raced: &raced, take: 6}, stock, moves, events, nil, config.InventoryConfig{MinAlertQuantity: 5})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	env := &testEnv{db: db, engine: eng, stock: stock, moves: moves, events: events}

	productID := uuid.New()
	batch := env.seedBatch(t, productID, "SINGLE", nil, 10)

	// Two takes of 6 against 10 units: the injected competitor wins the
	// guarded decrement, this call must see the stale quantity, miss the
	// compare-and-swap, and fail the whole request.
	err = env.db.Transaction(func(tx *gorm.DB) error {
		_, terr := env.engine.Allocate(context.Background(), tx, Request{ProductID: productID, Quantity: 6})
		if terr == nil {
			t.Fatal("expected losing allocation to fail")
		}
		if typed := pkgerrors.As(terr); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
			t.Fatalf("unexpected error: %v", terr)
		}

		var mid models.InventoryBatch
		if err := tx.First(&mid, "id = ?", batch.ID).Error; err != nil {
			t.Fatalf("load batch: %v", err)
		}
		if mid.AvailableQuantity != 4 {
			t.Fatalf("expected only the winner's take applied, got %d", mid.AvailableQuantity)
		}
		return terr
	})
	if err == nil {
		t.Fatal("expected transaction to roll back")
	}
	if !raced {
		t.Fatal("competing take never ran")
	}

	if len(moves.entries) != 0 {
		t.Fatalf("losing allocation must not log movements, got %+v", moves.entries)
	}
	if len(stock.deducts) != 0 {
		t.Fatalf("losing allocation must not deduct the aggregate, got %+v", stock.deducts)
	}
}

func TestAllocateIgnoresExpiredAndDepletedBatches(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID := uuid.New()
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	expired := env.seedBatch(t, productID, "EXPIRED", &past, 10)
	env.seedBatch(t, productID, "GOOD", nil, 3)

	err := env.db.Transaction(func(tx *gorm.DB) error {
		_, terr := env.engine.Allocate(context.Background(), tx, Request{ProductID: productID, Quantity: 5})
		return terr
	})
	if err == nil {
		t.Fatal("expected insufficient stock when only expired stock remains")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var reloaded models.InventoryBatch
	if err := env.db.First(&reloaded, "id = ?", expired.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if reloaded.AvailableQuantity != 10 {
		t.Fatal("expired batch must not be consumed")
	}
}

func TestRestoreReactivatesDepletedBatches(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	productID := uuid.New()
	batch := env.seedBatch(t, productID, "A", nil, 5)

	var consumed []Consumption
	err := env.db.Transaction(func(tx *gorm.DB) error {
		var terr error
		consumed, terr = env.engine.Allocate(context.Background(), tx, Request{ProductID: productID, Quantity: 5})
		return terr
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	restorations := make([]Restoration, 0, len(consumed))
	for _, consumption := range consumed {
		cost := consumption.CostPrice
		number := consumption.BatchNumber
		restorations = append(restorations, Restoration{
			ProductID:   productID,
			BatchID:     consumption.BatchID,
			Quantity:    consumption.Quantity,
			CostPrice:   &cost,
			BatchNumber: &number,
			ExpiryDate:  consumption.ExpiryDate,
		})
	}

	err = env.db.Transaction(func(tx *gorm.DB) error {
		return env.engine.Restore(context.Background(), tx, restorations, enums.MovementReturn, "order", nil, nil)
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	var reloaded models.InventoryBatch
	if err := env.db.First(&reloaded, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if reloaded.AvailableQuantity != 5 {
		t.Fatalf("expected quantity restored, got %d", reloaded.AvailableQuantity)
	}
	if reloaded.Status != enums.BatchStatusActive {
		t.Fatalf("expected batch reactivated, got %s", reloaded.Status)
	}

	if len(env.stock.adds) != 1 || env.stock.adds[0].qty != 5 {
		t.Fatalf("expected aggregate add of 5, got %+v", env.stock.adds)
	}
	last := env.moves.entries[len(env.moves.entries)-1]
	if last.Type != enums.MovementReturn || last.AvailableChange != 5 {
		t.Fatalf("unexpected restore movement: %+v", last)
	}
}

type testEnv struct {
	db     *gorm.DB
	engine Engine
	stock  *stubStock
	moves  *stubMovements
	events *stubOutbox
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	stock := &stubStock{}
	moves := &stubMovements{}
	events := &stubOutbox{}
	eng, err := NewEngine(inventory.NewRepository(db), stock, moves, events, nil, config.InventoryConfig{MinAlertQuantity: 5})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &testEnv{db: db, engine: eng, stock: stock, moves: moves, events: events}
}

func (e *testEnv) seedBatch(t *testing.T, productID uuid.UUID, number string, expiry *time.Time, qty int) *models.InventoryBatch {
	t.Helper()
	batch := models.InventoryBatch{
		ID:                uuid.New(),
		ProductID:         productID,
		BatchNumber:       number,
		ExpiryDate:        expiry,
		CostPrice:         decimal.NewFromInt(2),
		SellingPrice:      decimal.NewFromInt(4),
		InitialQuantity:   qty,
		AvailableQuantity: qty,
		Status:            enums.BatchStatusActive,
	}
	if err := e.db.Create(&batch).Error; err != nil {
		t.Fatalf("seed batch: %v", err)
	}
	return &batch
}

type stockCall struct {
	productID uuid.UUID
	qty       int
}

type stubStock struct {
	adds    []stockCall
	deducts []stockCall
}

func (s *stubStock) AddTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	s.adds = append(s.adds, stockCall{productID: productID, qty: qty})
	return nil
}

func (s *stubStock) DeductTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	s.deducts = append(s.deducts, stockCall{productID: productID, qty: qty})
	return nil
}

type stubMovements struct {
	entries []movements.Entry
}

func (s *stubMovements) Log(ctx context.Context, tx *gorm.DB, entry movements.Entry) error {
	s.entries = append(s.entries, entry)
	return nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:allocation_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryBatch{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
