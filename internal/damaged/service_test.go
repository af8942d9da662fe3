package damaged

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/internal/inventory"
	"github.com/stocklinehq/stockline-backend/internal/movements"
	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
)

func TestReportDecrementsBatchAndBooksLoss(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	batch := env.seedBatch(t, 10, decimal.NewFromFloat(2.50))
	reason := "dropped pallet"

	report, err := env.svc.Report(context.Background(), ReportInput{
		ProductID: batch.ProductID,
		BatchID:   batch.ID,
		Quantity:  4,
		Reason:    &reason,
	})
	if err != nil {
		t.Fatalf("report damage: %v", err)
	}

	var reloaded models.InventoryBatch
	if err := env.db.First(&reloaded, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if reloaded.AvailableQuantity != 6 {
		t.Fatalf("expected 6 left on batch, got %d", reloaded.AvailableQuantity)
	}

	if len(env.stock.deducts) != 1 || env.stock.deducts[0].qty != 4 {
		t.Fatalf("expected aggregate deduct of 4, got %+v", env.stock.deducts)
	}
	if len(env.moves.entries) != 1 {
		t.Fatalf("expected one movement, got %d", len(env.moves.entries))
	}
	entry := env.moves.entries[0]
	if entry.Type != enums.MovementDamaged || entry.AvailableChange != -4 {
		t.Fatalf("unexpected movement: %+v", entry)
	}

	var adjustment models.Adjustment
	if err := env.db.First(&adjustment, "source_id = ?", report.ID).Error; err != nil {
		t.Fatalf("load adjustment: %v", err)
	}
	if adjustment.Type != enums.AdjustmentLoss {
		t.Fatalf("expected loss adjustment, got %s", adjustment.Type)
	}
	if !adjustment.Amount.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected loss of 10.00, got %s", adjustment.Amount)
	}
}

func TestReportRejectsOverdraw(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	batch := env.seedBatch(t, 3, decimal.NewFromInt(1))

	_, err := env.svc.Report(context.Background(), ReportInput{
		ProductID: batch.ProductID,
		BatchID:   batch.ID,
		Quantity:  5,
	})
	if err == nil {
		t.Fatal("expected insufficient stock")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var reloaded models.InventoryBatch
	if err := env.db.First(&reloaded, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if reloaded.AvailableQuantity != 3 {
		t.Fatal("failed report must not touch the batch")
	}
}

func TestReportFullQuantityDepletesBatch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	batch := env.seedBatch(t, 2, decimal.NewFromInt(1))

	_, err := env.svc.Report(context.Background(), ReportInput{
		ProductID: batch.ProductID,
		BatchID:   batch.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("report damage: %v", err)
	}

	var reloaded models.InventoryBatch
	if err := env.db.First(&reloaded, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if reloaded.Status != enums.BatchStatusDepleted {
		t.Fatalf("expected depleted batch, got %s", reloaded.Status)
	}
}

func TestReportThenReverseRestoresEverything(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	batch := env.seedBatch(t, 5, decimal.NewFromInt(3))

	report, err := env.svc.Report(context.Background(), ReportInput{
		ProductID: batch.ProductID,
		BatchID:   batch.ID,
		Quantity:  5,
	})
	if err != nil {
		t.Fatalf("report damage: %v", err)
	}

	if err := env.svc.Reverse(context.Background(), report.ID); err != nil {
		t.Fatalf("reverse: %v", err)
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

	var reportCount, adjustmentCount int64
	if err := env.db.Model(&models.DamagedGood{}).Count(&reportCount).Error; err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if err := env.db.Model(&models.Adjustment{}).Count(&adjustmentCount).Error; err != nil {
		t.Fatalf("count adjustments: %v", err)
	}
	if reportCount != 0 || adjustmentCount != 0 {
		t.Fatalf("reversal must leave no residual rows, got %d reports %d adjustments", reportCount, adjustmentCount)
	}

	if len(env.moves.entries) != 2 {
		t.Fatalf("expected offsetting movement pair, got %d", len(env.moves.entries))
	}
	if env.moves.entries[0].AvailableChange+env.moves.entries[1].AvailableChange != 0 {
		t.Fatalf("movements must net to zero: %+v", env.moves.entries)
	}
	if env.moves.entries[1].Type != enums.MovementDamagedReversal {
		t.Fatalf("expected damaged reversal movement, got %s", env.moves.entries[1].Type)
	}

	if len(env.stock.adds) != 1 || env.stock.adds[0].qty != 5 {
		t.Fatalf("expected aggregate add of 5, got %+v", env.stock.adds)
	}
}

func TestReverseUnknownReport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	err := env.svc.Reverse(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReverseTwiceFails(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	batch := env.seedBatch(t, 5, decimal.NewFromInt(1))
	report, err := env.svc.Report(context.Background(), ReportInput{
		ProductID: batch.ProductID,
		BatchID:   batch.ID,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("report damage: %v", err)
	}

	if err := env.svc.Reverse(context.Background(), report.ID); err != nil {
		t.Fatalf("first reverse: %v", err)
	}
	err = env.svc.Reverse(context.Background(), report.ID)
	if err == nil {
		t.Fatal("expected second reverse to fail")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}

	var reloaded models.InventoryBatch
	if err := env.db.First(&reloaded, "id = ?", batch.ID).Error; err != nil {
		t.Fatalf("load batch: %v", err)
	}
	if reloaded.AvailableQuantity != 5 {
		t.Fatalf("double reverse must not over-restore, got %d", reloaded.AvailableQuantity)
	}
}

func TestListFiltersByProduct(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	batchA := env.seedBatch(t, 5, decimal.NewFromInt(1))
	batchB := env.seedBatch(t, 5, decimal.NewFromInt(1))

	for _, batch := range []*models.InventoryBatch{batchA, batchB} {
		_, err := env.svc.Report(context.Background(), ReportInput{
			ProductID: batch.ProductID,
			BatchID:   batch.ID,
			Quantity:  1,
		})
		if err != nil {
			t.Fatalf("report damage: %v", err)
		}
	}

	reports, err := env.svc.List(context.Background(), ListFilter{ProductID: &batchA.ProductID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 1 || reports[0].ProductID != batchA.ProductID {
		t.Fatalf("expected one report for product, got %+v", reports)
	}
}

type testEnv struct {
	db    *gorm.DB
	svc   Service
	stock *stubStock
	moves *stubMovements
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	stock := &stubStock{}
	moves := &stubMovements{}
	svc, err := NewService(NewRepository(db), inventory.NewRepository(db), &dbTxRunner{db: db}, stock, moves, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &testEnv{db: db, svc: svc, stock: stock, moves: moves}
}

func (e *testEnv) seedBatch(t *testing.T, qty int, cost decimal.Decimal) *models.InventoryBatch {
	t.Helper()
	expiry := time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	batch := models.InventoryBatch{
		ID:                uuid.New(),
		ProductID:         uuid.New(),
		BatchNumber:       "DMG-" + uuid.NewString()[:8],
		ExpiryDate:        &expiry,
		CostPrice:         cost,
		SellingPrice:      cost.Mul(decimal.NewFromInt(2)),
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

type dbTxRunner struct {
	db *gorm.DB
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:damaged_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.InventoryBatch{}, &models.DamagedGood{}, &models.Adjustment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
