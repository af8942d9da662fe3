package stock

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/pkg/config"
	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
)

func TestDeductRefusesNegative(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()
	productID := uuid.New()
	seedLevel(t, db, productID, 3, 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.DeductTx(ctx, tx, productID, 5)
	})
	if err == nil {
		t.Fatal("expected deduction to fail")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNegativeStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var level models.StockLevel
	if err := db.First(&level, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load level: %v", err)
	}
	if level.AvailableQuantity != 3 {
		t.Fatalf("expected quantity untouched, got %d", level.AvailableQuantity)
	}
}

func TestReserveInsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()
	productID := uuid.New()
	seedLevel(t, db, productID, 2, 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ReserveTx(ctx, tx, productID, 3)
	})
	if err == nil {
		t.Fatal("expected reservation to fail")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveAndReleaseRoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()
	productID := uuid.New()
	seedLevel(t, db, productID, 5, 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.ReserveTx(ctx, tx, productID, 4)
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		return svc.ReleaseTx(ctx, tx, productID, 4)
	})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	var level models.StockLevel
	if err := db.First(&level, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load level: %v", err)
	}
	if level.AvailableQuantity != 5 || level.ReservedQuantity != 0 {
		t.Fatalf("unexpected level after round trip: %+v", level)
	}
}

func TestAddCreatesRowForNewProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	ctx := context.Background()
	productID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.AddTx(ctx, tx, productID, 7)
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	var level models.StockLevel
	if err := db.First(&level, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load level: %v", err)
	}
	if level.AvailableQuantity != 7 {
		t.Fatalf("expected 7 available, got %d", level.AvailableQuantity)
	}
}

func TestGetStockReadsThroughCache(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	cache := newStubCache()
	svc := newTestService(t, db, cache)
	ctx := context.Background()
	productID := uuid.New()
	seedLevel(t, db, productID, 9, 1)

	level, err := svc.GetStock(ctx, productID)
	if err != nil {
		t.Fatalf("get stock: %v", err)
	}
	if level.AvailableQuantity != 9 || level.ReservedQuantity != 1 {
		t.Fatalf("unexpected level: %+v", level)
	}
	if _, ok := cache.values[cache.StockCacheKey(productID.String())]; !ok {
		t.Fatal("expected level stored in cache")
	}

	// A cached snapshot wins over the database row.
	stale := Level{ProductID: productID, AvailableQuantity: 42}
	data, _ := json.Marshal(stale)
	cache.values[cache.StockCacheKey(productID.String())] = string(data)

	level, err = svc.GetStock(ctx, productID)
	if err != nil {
		t.Fatalf("get stock cached: %v", err)
	}
	if level.AvailableQuantity != 42 {
		t.Fatalf("expected cached value, got %d", level.AvailableQuantity)
	}
}

func TestGetStockNotFound(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)

	_, err := svc.GetStock(context.Background(), uuid.New())
	if err == nil {
		t.Fatal("expected not found")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSyncRepairsDrift(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	cache := newStubCache()
	svc := newTestService(t, db, cache)
	ctx := context.Background()
	productID := uuid.New()
	seedLevel(t, db, productID, 99, 0)

	expiry := time.Now().AddDate(0, 1, 0)
	batches := []models.InventoryBatch{
		{ID: uuid.New(), ProductID: productID, BatchNumber: "A", ExpiryDate: &expiry, CostPrice: decimal.NewFromInt(1), SellingPrice: decimal.NewFromInt(2), InitialQuantity: 6, AvailableQuantity: 6, Status: enums.BatchStatusActive},
		{ID: uuid.New(), ProductID: productID, BatchNumber: "B", CostPrice: decimal.NewFromInt(1), SellingPrice: decimal.NewFromInt(2), InitialQuantity: 4, AvailableQuantity: 4, Status: enums.BatchStatusActive},
		{ID: uuid.New(), ProductID: productID, BatchNumber: "C", CostPrice: decimal.NewFromInt(1), SellingPrice: decimal.NewFromInt(2), InitialQuantity: 5, AvailableQuantity: 5, Status: enums.BatchStatusExpired},
	}
	for _, batch := range batches {
		if err := db.Create(&batch).Error; err != nil {
			t.Fatalf("seed batch: %v", err)
		}
	}

	level, err := svc.Sync(ctx, productID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if level.AvailableQuantity != 10 {
		t.Fatalf("expected recomputed total 10, got %d", level.AvailableQuantity)
	}

	var stored models.StockLevel
	if err := db.First(&stored, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("load level: %v", err)
	}
	if stored.AvailableQuantity != 10 {
		t.Fatalf("expected drift repaired, got %d", stored.AvailableQuantity)
	}
}

func TestSyncCreatesMissingRow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db, nil)
	productID := uuid.New()

	level, err := svc.Sync(context.Background(), productID)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if level.AvailableQuantity != 0 {
		t.Fatalf("expected empty aggregate, got %d", level.AvailableQuantity)
	}

	var stored models.StockLevel
	if err := db.First(&stored, "product_id = ?", productID).Error; err != nil {
		t.Fatalf("expected row created: %v", err)
	}
}

type dbTxRunner struct {
	db *gorm.DB
}

func (r *dbTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubCache struct {
	values map[string]string
}

func newStubCache() *stubCache {
	return &stubCache{values: map[string]string{}}
}

func (c *stubCache) Get(ctx context.Context, key string) (string, error) {
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return "", gorm.ErrRecordNotFound
}

func (c *stubCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s, ok := value.(string); ok {
		c.values[key] = s
	}
	return nil
}

func (c *stubCache) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

func (c *stubCache) StockCacheKey(productID string) string {
	return "sl:stock:" + productID
}

func newTestService(t *testing.T, db *gorm.DB, c cache) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), &dbTxRunner{db: db}, c, config.InventoryConfig{StockCacheTTL: 30 * time.Second}, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedLevel(t *testing.T, db *gorm.DB, productID uuid.UUID, available, reserved int) {
	t.Helper()
	level := models.StockLevel{ProductID: productID, AvailableQuantity: available, ReservedQuantity: reserved}
	if err := db.Create(&level).Error; err != nil {
		t.Fatalf("seed level: %v", err)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.StockLevel{}, &models.InventoryBatch{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
