package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/pkg/config"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// cache is the slice of the redis client the stock read path needs.
type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	StockCacheKey(productID string) string
}

// Level is the read model for a product's stock aggregate.
type Level struct {
	ProductID         uuid.UUID `json:"product_id"`
	AvailableQuantity int       `json:"available_quantity"`
	ReservedQuantity  int       `json:"reserved_quantity"`
}

// Service exposes the stock aggregate: cached reads, reconciliation, and
// transaction-scoped guarded mutators for the other domain services.
type Service interface {
	GetStock(ctx context.Context, productID uuid.UUID) (*Level, error)
	Sync(ctx context.Context, productID uuid.UUID) (*Level, error)
	Invalidate(ctx context.Context, productID uuid.UUID)

	AddTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	DeductTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

type service struct {
	repo  Repository
	tx    txRunner
	cache cache
	cfg   config.InventoryConfig
	logg  *logger.Logger
}

// NewService builds the stock aggregate service. The cache is optional;
// a nil cache disables the read-through path.
func NewService(repo Repository, tx txRunner, cache cache, cfg config.InventoryConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, cache: cache, cfg: cfg, logg: logg}, nil
}

func (s *service) GetStock(ctx context.Context, productID uuid.UUID) (*Level, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.cache.StockCacheKey(productID.String())); err == nil {
			var level Level
			if jsonErr := json.Unmarshal([]byte(cached), &level); jsonErr == nil {
				return &level, nil
			}
		}
	}

	row, err := s.repo.Get(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stock level not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock level")
	}

	level := &Level{
		ProductID:         row.ProductID,
		AvailableQuantity: row.AvailableQuantity,
		ReservedQuantity:  row.ReservedQuantity,
	}
	s.storeInCache(ctx, level)
	return level, nil
}

// Sync recomputes the aggregate from active, unexpired batches and
// repairs any drift. It is the source of truth when inconsistency is
// suspected; the hot path never recomputes.
func (s *service) Sync(ctx context.Context, productID uuid.UUID) (*Level, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	var level *Level
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.EnsureRow(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stock row")
		}

		computed, err := repo.RecomputeAvailable(ctx, productID, time.Now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute stock")
		}

		current, err := repo.Get(ctx, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load stock level")
		}

		if current.AvailableQuantity != computed {
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"product_id": productID.String(),
					"stored":     current.AvailableQuantity,
					"computed":   computed,
				})
				s.logg.Warn(logCtx, "stock drift repaired")
			}
			if err := repo.SetAvailable(ctx, productID, computed); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "repair stock level")
			}
		}

		level = &Level{
			ProductID:         productID,
			AvailableQuantity: computed,
			ReservedQuantity:  current.ReservedQuantity,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, productID)
	return level, nil
}

// Invalidate drops the cached snapshot. Best effort; a stale entry only
// lives until the TTL expires.
func (s *service) Invalidate(ctx context.Context, productID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, s.cache.StockCacheKey(productID.String()))
}

func (s *service) AddTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateMutation(tx, productID, qty); err != nil {
		return err
	}
	repo := s.repo.WithTx(tx)
	ok, err := repo.Add(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add stock")
	}
	if !ok {
		// First stock for the product: create the row, then apply.
		if err := repo.EnsureRow(ctx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure stock row")
		}
		if ok, err = repo.Add(ctx, productID, qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeDependency, "stock row missing after ensure")
		}
	}
	s.Invalidate(ctx, productID)
	return nil
}

func (s *service) DeductTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateMutation(tx, productID, qty); err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).Deduct(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deduct stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNegativeStock, "stock deduction would go negative")
	}
	s.Invalidate(ctx, productID)
	return nil
}

func (s *service) ReserveTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateMutation(tx, productID, qty); err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).Reserve(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough available stock to reserve")
	}
	s.Invalidate(ctx, productID)
	return nil
}

func (s *service) ReleaseTx(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if err := validateMutation(tx, productID, qty); err != nil {
		return err
	}
	ok, err := s.repo.WithTx(tx).Release(ctx, productID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNegativeStock, "stock release exceeds reserved quantity")
	}
	s.Invalidate(ctx, productID)
	return nil
}

func (s *service) storeInCache(ctx context.Context, level *Level) {
	if s.cache == nil || level == nil {
		return
	}
	data, err := json.Marshal(level)
	if err != nil {
		return
	}
	ttl := s.cfg.StockCacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	_ = s.cache.Set(ctx, s.cache.StockCacheKey(level.ProductID.String()), string(data), ttl)
}

func validateMutation(tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock mutation")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	return nil
}
