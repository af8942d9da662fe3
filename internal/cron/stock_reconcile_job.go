package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/stocklinehq/stockline-backend/internal/stock"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
)

type stockSyncer interface {
	Sync(ctx context.Context, productID uuid.UUID) (*stock.Level, error)
}

type stockProductLister interface {
	ListProductIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StockReconcileJobParams configures the aggregate reconciliation job.
type StockReconcileJobParams struct {
	Logger   *logger.Logger
	Stock    stockSyncer
	Products stockProductLister
}

// NewStockReconcileJob builds a job that recomputes every product's
// stock aggregate from its batches and repairs any drift.
func NewStockReconcileJob(params StockReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock service required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product lister required")
	}
	return &stockReconcileJob{
		logg:     params.Logger,
		stock:    params.Stock,
		products: params.Products,
	}, nil
}

type stockReconcileJob struct {
	logg     *logger.Logger
	stock    stockSyncer
	products stockProductLister
}

func (j *stockReconcileJob) Name() string { return "stock-reconcile" }

func (j *stockReconcileJob) Run(ctx context.Context) error {
	ids, err := j.products.ListProductIDs(ctx)
	if err != nil {
		return fmt.Errorf("list products for reconciliation: %w", err)
	}
	var errs error
	synced := 0
	for _, id := range ids {
		if _, err := j.stock.Sync(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("sync product %s: %w", id, err))
			continue
		}
		synced++
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"synced":     synced,
	})
	j.logg.Info(reportCtx, "stock reconcile loop complete")
	return errs
}
