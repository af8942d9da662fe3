package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/stocklinehq/stockline-backend/internal/inventory"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
)

type batchExpirer interface {
	ExpireDue(ctx context.Context, asOf time.Time) ([]inventory.ExpiredBatch, error)
}

// BatchExpiryJobParams configures the expiry sweep job.
type BatchExpiryJobParams struct {
	Logger    *logger.Logger
	Inventory batchExpirer
	Now       func() time.Time
}

// NewBatchExpiryJob builds a job that takes overdue batches out of
// rotation and writes the offsetting ledger entries.
func NewBatchExpiryJob(params BatchExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &batchExpiryJob{
		logg:      params.Logger,
		inventory: params.Inventory,
		now:       now,
	}, nil
}

type batchExpiryJob struct {
	logg      *logger.Logger
	inventory batchExpirer
	now       func() time.Time
}

func (j *batchExpiryJob) Name() string { return "batch-expiry" }

func (j *batchExpiryJob) Run(ctx context.Context) error {
	asOf := j.now().UTC()
	expired, err := j.inventory.ExpireDue(ctx, asOf)
	if err != nil {
		return fmt.Errorf("expire due batches: %w", err)
	}
	units := 0
	for _, batch := range expired {
		units += batch.ExpiredQuantity
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":         asOf,
		"batches":       len(expired),
		"units_removed": units,
	})
	j.logg.Info(reportCtx, "batch expiry sweep complete")
	return nil
}
