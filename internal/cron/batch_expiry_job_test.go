package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stocklinehq/stockline-backend/internal/inventory"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
)

type stubExpirer struct {
	asOf    time.Time
	expired []inventory.ExpiredBatch
	err     error
}

func (s *stubExpirer) ExpireDue(_ context.Context, asOf time.Time) ([]inventory.ExpiredBatch, error) {
	s.asOf = asOf
	return s.expired, s.err
}

func TestBatchExpiryJobSweepsWithFrozenClock(t *testing.T) {
	frozen := time.Date(2026, 8, 30, 6, 0, 0, 0, time.UTC)
	expirer := &stubExpirer{expired: []inventory.ExpiredBatch{
		{BatchID: uuid.New(), ProductID: uuid.New(), ExpiredQuantity: 4},
	}}
	job, err := NewBatchExpiryJob(BatchExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Inventory: expirer,
		Now:       func() time.Time { return frozen },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !expirer.asOf.Equal(frozen) {
		t.Fatalf("expected sweep at %s, got %s", frozen, expirer.asOf)
	}
}

func TestBatchExpiryJobPropagatesSweepError(t *testing.T) {
	job, err := NewBatchExpiryJob(BatchExpiryJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Inventory: &stubExpirer{err: errors.New("sweep failed")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
