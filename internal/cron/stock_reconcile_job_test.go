package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/stocklinehq/stockline-backend/internal/stock"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
)

type stubSyncer struct {
	synced []uuid.UUID
	fail   map[uuid.UUID]error
}

func (s *stubSyncer) Sync(_ context.Context, productID uuid.UUID) (*stock.Level, error) {
	if err, ok := s.fail[productID]; ok {
		return nil, err
	}
	s.synced = append(s.synced, productID)
	return &stock.Level{ProductID: productID}, nil
}

type stubLister struct {
	ids []uuid.UUID
	err error
}

func (s *stubLister) ListProductIDs(context.Context) ([]uuid.UUID, error) {
	return s.ids, s.err
}

func TestStockReconcileJobSyncsEveryProduct(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	syncer := &stubSyncer{}
	job, err := NewStockReconcileJob(StockReconcileJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Stock:    syncer,
		Products: &stubLister{ids: ids},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(syncer.synced) != 3 {
		t.Fatalf("expected 3 products synced, got %d", len(syncer.synced))
	}
}

func TestStockReconcileJobContinuesPastFailures(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	syncer := &stubSyncer{fail: map[uuid.UUID]error{bad: errors.New("deadlock")}}
	job, err := NewStockReconcileJob(StockReconcileJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Stock:    syncer,
		Products: &stubLister{ids: []uuid.UUID{bad, good}},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	runErr := job.Run(context.Background())
	if runErr == nil {
		t.Fatal("expected aggregated error")
	}
	if len(syncer.synced) != 1 || syncer.synced[0] != good {
		t.Fatalf("healthy product must still sync, got %+v", syncer.synced)
	}
}

func TestStockReconcileJobPropagatesListError(t *testing.T) {
	job, err := NewStockReconcileJob(StockReconcileJobParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Stock:    &stubSyncer{},
		Products: &stubLister{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected list error to surface")
	}
}
