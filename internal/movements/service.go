package movements

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stocklinehq/stockline-backend/pkg/db/models"
	"github.com/stocklinehq/stockline-backend/pkg/enums"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
)

// Entry describes one stock-affecting event to append to the log.
// AvailableChange carries the sign; Quantity is always positive.
type Entry struct {
	ProductID       uuid.UUID
	BatchID         *uuid.UUID
	Type            enums.MovementType
	Quantity        int
	AvailableChange int
	CostPrice       *decimal.Decimal
	BatchNumber     *string
	ExpiryDate      *time.Time
	ReferenceKind   *string
	ReferenceID     *uuid.UUID
	Reason          *string
}

// Service appends to and reads the movement log.
type Service interface {
	Log(ctx context.Context, tx *gorm.DB, entry Entry) error
	ListForProduct(ctx context.Context, productID uuid.UUID, filter ListFilter) ([]models.StockMovement, error)
}

type service struct {
	repo Repository
}

// NewService builds the movement log service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("movements repository required")
	}
	return &service{repo: repo}, nil
}

// Log appends a movement row inside the caller's transaction. Callers
// own the transaction so the row commits together with the stock change
// it records.
func (s *service) Log(ctx context.Context, tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for movement log")
	}
	if entry.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !entry.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid movement type")
	}
	if entry.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement quantity must be positive")
	}
	if entry.AvailableChange == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement must change available quantity")
	}

	row := &models.StockMovement{
		ID:              uuid.New(),
		ProductID:       entry.ProductID,
		BatchID:         entry.BatchID,
		MovementType:    entry.Type,
		Quantity:        entry.Quantity,
		AvailableChange: entry.AvailableChange,
		CostPrice:       entry.CostPrice,
		BatchNumber:     entry.BatchNumber,
		ExpiryDate:      entry.ExpiryDate,
		ReferenceKind:   entry.ReferenceKind,
		ReferenceID:     entry.ReferenceID,
		Reason:          entry.Reason,
	}
	if err := s.repo.WithTx(tx).Insert(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert movement")
	}
	return nil
}

func (s *service) ListForProduct(ctx context.Context, productID uuid.UUID, filter ListFilter) ([]models.StockMovement, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	rows, err := s.repo.ListByProduct(ctx, productID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list movements")
	}
	return rows, nil
}
