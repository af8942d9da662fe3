package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stocklinehq/stockline-backend/api/responses"
	"github.com/stocklinehq/stockline-backend/api/validators"
	"github.com/stocklinehq/stockline-backend/internal/inventory"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
)

const expiryDateLayout = "2006-01-02"

type createBatchRequest struct {
	BatchNumber  string          `json:"batch_number" validate:"required,max=64"`
	ExpiryDate   *string         `json:"expiry_date,omitempty"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Quantity     int             `json:"quantity" validate:"required,gt=0"`
}

type updateBatchRequest struct {
	AvailableQuantity *int             `json:"available_quantity,omitempty" validate:"omitempty,min=0"`
	CostPrice         *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice      *decimal.Decimal `json:"selling_price,omitempty"`
	Reason            *string          `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// CreateBatch receives a delivery into a new or existing lot.
func CreateBatch(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createBatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		expiry, err := parseExpiryDate(req.ExpiryDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.CreateBatch(r.Context(), inventory.CreateBatchInput{
			ProductID:    productID,
			BatchNumber:  validators.SanitizeString(req.BatchNumber, 64),
			ExpiryDate:   expiry,
			CostPrice:    req.CostPrice,
			SellingPrice: req.SellingPrice,
			Quantity:     req.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, batch)
	}
}

// UpdateBatch applies a manual correction to one batch.
func UpdateBatch(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := parseUUIDParam(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateBatchRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.UpdateBatch(r.Context(), batchID, inventory.UpdateBatchInput{
			AvailableQuantity: req.AvailableQuantity,
			CostPrice:         req.CostPrice,
			SellingPrice:      req.SellingPrice,
			Reason:            req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, batch)
	}
}

func GetBatch(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := parseUUIDParam(r, "batchId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.GetBatch(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, batch)
	}
}

// ListBatches returns a product's batches in consumption order.
func ListBatches(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		activeOnly := strings.EqualFold(r.URL.Query().Get("active_only"), "true")
		batches, err := svc.GetBatchesForProduct(r.Context(), productID, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, batches)
	}
}

func parseExpiryDate(raw *string) (*time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	parsed, err := time.Parse(expiryDateLayout, strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "expiry_date must be YYYY-MM-DD")
	}
	return &parsed, nil
}
