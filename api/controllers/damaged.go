package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/stocklinehq/stockline-backend/api/responses"
	"github.com/stocklinehq/stockline-backend/api/validators"
	"github.com/stocklinehq/stockline-backend/internal/damaged"
	pkgerrors "github.com/stocklinehq/stockline-backend/pkg/errors"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
)

type reportDamagedRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	BatchID   uuid.UUID `json:"batch_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
	Reason    *string   `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// ReportDamagedGoods writes off stock from a batch and books the loss.
func ReportDamagedGoods(svc damaged.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reportDamagedRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Report(r.Context(), damaged.ReportInput{
			ProductID: req.ProductID,
			BatchID:   req.BatchID,
			Quantity:  req.Quantity,
			Reason:    req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, report)
	}
}

// ReverseDamagedGoods undoes a write-off, restoring stock and removing
// the report and its loss adjustment.
func ReverseDamagedGoods(svc damaged.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reportID, err := parseUUIDParam(r, "damagedGoodsId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reverse(r.Context(), reportID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "reversed"})
	}
}

func GetDamagedGoods(svc damaged.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reportID, err := parseUUIDParam(r, "damagedGoodsId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.Get(r.Context(), reportID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func ListDamagedGoods(svc damaged.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 100000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := damaged.ListFilter{Limit: limit, Offset: offset}
		if raw := strings.TrimSpace(r.URL.Query().Get("product_id")); raw != "" {
			productID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid product_id filter"))
				return
			}
			filter.ProductID = &productID
		}

		reports, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reports)
	}
}
