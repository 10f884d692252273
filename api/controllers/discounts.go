package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/api/responses"
	"github.com/vendora-market/vendora-backend/api/validators"
	"github.com/vendora-market/vendora-backend/internal/discounts"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type discountRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

type discountResponse struct {
	OrderID       uuid.UUID `json:"order_id"`
	SubtotalCents int64     `json:"subtotal_cents"`
	DiscountCents int64     `json:"discount_cents"`
	TotalCents    int64     `json:"total_cents"`
}

// ApplyCoupon applies a coupon code to a pending order.
func ApplyCoupon(svc discounts.Service, logg *logger.Logger) http.HandlerFunc {
	return applyDiscount(logg, func(r *http.Request, orderID uuid.UUID, code string) (*models.Order, error) {
		return svc.ApplyCoupon(r.Context(), orderID, code)
	})
}

// ApplyGiftCard redeems a gift card against a pending order.
func ApplyGiftCard(svc discounts.Service, logg *logger.Logger) http.HandlerFunc {
	return applyDiscount(logg, func(r *http.Request, orderID uuid.UUID, code string) (*models.Order, error) {
		return svc.ApplyGiftCard(r.Context(), orderID, code)
	})
}

func applyDiscount(logg *logger.Logger, apply func(*http.Request, uuid.UUID, string) (*models.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawOrderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		if rawOrderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id is required"))
			return
		}
		orderID, err := uuid.Parse(rawOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var payload discountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := apply(r, orderID, payload.Code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, discountResponse{
			OrderID:       order.ID,
			SubtotalCents: order.SubtotalCents,
			DiscountCents: order.DiscountCents,
			TotalCents:    order.TotalCents,
		})
	}
}
