package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/api/responses"
	"github.com/vendora-market/vendora-backend/api/validators"
	checkoutsvc "github.com/vendora-market/vendora-backend/internal/checkout"
	"github.com/vendora-market/vendora-backend/internal/payments"
	"github.com/vendora-market/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

// Checkout splits the submitted cart into per-seller orders and opens a
// hosted payment session for the whole group.
func Checkout(svc checkoutsvc.Service, paymentsSvc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		if paymentsSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := checkoutsvc.CheckoutInput{BuyerRef: payload.BuyerRef}
		if payload.AffiliateID != nil {
			input.AffiliateID = *payload.AffiliateID
		}
		for _, item := range payload.Items {
			input.Items = append(input.Items, checkoutsvc.CartItem{
				SellerID:  item.SellerID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
			})
		}

		group, err := svc.Execute(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := paymentsSvc.StartSession(r.Context(), group.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(group, session))
	}
}

type checkoutRequest struct {
	BuyerRef    string            `json:"buyer_ref" validate:"required,max=128"`
	AffiliateID *uuid.UUID        `json:"affiliate_id,omitempty"`
	Items       []cartItemRequest `json:"items" validate:"required,min=1,dive"`
}

type cartItemRequest struct {
	SellerID  uuid.UUID `json:"seller_id" validate:"required"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type checkoutResponse struct {
	OrderGroupID  uuid.UUID       `json:"order_group_id"`
	Orders        []orderResponse `json:"orders"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	CheckoutURL   string          `json:"checkout_url"`
}

type orderResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	SellerID    uuid.UUID `json:"seller_id"`
	Status      string    `json:"status"`
	Subtotal    int64     `json:"subtotal_cents"`
	Discount    int64     `json:"discount_cents"`
	Total       int64     `json:"total_cents"`
}

func newCheckoutResponse(group *models.OrderGroup, session *payments.SessionResult) checkoutResponse {
	resp := checkoutResponse{
		OrderGroupID:  group.ID,
		TransactionID: session.Transaction.ID,
		CheckoutURL:   session.CheckoutURL,
	}
	for _, order := range group.Orders {
		resp.Orders = append(resp.Orders, orderResponse{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			SellerID:    order.SellerID,
			Status:      string(order.Status),
			Subtotal:    order.SubtotalCents,
			Discount:    order.DiscountCents,
			Total:       order.TotalCents,
		})
	}
	return resp
}
