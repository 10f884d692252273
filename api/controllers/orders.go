package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/api/responses"
	"github.com/vendora-market/vendora-backend/internal/orders"
	pkgerrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/logger"
)

type groupOrderView struct {
	OrderID       uuid.UUID `json:"order_id"`
	SellerID      uuid.UUID `json:"seller_id"`
	OrderNumber   string    `json:"order_number"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	TotalCents    int64     `json:"total_cents"`
}

type groupStatusResponse struct {
	GroupID  uuid.UUID        `json:"group_id"`
	BuyerRef string           `json:"buyer_ref"`
	Complete bool             `json:"complete"`
	Orders   []groupOrderView `json:"orders"`
}

// OrderGroupStatus reports the settlement state of one checkout's order
// group, including whether every leg reached a terminal status.
func OrderGroupStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawGroupID := strings.TrimSpace(chi.URLParam(r, "groupId"))
		if rawGroupID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "group id is required"))
			return
		}
		groupID, err := uuid.Parse(rawGroupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid group id"))
			return
		}

		status, err := svc.GroupStatus(r.Context(), groupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := groupStatusResponse{
			GroupID:  status.Group.ID,
			BuyerRef: status.Group.BuyerRef,
			Complete: status.Complete,
			Orders:   make([]groupOrderView, 0, len(status.Group.Orders)),
		}
		for _, order := range status.Group.Orders {
			resp.Orders = append(resp.Orders, groupOrderView{
				OrderID:       order.ID,
				SellerID:      order.SellerID,
				OrderNumber:   order.OrderNumber,
				Status:        order.Status.String(),
				PaymentStatus: order.PaymentStatus.String(),
				TotalCents:    order.TotalCents,
			})
		}
		responses.WriteSuccess(w, resp)
	}
}
