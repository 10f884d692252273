package orders

import (
	apperrors "github.com/vendora-market/vendora-backend/pkg/errors"
	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// orderTransitions enumerates every legal order status change. Anything
// absent from this table is rejected with a state conflict.
var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusCompleted, enums.OrderStatusCancelled},
	enums.OrderStatusCompleted:  {},
	enums.OrderStatusCancelled:  {},
}

// paymentTransitions enumerates legal payment status changes for an order.
var paymentTransitions = map[enums.PaymentStatus][]enums.PaymentStatus{
	enums.PaymentStatusUnpaid:   {enums.PaymentStatusPartial, enums.PaymentStatusPaid},
	enums.PaymentStatusPartial:  {enums.PaymentStatusPaid, enums.PaymentStatusRefunded},
	enums.PaymentStatusPaid:     {enums.PaymentStatusRefunded},
	enums.PaymentStatusRefunded: {},
}

// ValidateTransition returns nil when target is reachable from current in a
// single step. Terminal statuses accept no further transitions.
func ValidateTransition(current, target enums.OrderStatus) error {
	for _, allowed := range orderTransitions[current] {
		if allowed == target {
			return nil
		}
	}
	return apperrors.New(apperrors.CodeStateConflict, "order status transition not allowed").
		WithDetails(map[string]any{"from": current.String(), "to": target.String()})
}

// ValidatePaymentTransition returns nil when target is a legal payment
// status change from current.
func ValidatePaymentTransition(current, target enums.PaymentStatus) error {
	for _, allowed := range paymentTransitions[current] {
		if allowed == target {
			return nil
		}
	}
	return apperrors.New(apperrors.CodeStateConflict, "payment status transition not allowed").
		WithDetails(map[string]any{"from": current.String(), "to": target.String()})
}
