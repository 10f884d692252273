package outbox

import (
	"time"

	"github.com/google/uuid"
)

// OrderGroupCreatedEvent is emitted when checkout splits a cart into orders.
type OrderGroupCreatedEvent struct {
	OrderGroupID uuid.UUID   `json:"orderGroupId"`
	OrderIDs     []uuid.UUID `json:"orderIds"`
}

// PaymentSettledEvent records a gateway confirmation for an order group.
type PaymentSettledEvent struct {
	TransactionID uuid.UUID `json:"transactionId"`
	OrderGroupID  uuid.UUID `json:"orderGroupId"`
	AmountCents   int64     `json:"amountCents"`
	Currency      string    `json:"currency"`
	SettledAt     time.Time `json:"settledAt"`
}

// PaymentFailedEvent records a terminal gateway failure for an attempt.
type PaymentFailedEvent struct {
	TransactionID uuid.UUID `json:"transactionId"`
	OrderGroupID  uuid.UUID `json:"orderGroupId"`
	Attempt       int       `json:"attempt"`
	Reason        string    `json:"reason"`
}

// PayoutPendingEvent tells the payout subsystem a seller is owed money.
type PayoutPendingEvent struct {
	TransactionID     uuid.UUID `json:"transactionId"`
	OrderID           uuid.UUID `json:"orderId"`
	SellerID          uuid.UUID `json:"sellerId"`
	SellerAmountCents int64     `json:"sellerAmountCents"`
	SettledAt         time.Time `json:"settledAt"`
}

// GroupPurgedEvent reports orphan cleanup for observability consumers.
type GroupPurgedEvent struct {
	OrderGroupID uuid.UUID `json:"orderGroupId"`
	OrdersPurged int       `json:"ordersPurged"`
	StaleHours   int       `json:"staleHours"`
	PurgedAt     time.Time `json:"purgedAt"`
}
