package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregateOrderGroup  OutboxAggregateType = "order_group"
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateGiftCard    OutboxAggregateType = "gift_card"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateOrderGroup,
	AggregateTransaction,
	AggregateGiftCard,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderGroupCreated OutboxEventType = "order_group_created"
	EventPaymentSettled    OutboxEventType = "payment_settled"
	EventPaymentFailed     OutboxEventType = "payment_failed"
	EventPayoutPending     OutboxEventType = "payout_pending"
	EventOrderCancelled    OutboxEventType = "order_cancelled"
	EventGroupPurged       OutboxEventType = "group_purged"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderGroupCreated,
	EventPaymentSettled,
	EventPaymentFailed,
	EventPayoutPending,
	EventOrderCancelled,
	EventGroupPurged,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
