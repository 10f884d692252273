package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// Transaction is one attempt to pay for an order group through the external
// gateway. Retries produce new rows; at most one per group completes.
type Transaction struct {
	ID             uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderGroupID   uuid.UUID               `gorm:"column:order_group_id;type:uuid;not null;index"`
	Attempt        int                     `gorm:"column:attempt;not null;default:1"`
	IdempotencyKey string                  `gorm:"column:idempotency_key;not null;unique"`
	ProviderRef    *string                 `gorm:"column:provider_ref;index"`
	CheckoutURL    *string                 `gorm:"column:checkout_url"`
	AmountCents    int64                   `gorm:"column:amount_cents;not null"`
	Currency       enums.Currency          `gorm:"column:currency;type:text;not null;default:'USD'"`
	Status         enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	RetryCount     int                     `gorm:"column:retry_count;not null;default:0"`
	FailureReason  *string                 `gorm:"column:failure_reason"`
	CompletedAt    *time.Time              `gorm:"column:completed_at"`
	CreatedAt      time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}
