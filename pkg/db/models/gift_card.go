package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// GiftCard is a stored-value instrument. CurrentBalanceCents only decreases
// outside of refunds; every change is mirrored by a GiftCardTransaction.
type GiftCard struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                string               `gorm:"column:code;not null;unique"`
	InitialBalanceCents int64                `gorm:"column:initial_balance_cents;not null"`
	CurrentBalanceCents int64                `gorm:"column:current_balance_cents;not null"`
	Status              enums.GiftCardStatus `gorm:"column:status;type:text;not null;default:'active'"`
	CanBePartiallyUsed  bool                 `gorm:"column:can_be_partially_used;not null;default:true"`
	ExpiresAt           *time.Time           `gorm:"column:expires_at"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// GiftCardTransaction is the append-only balance ledger; the card's current
// balance must be reconstructable by replaying these rows in order.
type GiftCardTransaction struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	GiftCardID         uuid.UUID  `gorm:"column:gift_card_id;type:uuid;not null;index"`
	OrderID            *uuid.UUID `gorm:"column:order_id;type:uuid"`
	AmountCents        int64      `gorm:"column:amount_cents;not null"`
	BalanceBeforeCents int64      `gorm:"column:balance_before_cents;not null"`
	BalanceAfterCents  int64      `gorm:"column:balance_after_cents;not null"`
	CreatedAt          time.Time  `gorm:"column:created_at;autoCreateTime"`
}
