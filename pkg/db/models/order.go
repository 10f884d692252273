package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// Order is the per-seller slice of a checkout attempt.
// Invariant: TotalCents == SubtotalCents - DiscountCents + ShippingCents.
type Order struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderGroupID  uuid.UUID           `gorm:"column:order_group_id;type:uuid;not null;index"`
	SellerID      uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	OrderNumber   string              `gorm:"column:order_number;not null;unique"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	Currency      enums.Currency      `gorm:"column:currency;type:text;not null;default:'USD'"`
	SubtotalCents int64               `gorm:"column:subtotal_cents;not null"`
	DiscountCents int64               `gorm:"column:discount_cents;not null;default:0"`
	ShippingCents int64               `gorm:"column:shipping_cents;not null;default:0"`
	TotalCents    int64               `gorm:"column:total_cents;not null"`
	Items         []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CancelledAt   *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
