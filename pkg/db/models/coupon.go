package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendora-market/vendora-backend/pkg/enums"
)

// Coupon is a code-based discount instrument with a usage cap.
type Coupon struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code                string             `gorm:"column:code;not null;unique"`
	DiscountType        enums.DiscountType `gorm:"column:discount_type;type:text;not null;default:'fixed'"`
	DiscountValue       int64              `gorm:"column:discount_value;not null"`
	MinOrderAmountCents int64              `gorm:"column:min_order_amount_cents;not null;default:0"`
	UsageLimit          *int               `gorm:"column:usage_limit"`
	UsageCount          int                `gorm:"column:usage_count;not null;default:0"`
	ExpiresAt           *time.Time         `gorm:"column:expires_at"`
	Active              bool               `gorm:"column:active;not null;default:true"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// CouponUsage is the one-row-per-(coupon, order) uniqueness guard against
// double application.
type CouponUsage struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CouponID      uuid.UUID `gorm:"column:coupon_id;type:uuid;not null;uniqueIndex:ux_coupon_usages_coupon_order"`
	OrderID       uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_coupon_usages_coupon_order"`
	DiscountCents int64     `gorm:"column:discount_cents;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
