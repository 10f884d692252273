package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots one line of an order. Rows are immutable once the
// parent order leaves pending.
type OrderItem struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID       *uuid.UUID `gorm:"column:product_id;type:uuid"`
	Name            string     `gorm:"column:name;not null"`
	Quantity        int        `gorm:"column:quantity;not null"`
	UnitPriceCents  int64      `gorm:"column:unit_price_cents;not null"`
	TotalPriceCents int64      `gorm:"column:total_price_cents;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
}
