package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendora-market/vendora-backend/pkg/db/models"
	"github.com/vendora-market/vendora-backend/pkg/enums"
)

func setupReconcileTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{`
CREATE TABLE IF NOT EXISTS order_groups (
  id TEXT PRIMARY KEY,
  buyer_ref TEXT NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  order_group_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  order_number TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'pending',
  payment_status TEXT NOT NULL DEFAULT 'unpaid',
  currency TEXT NOT NULL DEFAULT 'USD',
  subtotal_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  shipping_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  total_price_cents INTEGER NOT NULL,
  created_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS transactions (
  id TEXT PRIMARY KEY,
  order_group_id TEXT NOT NULL,
  attempt INTEGER NOT NULL DEFAULT 1,
  idempotency_key TEXT NOT NULL UNIQUE,
  provider_ref TEXT,
  checkout_url TEXT,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  status TEXT NOT NULL DEFAULT 'pending',
  retry_count INTEGER NOT NULL DEFAULT 0,
  failure_reason TEXT,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`}
	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}

func seedGroup(t *testing.T, conn *gorm.DB, age time.Duration, statuses ...enums.OrderStatus) uuid.UUID {
	t.Helper()

	group := models.OrderGroup{ID: uuid.New(), BuyerRef: "buyer", CreatedAt: time.Now().UTC().Add(-age)}
	require.NoError(t, conn.Create(&group).Error)

	for _, status := range statuses {
		order := models.Order{
			ID:            uuid.New(),
			OrderGroupID:  group.ID,
			SellerID:      uuid.New(),
			OrderNumber:   "ORD-20260820-" + uuid.NewString()[:8],
			Status:        status,
			PaymentStatus: enums.PaymentStatusUnpaid,
			Currency:      enums.CurrencyUSD,
			SubtotalCents: 1_000,
			TotalCents:    1_000,
		}
		require.NoError(t, conn.Create(&order).Error)
		item := models.OrderItem{
			ID:              uuid.New(),
			OrderID:         order.ID,
			Name:            "line",
			Quantity:        1,
			UnitPriceCents:  1_000,
			TotalPriceCents: 1_000,
		}
		require.NoError(t, conn.Create(&item).Error)
	}
	return group.ID
}

func seedTransaction(t *testing.T, conn *gorm.DB, groupID uuid.UUID, status enums.TransactionStatus) {
	t.Helper()
	txn := models.Transaction{
		ID:             uuid.New(),
		OrderGroupID:   groupID,
		Attempt:        1,
		IdempotencyKey: "grp-" + uuid.NewString(),
		AmountCents:    1_000,
		Currency:       enums.CurrencyUSD,
		Status:         status,
	}
	require.NoError(t, conn.Create(&txn).Error)
}

func TestListStaleGroupIDsPredicate(t *testing.T) {
	conn := setupReconcileTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	stalePending := seedGroup(t, conn, 48*time.Hour, enums.OrderStatusPending, enums.OrderStatusPending)
	staleMixed := seedGroup(t, conn, 48*time.Hour, enums.OrderStatusCompleted, enums.OrderStatusPending)
	settled := seedGroup(t, conn, 48*time.Hour, enums.OrderStatusConfirmed, enums.OrderStatusPending)
	seedTransaction(t, conn, settled, enums.TransactionStatusCompleted)
	fresh := seedGroup(t, conn, time.Hour, enums.OrderStatusPending)
	progressed := seedGroup(t, conn, 48*time.Hour, enums.OrderStatusConfirmed)

	ids, err := repo.ListStaleGroupIDs(ctx, time.Now().UTC().Add(-24*time.Hour), 50)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uuid.UUID{stalePending, staleMixed}, ids)
	assert.NotContains(t, ids, settled, "a settled transaction shields the group")
	assert.NotContains(t, ids, fresh)
	assert.NotContains(t, ids, progressed, "no pending leg means nothing to purge")
}

func TestPurgeGroupRemovesEverythingAndCountsOrders(t *testing.T) {
	conn := setupReconcileTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	groupID := seedGroup(t, conn, 48*time.Hour, enums.OrderStatusCompleted, enums.OrderStatusPending)
	seedTransaction(t, conn, groupID, enums.TransactionStatusPending)
	survivor := seedGroup(t, conn, 48*time.Hour, enums.OrderStatusPending)

	purged, err := repo.PurgeGroup(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	var groups, orders, items, txns int64
	require.NoError(t, conn.Model(&models.OrderGroup{}).Count(&groups).Error)
	require.NoError(t, conn.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, conn.Model(&models.OrderItem{}).Count(&items).Error)
	require.NoError(t, conn.Model(&models.Transaction{}).Count(&txns).Error)

	assert.Equal(t, int64(1), groups, "only the survivor group remains")
	assert.Equal(t, int64(1), orders)
	assert.Equal(t, int64(1), items)
	assert.Zero(t, txns)

	var remaining models.Order
	require.NoError(t, conn.First(&remaining, "order_group_id = ?", survivor).Error)
}
